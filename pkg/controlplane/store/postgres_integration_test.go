//go:build integration

package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// sharedPostgres is started once by TestMain and used by every test in this
// file.
var sharedPostgres *PostgresConfig

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("nexusd_test"),
		postgres.WithUsername("nexusd_test"),
		postgres.WithPassword("nexusd_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}

	sharedPostgres = &PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "nexusd_test",
		User:     "nexusd_test",
		Password: "nexusd_test",
		SSLMode:  "disable",
	}

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
	}
	os.Exit(code)
}

// createPostgresStore opens the shared database with every table emptied.
func createPostgresStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{Type: DatabaseTypePostgres, Postgres: *sharedPostgres})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.DB().Exec("TRUNCATE users, pools, replicas, nexuses").Error)
	return store
}

func TestPostgres(t *testing.T) {
	t.Run("healthcheck", func(t *testing.T) {
		require.NoError(t, createPostgresStore(t).Healthcheck(context.Background()))
	})
	t.Run("users", func(t *testing.T) {
		testUserOperations(t, createPostgresStore(t))
	})
	t.Run("admin user", func(t *testing.T) {
		testEnsureAdminUser(t, createPostgresStore(t))
	})
	t.Run("snapshot round trip", func(t *testing.T) {
		testSnapshotRoundTrip(t, createPostgresStore(t))
	})
	t.Run("snapshot replaces previous", func(t *testing.T) {
		testSnapshotReplacesPrevious(t, createPostgresStore(t))
	})
}
