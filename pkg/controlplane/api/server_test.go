package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nexusd/internal/controlplane/api/auth"
	"github.com/marmos91/nexusd/internal/controlplane/api/handlers"
	"github.com/marmos91/nexusd/pkg/bridge"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
	"github.com/marmos91/nexusd/pkg/controlplane/runtime"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/pool"
	"github.com/marmos91/nexusd/pkg/reactor"
)

const (
	testSecret   = "test-secret-key-for-testing-only-32chars"
	testPassword = "admin-password"
	replicaUUID  = "cdc2a7db-3ac3-403a-af80-7fadc1581c47"
	nexusUUID    = "2a3c7f41-85d1-4a8b-9a1e-3f6b2c4d5e60"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	cpStore, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "controlplane.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cpStore.Close() })

	t.Setenv(models.EnvAdminInitialPassword, testPassword)
	_, err = cpStore.EnsureAdminUser(context.Background())
	require.NoError(t, err)
	return cpStore
}

func testConfig(endpoint string) APIConfig {
	return APIConfig{
		Endpoint:     endpoint,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
		JWT:          JWTConfig{Secret: testSecret},
	}
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (c *client) login(username, password string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/v1/auth/login", handlers.LoginRequest{Username: username, Password: password})
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	c.token = decode[handlers.LoginResponse](c.t, resp).AccessToken
}

func newTestAPI(t *testing.T, mutate ...func(*runtime.Options)) (*client, *runtime.Runtime, store.Store) {
	t.Helper()
	cpStore := newTestStore(t)

	opts := runtime.Options{Cores: 1, QueueDepth: 64, NvmfAddress: "10.1.0.2:8420", ANAEnabled: true}
	for _, m := range mutate {
		m(&opts)
	}
	rt, err := runtime.New(opts, cpStore)
	require.NoError(t, err)
	rt.Start(context.Background())
	t.Cleanup(rt.Close)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(rt, jwtService, cpStore))
	t.Cleanup(srv.Close)

	c := &client{t: t, base: srv.URL}
	c.login(models.AdminUsername, testPassword)
	return c, rt, cpStore
}

func TestNewServer(t *testing.T) {
	cpStore := newTestStore(t)

	t.Run("short secret", func(t *testing.T) {
		cfg := testConfig("127.0.0.1:0")
		cfg.JWT.Secret = "short"
		_, err := NewServer(cfg, nil, cpStore)
		assert.Error(t, err)
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		_, err := NewServer(testConfig("fd00::1"), nil, cpStore)
		assert.Error(t, err)
	})

	t.Run("default endpoint", func(t *testing.T) {
		srv, err := NewServer(testConfig(""), nil, cpStore)
		require.NoError(t, err)
		assert.Equal(t, bridge.DefaultEndpoint().String(), srv.Addr())
	})

	t.Run("secret from environment", func(t *testing.T) {
		t.Setenv(EnvControlPlaneSecret, "an-environment-secret-of-32-chars-or-more")
		cfg := testConfig("127.0.0.1:0")
		cfg.JWT.Secret = ""
		_, err := NewServer(cfg, nil, cpStore)
		assert.NoError(t, err)
	})
}

func TestAPIServer_Lifecycle(t *testing.T) {
	cpStore := newTestStore(t)
	server, err := NewServer(testConfig("127.0.0.1:0"), nil, cpStore)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(ctx) }()

	var addr string
	require.Eventually(t, func() bool {
		addr = server.Addr()
		return addr != "127.0.0.1:0"
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	c := &client{t: t, base: "http://" + addr}
	c.login(models.AdminUsername, testPassword)
	resp = c.do(http.MethodGet, "/api/v1/pools", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "no runtime attached")

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, server.Stop(context.Background()), "second stop is a no-op")
}

func TestAPI_Authentication(t *testing.T) {
	c, _, cpStore := newTestAPI(t)

	anon := &client{t: t, base: c.base}
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/v1/pools", nil).StatusCode)
	assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/health/ready", nil).StatusCode)

	resp := c.do(http.MethodPost, "/api/v1/users", handlers.CreateUserRequest{Username: "viewer", Password: "viewer-password"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	viewer := &client{t: t, base: c.base}
	viewer.login("viewer", "viewer-password")
	assert.Equal(t, http.StatusOK, viewer.do(http.MethodGet, "/api/v1/pools", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, viewer.do(http.MethodPost, "/api/v1/pools",
		handlers.CreatePoolRequest{Name: "tpool", Disks: []string{"malloc:///disk0?size_mb=64"}}).StatusCode)
	assert.Equal(t, http.StatusForbidden, viewer.do(http.MethodGet, "/api/v1/users", nil).StatusCode)

	me := decode[handlers.UserResponse](t, viewer.do(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, "viewer", me.Username)

	users, err := cpStore.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestAPI_NodeLifecycle(t *testing.T) {
	c, _, cpStore := newTestAPI(t)

	resp := c.do(http.MethodPost, "/api/v1/pools", handlers.CreatePoolRequest{Name: "tpool", Disks: []string{"malloc:///disk0?size_mb=64"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/v1/replicas", handlers.CreateReplicaRequest{UUID: replicaUUID, Pool: "tpool", Size: 8 << 20})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rep := decode[pool.ReplicaInfo](t, resp)
	assert.Equal(t, pool.LocalURI(replicaUUID), rep.URI)

	resp = c.do(http.MethodPost, "/api/v1/nexuses", handlers.CreateNexusRequest{UUID: nexusUUID, Name: "vol", Size: 8 << 20,
		Children: []string{"loopback:///" + replicaUUID}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, nexus.StateOpen, decode[nexus.Info](t, resp).State)

	resp = c.do(http.MethodPost, "/api/v1/nexuses/vol/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[handlers.ShareResponse](t, resp).URI)

	resp = c.do(http.MethodPut, "/api/v1/nexuses/vol/ana", map[string]string{"state": "inaccessible"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = c.do(http.MethodGet, "/api/v1/nexuses/"+nexusUUID+"/ana", nil)
	assert.Equal(t, "inaccessible", decode[map[string]string](t, resp)["state"])

	snap, err := cpStore.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Nexuses, 1)
	assert.Equal(t, "inaccessible", snap.Nexuses[0].ANAState, "every change is exported")

	resp = c.do(http.MethodDelete, "/api/v1/pools/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode[handlers.Problem](t, resp).Code)

	for range 2 {
		resp = c.do(http.MethodDelete, "/api/v1/nexuses/vol", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}
}

func TestAPI_ExportFailure(t *testing.T) {
	c, rt, _ := newTestAPI(t)
	rt.SetExporter(bridge.ExporterFunc(func(context.Context) error { return errors.New("database is locked") }))

	resp := c.do(http.MethodPost, "/api/v1/pools", handlers.CreatePoolRequest{Name: "tpool", Disks: []string{"malloc:///disk0?size_mb=64"}})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	problem := decode[handlers.Problem](t, resp)
	assert.Equal(t, "DATA_LOSS", problem.Code)
	assert.Equal(t, "Failed to export config", problem.Detail)

	resp = c.do(http.MethodGet, "/api/v1/pools/tpool", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "the pool was created")
}

func TestAPI_InitReactorBusy(t *testing.T) {
	c, rt, _ := newTestAPI(t, func(o *runtime.Options) { o.QueueDepth = 1 })

	hold, running := make(chan struct{}), make(chan struct{})
	t.Cleanup(func() { close(hold) })
	_, err := reactor.Spawn(rt.InitReactor(), func(rc *reactor.Context) (struct{}, error) {
		close(running)
		<-hold
		return struct{}{}, nil
	})
	require.NoError(t, err)
	<-running
	_, err = reactor.Spawn(rt.InitReactor(), func(rc *reactor.Context) (struct{}, error) { return struct{}{}, nil })
	require.NoError(t, err)

	resp := c.do(http.MethodPost, "/api/v1/pools", handlers.CreatePoolRequest{Name: "tpool", Disks: []string{"malloc:///disk0?size_mb=64"}})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", decode[handlers.Problem](t, resp).Code)
}
