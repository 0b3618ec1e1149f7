// Package store provides the control plane persistence layer.
//
// It keeps the admin API users and the exported node configuration. Two
// backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL
package store

import (
	"context"
	"time"

	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

// UserStore manages the accounts allowed to call the admin API.
type UserStore interface {
	// GetUser returns a user by username.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, username string) (*models.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateUser creates a new user. The ID is generated if empty.
	// Returns models.ErrDuplicateUser if the username is taken.
	CreateUser(ctx context.Context, user *models.User) (string, error)

	// DeleteUser deletes a user by username.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	DeleteUser(ctx context.Context, username string) error

	// UpdatePassword replaces a user's password hash.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error

	// ValidateCredentials verifies username/password credentials.
	// Returns models.ErrInvalidCredentials or models.ErrUserDisabled on failure.
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)

	// EnsureAdminUser creates the admin user on first start and returns its
	// initial password. Returns "" if the admin already exists.
	EnsureAdminUser(ctx context.Context) (string, error)
}

// ConfigStore persists the node configuration.
type ConfigStore interface {
	// SaveSnapshot atomically replaces the stored configuration.
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error

	// LoadSnapshot returns the stored configuration, nexuses in creation
	// order. An empty database yields an empty snapshot.
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// Store provides the control plane persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from multiple
// goroutines.
type Store interface {
	UserStore
	ConfigStore

	// Healthcheck verifies the database is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}
