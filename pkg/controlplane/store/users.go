package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

func (s *GORMStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "username", username, models.ErrUserNotFound)
}

func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return listAll[models.User](s.db, ctx, "username")
}

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	if err := user.Validate(); err != nil {
		return "", err
	}
	user.CreatedAt = time.Now()
	return createWithID(s.db, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateUser)
}

func (s *GORMStore) DeleteUser(ctx context.Context, username string) error {
	return deleteByField[models.User](s.db, ctx, "username", username, models.ErrUserNotFound)
}

func (s *GORMStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return s.setUserColumn(ctx, username, "password_hash", passwordHash)
}

func (s *GORMStore) UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error {
	return s.setUserColumn(ctx, username, "last_login", timestamp)
}

func (s *GORMStore) setUserColumn(ctx context.Context, username, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Update(column, value)
	switch {
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return models.ErrUserNotFound
	default:
		return nil
	}
}

// ValidateCredentials checks a login. Unknown users and wrong passwords
// both yield ErrInvalidCredentials.
func (s *GORMStore) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUser(ctx, username)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		return nil, models.ErrInvalidCredentials
	case err != nil:
		return nil, err
	case !user.Enabled:
		return nil, models.ErrUserDisabled
	case !models.VerifyPassword(password, user.PasswordHash):
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}

// EnsureAdminUser creates the admin account on a fresh database. The
// password comes from NEXUSD_ADMIN_INITIAL_PASSWORD or is generated; only a
// generated password is returned so the operator can see it once.
func (s *GORMStore) EnsureAdminUser(ctx context.Context) (string, error) {
	if _, err := s.GetUser(ctx, models.AdminUsername); !errors.Is(err, models.ErrUserNotFound) {
		return "", err
	}

	password, err := models.GetOrGenerateAdminPassword()
	if err != nil {
		return "", fmt.Errorf("failed to generate admin password: %w", err)
	}
	hash, err := models.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin password: %w", err)
	}
	if _, err := s.CreateUser(ctx, models.DefaultAdminUser(hash)); err != nil {
		return "", fmt.Errorf("failed to create admin user: %w", err)
	}

	if os.Getenv(models.EnvAdminInitialPassword) != "" {
		return "", nil
	}
	return password, nil
}
