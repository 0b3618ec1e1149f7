package models

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the default cost parameter for bcrypt hashing.
const DefaultBcryptCost = 10

const (
	// AdminUsername is the reserved username for the node administrator.
	AdminUsername = "admin"

	// EnvAdminInitialPassword sets the initial admin password. If not set, a
	// random password is generated and printed once at first start.
	EnvAdminInitialPassword = "NEXUSD_ADMIN_INITIAL_PASSWORD"
)

// Password length constraints. bcrypt silently truncates at 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters")
)

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches a bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword checks the password length limits.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// DefaultAdminUser creates the admin user with the given password hash.
func DefaultAdminUser(passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Username:     AdminUsername,
		PasswordHash: passwordHash,
		Enabled:      true,
		Role:         string(RoleAdmin),
		CreatedAt:    time.Now(),
	}
}

// GetOrGenerateAdminPassword returns the admin password from the environment
// variable if set, otherwise a random 24-character URL-safe password.
func GetOrGenerateAdminPassword() (string, error) {
	if pw := os.Getenv(EnvAdminInitialPassword); pw != "" {
		return pw, nil
	}
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
