package models

import (
	"fmt"
	"time"
)

// UserRole represents the role of an API user.
type UserRole string

const (
	// RoleViewer may read node state but not change it.
	RoleViewer UserRole = "viewer"
	// RoleAdmin is an administrator with full permissions.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is a valid UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleViewer || r == RoleAdmin
}

// User is an account allowed to call the admin API.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null;size:255" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Enabled      bool       `gorm:"default:true" json:"enabled"`
	Role         string     `gorm:"default:viewer;size:50" json:"role"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}

// IsAdmin checks if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}
