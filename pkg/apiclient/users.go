package apiclient

import (
	"net/url"
	"time"
)

// User represents a control plane user.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// CreateUserRequest is the request to create a user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// ChangePasswordRequest is the request to change a password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
}

// ListUsers returns all users.
func (c *Client) ListUsers() ([]User, error) {
	return listResources[User](c, "/api/v1/users")
}

// GetUser returns a user by username.
func (c *Client) GetUser(username string) (*User, error) {
	return getResource[User](c, resourcePath("/api/v1/users/%s", url.PathEscape(username)))
}

// CreateUser creates a new user.
func (c *Client) CreateUser(req *CreateUserRequest) (*User, error) {
	return createResource[User](c, "/api/v1/users", req)
}

// DeleteUser deletes a user.
func (c *Client) DeleteUser(username string) error {
	return deleteResource(c, resourcePath("/api/v1/users/%s", url.PathEscape(username)))
}

// ResetUserPassword resets a user's password (admin operation).
func (c *Client) ResetUserPassword(username, newPassword string) error {
	req := &ChangePasswordRequest{NewPassword: newPassword}
	return c.post(resourcePath("/api/v1/users/%s/password", url.PathEscape(username)), req, nil)
}

// ChangeOwnPassword changes the current user's password. Existing tokens
// stay valid until they expire.
func (c *Client) ChangeOwnPassword(currentPassword, newPassword string) error {
	req := &ChangePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}
	return c.post("/api/v1/users/me/password", req, nil)
}

// GetCurrentUser returns the currently authenticated user.
func (c *Client) GetCurrentUser() (*User, error) {
	return getResource[User](c, "/api/v1/auth/me")
}
