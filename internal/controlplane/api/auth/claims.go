// Package auth issues and validates the JWTs the admin API is called with.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

// TokenType indicates whether a token is an access token or refresh token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token used for API authorization.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived token used to obtain new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims of an API user.
type Claims struct {
	jwt.RegisteredClaims

	UserID   string    `json:"uid"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	Type     TokenType `json:"token_type"`
}

// IsAccessToken returns true if this is an access token.
func (c *Claims) IsAccessToken() bool {
	return c.Type == TokenTypeAccess
}

// IsRefreshToken returns true if this is a refresh token.
func (c *Claims) IsRefreshToken() bool {
	return c.Type == TokenTypeRefresh
}

// IsAdmin returns true if the user may change node state.
func (c *Claims) IsAdmin() bool {
	return c.Role == string(models.RoleAdmin)
}
