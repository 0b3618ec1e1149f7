package apiclient

import "time"

// LoginRequest carries the credentials for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is the token pair issued by login and refresh. ExpiresIn
// is the access token lifetime in seconds.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// ExpiresInDuration returns the access token lifetime.
func (t *TokenResponse) ExpiresInDuration() time.Duration {
	return time.Second * time.Duration(t.ExpiresIn)
}

// Login exchanges a username and password for a token pair.
func (c *Client) Login(username, password string) (*TokenResponse, error) {
	return createResource[TokenResponse](c, "/api/v1/auth/login",
		LoginRequest{Username: username, Password: password})
}

// RefreshToken trades a refresh token for a fresh pair. The refresh token
// is single use on the server side.
func (c *Client) RefreshToken(refreshToken string) (*TokenResponse, error) {
	return createResource[TokenResponse](c, "/api/v1/auth/refresh",
		refreshRequest{RefreshToken: refreshToken})
}
