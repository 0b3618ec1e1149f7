package apiclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authServer accepts admin/secret and the refresh token "r1".
func authServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username != "admin" || req.Password != "secret" {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"Invalid username or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "a1",
			RefreshToken: "r1",
			TokenType:    "Bearer",
			ExpiresIn:    900,
			ExpiresAt:    time.Now().Add(15 * time.Minute),
			User:         &User{Username: "admin", Role: "admin", Enabled: true},
		})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.RefreshToken != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"Invalid refresh token"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 60})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLogin(t *testing.T) {
	c := New(authServer(t).URL)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := c.Login("admin", "secret")
		require.NoError(t, err)
		assert.Equal(t, "a1", resp.AccessToken)
		assert.Equal(t, "r1", resp.RefreshToken)
		assert.Equal(t, "Bearer", resp.TokenType)
		require.NotNil(t, resp.User)
		assert.Equal(t, "admin", resp.User.Role)
	})

	t.Run("bad password", func(t *testing.T) {
		resp, err := c.Login("admin", "wrong")
		assert.Nil(t, resp)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.IsAuthError())
		assert.Equal(t, "Invalid username or password", apiErr.Error())
	})
}

func TestRefreshToken(t *testing.T) {
	c := New(authServer(t).URL)

	resp, err := c.RefreshToken("r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", resp.AccessToken)
	assert.Equal(t, "r2", resp.RefreshToken)
	assert.Equal(t, time.Minute, resp.ExpiresInDuration())

	_, err = c.RefreshToken("stale")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestTokenResponse_ExpiresInDuration(t *testing.T) {
	assert.Equal(t, 15*time.Minute, (&TokenResponse{ExpiresIn: 900}).ExpiresInDuration())
	assert.Zero(t, (&TokenResponse{}).ExpiresInDuration())
}
