package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/marmos91/nexusd/internal/controlplane/api/auth"
	"github.com/marmos91/nexusd/internal/controlplane/api/middleware"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
)

func setupStore(t *testing.T) store.Store {
	t.Helper()
	cpStore, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "controlplane.db")},
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = cpStore.Close() })
	return cpStore
}

func setupJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "test-secret-key-that-is-at-least-32-characters-long",
	})
	if err != nil {
		t.Fatalf("Failed to create JWT service: %v", err)
	}
	return jwtService
}

func createTestUser(t *testing.T, cpStore store.Store, username, password string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := models.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Enabled:      true,
		Role:         string(role),
	}
	if _, err := cpStore.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// withClaims wraps h so requests carry the claims of username.
func withClaims(h http.HandlerFunc, username string, role models.UserRole) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := &auth.Claims{Username: username, Role: string(role), Type: auth.TokenTypeAccess}
		h(w, r.WithContext(middleware.WithClaims(r.Context(), claims)))
	})
}

func TestLogin(t *testing.T) {
	cpStore := setupStore(t)
	jwtService := setupJWT(t)
	createTestUser(t, cpStore, "operator", "correct-horse", models.RoleAdmin)
	h := NewAuthHandler(cpStore, jwtService)

	t.Run("success", func(t *testing.T) {
		w := do(t, http.HandlerFunc(h.Login), http.MethodPost, "/api/v1/auth/login",
			LoginRequest{Username: "operator", Password: "correct-horse"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body)
		}
		resp := decode[LoginResponse](t, w)
		if resp.TokenType != "Bearer" || resp.User.Username != "operator" || resp.User.Role != "admin" {
			t.Errorf("unexpected response %+v", resp)
		}
		claims, err := jwtService.ValidateAccessToken(resp.AccessToken)
		if err != nil {
			t.Fatalf("access token invalid: %v", err)
		}
		if !claims.IsAdmin() {
			t.Error("expected admin claims")
		}

		user, err := cpStore.GetUser(context.Background(), "operator")
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if user.LastLogin == nil {
			t.Error("expected last login to be recorded")
		}
	})

	tests := []struct {
		name string
		req  LoginRequest
		want int
	}{
		{"wrong password", LoginRequest{Username: "operator", Password: "wrong-password"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "nobody", Password: "whatever1"}, http.StatusUnauthorized},
		{"missing password", LoginRequest{Username: "operator"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, http.HandlerFunc(h.Login), http.MethodPost, "/api/v1/auth/login", tt.req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	cpStore := setupStore(t)
	jwtService := setupJWT(t)
	user := createTestUser(t, cpStore, "viewer", "correct-horse", models.RoleViewer)
	h := NewAuthHandler(cpStore, jwtService)

	pair, err := jwtService.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	w := do(t, http.HandlerFunc(h.Refresh), http.MethodPost, "/api/v1/auth/refresh",
		RefreshRequest{RefreshToken: pair.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	w = do(t, http.HandlerFunc(h.Refresh), http.MethodPost, "/api/v1/auth/refresh",
		RefreshRequest{RefreshToken: pair.AccessToken})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("access token as refresh token status = %d, want 401", w.Code)
	}

	if err := cpStore.DeleteUser(context.Background(), "viewer"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	w = do(t, http.HandlerFunc(h.Refresh), http.MethodPost, "/api/v1/auth/refresh",
		RefreshRequest{RefreshToken: pair.RefreshToken})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("deleted user status = %d, want 401", w.Code)
	}
}

func TestMe(t *testing.T) {
	cpStore := setupStore(t)
	createTestUser(t, cpStore, "viewer", "correct-horse", models.RoleViewer)
	h := NewAuthHandler(cpStore, setupJWT(t))

	w := do(t, withClaims(h.Me, "viewer", models.RoleViewer), http.MethodGet, "/api/v1/auth/me", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if got := decode[UserResponse](t, w); got.Username != "viewer" || got.Role != "viewer" {
		t.Errorf("unexpected user %+v", got)
	}

	w = do(t, http.HandlerFunc(h.Me), http.MethodGet, "/api/v1/auth/me", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no claims status = %d, want 401", w.Code)
	}
}
