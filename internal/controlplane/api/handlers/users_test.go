package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

func TestUserHandler(t *testing.T) {
	cpStore := setupStore(t)
	h := NewUserHandler(cpStore)
	createTestUser(t, cpStore, models.AdminUsername, "admin-password", models.RoleAdmin)

	router := chi.NewRouter()
	router.Post("/users", h.Create)
	router.Get("/users", h.List)
	router.Delete("/users/{username}", h.Delete)
	router.Post("/users/{username}/password", h.ResetPassword)
	admin := withClaims(router.ServeHTTP, models.AdminUsername, models.RoleAdmin)

	w := do(t, admin, http.MethodPost, "/users", CreateUserRequest{Username: "alice", Password: "alice-password"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body)
	}
	if got := decode[UserResponse](t, w); got.Role != "viewer" || !got.Enabled {
		t.Errorf("created user = %+v", got)
	}

	tests := []struct {
		name string
		req  CreateUserRequest
		want int
	}{
		{"duplicate", CreateUserRequest{Username: "alice", Password: "alice-password"}, http.StatusConflict},
		{"invalid role", CreateUserRequest{Username: "bob", Password: "bob-password", Role: "root"}, http.StatusBadRequest},
		{"short password", CreateUserRequest{Username: "bob", Password: "short"}, http.StatusBadRequest},
		{"missing username", CreateUserRequest{Password: "bob-password"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, admin, http.MethodPost, "/users", tt.req); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	w = do(t, admin, http.MethodGet, "/users", nil)
	if got := decode[[]UserResponse](t, w); len(got) != 2 {
		t.Errorf("list = %+v", got)
	}

	w = do(t, admin, http.MethodPost, "/users/alice/password", ChangePasswordRequest{NewPassword: "new-alice-password"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d, body %s", w.Code, w.Body)
	}
	if _, err := cpStore.ValidateCredentials(context.Background(), "alice", "new-alice-password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	if w := do(t, admin, http.MethodDelete, "/users/"+models.AdminUsername, nil); w.Code != http.StatusForbidden {
		t.Errorf("delete admin status = %d, want 403", w.Code)
	}
	if w := do(t, admin, http.MethodDelete, "/users/alice", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w := do(t, admin, http.MethodDelete, "/users/alice", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestUserHandler_SelfAccess(t *testing.T) {
	cpStore := setupStore(t)
	h := NewUserHandler(cpStore)
	createTestUser(t, cpStore, "alice", "alice-password", models.RoleViewer)
	createTestUser(t, cpStore, "bob", "bob-password", models.RoleViewer)

	router := chi.NewRouter()
	router.Get("/users/{username}", h.Get)
	router.Post("/users/me/password", h.ChangeOwnPassword)
	alice := withClaims(router.ServeHTTP, "alice", models.RoleViewer)

	if w := do(t, alice, http.MethodGet, "/users/alice", nil); w.Code != http.StatusOK {
		t.Errorf("self get status = %d, want 200", w.Code)
	}
	if w := do(t, alice, http.MethodGet, "/users/bob", nil); w.Code != http.StatusForbidden {
		t.Errorf("other get status = %d, want 403", w.Code)
	}

	w := do(t, alice, http.MethodPost, "/users/me/password",
		ChangePasswordRequest{CurrentPassword: "wrong-password", NewPassword: "alice-password-2"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong current password status = %d, want 401", w.Code)
	}

	w = do(t, alice, http.MethodPost, "/users/me/password",
		ChangePasswordRequest{CurrentPassword: "alice-password", NewPassword: "alice-password-2"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("change status = %d, body %s", w.Code, w.Body)
	}
	if _, err := cpStore.ValidateCredentials(context.Background(), "alice", "alice-password-2"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}
