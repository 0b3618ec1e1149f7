package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marmos91/nexusd/internal/controlplane/api/middleware"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
)

// UserHandler handles user management API endpoints.
type UserHandler struct {
	store store.UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(s store.UserStore) *UserHandler {
	return &UserHandler{store: s}
}

// CreateUserRequest is the request body for POST /api/v1/users.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=viewer admin"`
}

// ChangePasswordRequest is the request body for password change endpoints.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Create handles POST /api/v1/users (admin only). Role defaults to viewer.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	role := models.RoleViewer
	if req.Role != "" {
		role = models.UserRole(req.Role)
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, models.ErrPasswordTooShort) || errors.Is(err, models.ErrPasswordTooLong) {
			BadRequest(w, err.Error())
			return
		}
		InternalServerError(w, "Failed to hash password")
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		Enabled:      true,
		Role:         string(role),
	}
	if _, err := h.store.CreateUser(r.Context(), user); err != nil {
		HandleStoreError(w, err)
		return
	}

	created, err := h.store.GetUser(r.Context(), user.Username)
	if err != nil {
		HandleStoreError(w, err)
		return
	}
	WriteJSONCreated(w, userToResponse(created))
}

// List handles GET /api/v1/users (admin only).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		HandleStoreError(w, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userToResponse(u))
	}
	WriteJSONOK(w, out)
}

// Get handles GET /api/v1/users/{username}. Users may read themselves;
// everyone else needs the admin role.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}
	if !claims.IsAdmin() && claims.Username != username {
		Forbidden(w, "Admin access required")
		return
	}

	user, err := h.store.GetUser(r.Context(), username)
	if err != nil {
		HandleStoreError(w, err)
		return
	}
	WriteJSONOK(w, userToResponse(user))
}

// Delete handles DELETE /api/v1/users/{username} (admin only). The
// built-in admin account cannot be deleted.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == models.AdminUsername {
		Forbidden(w, "The admin user cannot be deleted")
		return
	}

	if err := h.store.DeleteUser(r.Context(), username); err != nil {
		HandleStoreError(w, err)
		return
	}
	WriteNoContent(w)
}

// ChangeOwnPassword handles POST /api/v1/users/me/password.
func (h *UserHandler) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" {
		BadRequest(w, "Current password is required")
		return
	}

	if _, err := h.store.ValidateCredentials(r.Context(), claims.Username, req.CurrentPassword); err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			Unauthorized(w, "Current password is incorrect")
			return
		}
		HandleStoreError(w, err)
		return
	}

	h.setPassword(w, r, claims.Username, req.NewPassword)
}

// ResetPassword handles POST /api/v1/users/{username}/password (admin only).
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	h.setPassword(w, r, chi.URLParam(r, "username"), req.NewPassword)
}

func (h *UserHandler) setPassword(w http.ResponseWriter, r *http.Request, username, password string) {
	hash, err := models.HashPassword(password)
	if err != nil {
		HandleStoreError(w, err)
		return
	}
	if err := h.store.UpdatePassword(r.Context(), username, hash); err != nil {
		HandleStoreError(w, err)
		return
	}
	WriteNoContent(w)
}
