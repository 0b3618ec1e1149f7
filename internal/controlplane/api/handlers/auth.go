package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/nexusd/internal/controlplane/api/auth"
	"github.com/marmos91/nexusd/internal/controlplane/api/middleware"
	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
)

// AuthHandler serves the token endpoints under /api/v1/auth.
type AuthHandler struct {
	store      store.UserStore
	jwtService *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s store.UserStore, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{store: s, jwtService: jwtService}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response body for login and refresh.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// UserResponse is a sanitized user representation for API responses.
type UserResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// RefreshRequest is the request body for POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.store.ValidateCredentials(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrUserNotFound):
		// Unknown users and wrong passwords look the same to the caller.
		Unauthorized(w, "Invalid username or password")
		return
	case errors.Is(err, models.ErrUserDisabled):
		Forbidden(w, "User account is disabled")
		return
	default:
		logger.ErrorCtx(r.Context(), "Credential check failed", logger.Err(err))
		InternalServerError(w, "Authentication failed")
		return
	}

	if err := h.store.UpdateLastLogin(r.Context(), user.Username, time.Now()); err != nil {
		logger.WarnCtx(r.Context(), "Failed to record last login", "username", user.Username, logger.Err(err))
	}
	h.issue(w, user)
}

// Refresh handles POST /api/v1/auth/refresh. The user is read again so that
// role changes, deletions and disabled accounts take effect on refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if errors.Is(err, auth.ErrExpiredToken) {
		Unauthorized(w, "Refresh token has expired")
		return
	} else if err != nil {
		Unauthorized(w, "Invalid refresh token")
		return
	}

	user, ok := h.lookup(w, r, claims.Username)
	if !ok {
		return
	}
	if !user.Enabled {
		Forbidden(w, "User account is disabled")
		return
	}
	h.issue(w, user)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}
	if user, ok := h.lookup(w, r, claims.Username); ok {
		WriteJSONOK(w, userToResponse(user))
	}
}

// lookup loads the user a token was issued to. A user that no longer exists
// is answered with 401.
func (h *AuthHandler) lookup(w http.ResponseWriter, r *http.Request, username string) (*models.User, bool) {
	user, err := h.store.GetUser(r.Context(), username)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, models.ErrUserNotFound):
		Unauthorized(w, "User not found")
	default:
		InternalServerError(w, "Failed to fetch user")
	}
	return nil, false
}

func (h *AuthHandler) issue(w http.ResponseWriter, user *models.User) {
	pair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		logger.Error("Token generation failed", "username", user.Username, logger.Err(err))
		InternalServerError(w, "Failed to generate token")
		return
	}

	WriteJSONOK(w, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
		User:         userToResponse(user),
	})
}

func userToResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}
