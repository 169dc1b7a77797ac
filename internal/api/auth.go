package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/auth"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/ratelimit"
	"github.com/erazemk/jaego/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB           *sqlx.DB
	JWTSecret    string
	TokenTTL     time.Duration
	LoginLimiter ratelimit.Limiter
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type meResponse struct {
	User        *model.User        `json:"user"`
	Permissions []model.Permission `json:"permissions"`
	Menu        []model.MenuItem   `json:"menu"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=100"`
}

// Login handles POST /api/auth/login. Only failed attempts count against the
// per-IP login limit.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	key := "login:" + clientIP(r)
	if !checkBudget(w, r, h.LoginLimiter, key) {
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("login failed", "username", req.Username, "remote", clientIP(r))
		recordFailure(w, r, h.LoginLimiter, key)
		audit(r, h.DB, store.AuditEntry{
			Username: req.Username,
			Category: model.AuditAuth,
			Action:   "login_failed",
			Level:    model.AuditWarning,
		})
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, h.TokenTTL, user.ID, user.Username, user.Level)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.TouchLastLogin(r.Context(), h.DB, user.ID); err != nil {
		slog.Warn("recording last login", "user", user.Username, "error", err)
	}
	audit(r, h.DB, store.AuditEntry{
		UserID:    user.ID,
		Username:  user.Username,
		UserLevel: user.Level,
		Category:  model.AuditAuth,
		Action:    "login",
	})

	slog.Info("user logged in", "user", user.Username, "level", user.Level)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expires := time.Now().Add(auth.DefaultTokenTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expires); err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{Category: model.AuditAuth, Action: "logout"})
	slog.Info("user logged out", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil {
		writeError(w, r, model.NotFound("user"))
		return
	}

	jsonResponse(w, http.StatusOK, meResponse{
		User:        user,
		Permissions: model.PermissionsFor(user.Level),
		Menu:        model.MenuFor(user.Level),
	})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil {
		writeError(w, r, model.NotFound("user"))
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, hash); err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{Category: model.AuditAuth, Action: "password_changed"})
	slog.Info("user changed own password", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
