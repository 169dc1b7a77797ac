package api

import (
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/auth"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// UsersHandler handles user management endpoints.
type UsersHandler struct {
	DB *sqlx.DB
}

type createUserResponse struct {
	User              *model.User `json:"user"`
	GeneratedPassword string      `json:"generated_password,omitempty"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=100"`
}

type annualLeaveRequest struct {
	Days float64 `json:"days" validate:"min=0,max=365"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users. A random password is generated when none
// is given and returned once.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.UserInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var generated string
	password := req.Password
	if password == "" {
		var err error
		if generated, err = auth.GeneratePassword(16); err != nil {
			writeError(w, r, err)
			return
		}
		password = generated
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req, hash)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditUser,
		Action:       "user_created",
		ResourceType: "user",
		ResourceID:   user.ID,
		Details:      map[string]string{"username": user.Username, "level": user.Level},
	})
	slog.Info("user created", "user", GetClaims(r.Context()).Username, "new_user", user.Username, "level", user.Level)
	jsonResponse(w, http.StatusCreated, createUserResponse{User: user, GeneratedPassword: generated})
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := store.GetUser(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil || user.DeletedAt != nil {
		writeError(w, r, model.NotFound("user"))
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.UserInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id && !model.IsAdmin(req.Level) {
		writeError(w, r, model.InvalidArgument("cannot remove your own administrator level"))
		return
	}

	before, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.UpdateUser(r.Context(), h.DB, id, req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	action := "user_updated"
	if before != nil && before.Level != user.Level {
		action = "user_level_changed"
	}
	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditUser,
		Action:       action,
		ResourceType: "user",
		ResourceID:   id,
		Details:      map[string]string{"username": user.Username, "level": user.Level},
	})
	slog.Info("user updated", "user", claims.Username, "target_user", user.Username, "level", user.Level)
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if target == nil || target.DeletedAt != nil {
		writeError(w, r, model.NotFound("user"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.UpdateUserPassword(r.Context(), h.DB, id, hash); err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditUser,
		Action:       "password_reset",
		ResourceType: "user",
		ResourceID:   id,
	})
	slog.Info("user password reset", "user", GetClaims(r.Context()).Username, "target_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// SetAnnualLeave handles PUT /api/users/{id}/annual-leave.
func (h *UsersHandler) SetAnnualLeave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req annualLeaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if target == nil || target.DeletedAt != nil {
		writeError(w, r, model.NotFound("user"))
		return
	}
	if err := store.SetAnnualLeave(r.Context(), h.DB, id, req.Days); err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditUser,
		Action:       "annual_leave_set",
		ResourceType: "user",
		ResourceID:   id,
		Details:      map[string]float64{"from": target.RemainingAnnualLeave, "to": req.Days},
	})
	target.RemainingAnnualLeave = req.Days
	jsonResponse(w, http.StatusOK, target)
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	claims := GetClaims(r.Context())
	if claims.UserID == id {
		writeError(w, r, model.InvalidArgument("cannot delete yourself"))
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if target == nil || target.DeletedAt != nil {
		writeError(w, r, model.NotFound("user"))
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditUser,
		Action:       "user_deleted",
		Level:        model.AuditWarning,
		ResourceType: "user",
		ResourceID:   id,
		Details:      map[string]string{"username": target.Username},
	})
	slog.Info("user deleted", "user", claims.Username, "deleted_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
