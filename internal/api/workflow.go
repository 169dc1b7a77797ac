package api

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/auth"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// ownerScope returns the user ID lists must be restricted to; empty means
// every user's records are visible.
func ownerScope(claims *auth.Claims) string {
	if model.IsAdmin(claims.Level) {
		return ""
	}
	return claims.UserID
}

// canView reports whether the caller may read a record owned by ownerID.
// Approvers need to read requests they decide on.
func canView(claims *auth.Claims, ownerID string, companions []string) bool {
	return claims.UserID == ownerID ||
		model.IsAdmin(claims.Level) ||
		model.HasPermission(claims.Level, model.PermWorkflowApprove) ||
		slices.Contains(companions, claims.UserID)
}

// canModify reports whether the caller may edit or delete a record owned by
// ownerID.
func canModify(claims *auth.Claims, ownerID string) bool {
	return claims.UserID == ownerID || model.IsAdmin(claims.Level)
}

func workflowRange(r *http.Request) (from, to string, err error) {
	if from, err = queryDate(r, "startDate", "from"); err != nil {
		return "", "", err
	}
	if to, err = queryDate(r, "endDate", "to"); err != nil {
		return "", "", err
	}
	return from, to, nil
}

// TripsHandler handles business trip and field work endpoints.
type TripsHandler struct {
	DB *sqlx.DB
}

// List handles GET /api/business-trips.
func (h *TripsHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, err := workflowRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	trips, err := store.ListTrips(r.Context(), h.DB, model.TripFilter{
		UserID: ownerScope(claims),
		Status: r.URL.Query().Get("status"),
		From:   from,
		To:     to,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, trips)
}

// Unreported handles GET /api/business-trips/unreported.
func (h *TripsHandler) Unreported(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	today := time.Now().Format(time.DateOnly)
	trips, err := store.ListUnreportedTrips(r.Context(), h.DB, ownerScope(claims), today)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, trips)
}

// Create handles POST /api/business-trips.
func (h *TripsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.TripInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	trip, err := store.CreateTrip(r.Context(), h.DB, claims.UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("business trip requested", "user", claims.Username, "trip", trip.ID, "type", trip.TripType)
	jsonResponse(w, http.StatusCreated, trip)
}

func (h *TripsHandler) load(r *http.Request, id string) (*model.BusinessTrip, error) {
	trip, err := store.GetTrip(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if trip == nil || !canView(GetClaims(r.Context()), trip.UserID, trip.Companions) {
		return nil, model.NotFound("business trip")
	}
	return trip, nil
}

// Get handles GET /api/business-trips/{id}.
func (h *TripsHandler) Get(w http.ResponseWriter, r *http.Request) {
	trip, err := h.load(r, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, trip)
}

// Update handles PUT /api/business-trips/{id}.
func (h *TripsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.TripInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	current, err := h.load(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canModify(GetClaims(r.Context()), current.UserID) {
		writeError(w, r, model.Forbidden("only the requester can edit this business trip"))
		return
	}

	trip, err := store.UpdateTrip(r.Context(), h.DB, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, trip)
}

// Delete handles DELETE /api/business-trips/{id}.
func (h *TripsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	current, err := h.load(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canModify(GetClaims(r.Context()), current.UserID) {
		writeError(w, r, model.Forbidden("only the requester can delete this business trip"))
		return
	}

	if err := store.DeleteTrip(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "business trip deleted"})
}

// SetStatus handles PUT /api/business-trips/{id}/status.
func (h *TripsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.StatusInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	trip, err := store.SetTripStatus(r.Context(), h.DB, id, req, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditWorkflow,
		Action:       "business_trip_" + req.Status,
		ResourceType: "business_trip",
		ResourceID:   id,
		Details:      map[string]string{"requester": trip.UserID, "reason": req.RejectionReason},
	})
	slog.Info("business trip decided", "user", claims.Username, "trip", id, "status", req.Status)
	jsonResponse(w, http.StatusOK, trip)
}

// Report handles PUT /api/business-trips/{id}/report.
func (h *TripsHandler) Report(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.TripReportInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	current, err := h.load(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	claims := GetClaims(r.Context())
	if !canModify(claims, current.UserID) && !slices.Contains(current.Companions, claims.UserID) {
		writeError(w, r, model.Forbidden("only participants can report this business trip"))
		return
	}

	trip, err := store.SubmitTripReport(r.Context(), h.DB, id, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, trip)
}

// LeavesHandler handles leave request endpoints.
type LeavesHandler struct {
	DB *sqlx.DB
}

// List handles GET /api/leave-requests.
func (h *LeavesHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, err := workflowRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	leaves, err := store.ListLeaves(r.Context(), h.DB, model.LeaveFilter{
		UserID: ownerScope(claims),
		Status: r.URL.Query().Get("status"),
		From:   from,
		To:     to,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, leaves)
}

// Create handles POST /api/leave-requests.
func (h *LeavesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.LeaveInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	leave, err := store.CreateLeave(r.Context(), h.DB, claims.UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("leave requested", "user", claims.Username, "leave", leave.ID, "type", leave.LeaveType, "days", leave.TotalDays)
	jsonResponse(w, http.StatusCreated, leave)
}

func (h *LeavesHandler) load(r *http.Request, id string) (*model.LeaveRequest, error) {
	leave, err := store.GetLeave(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if leave == nil || !canView(GetClaims(r.Context()), leave.UserID, nil) {
		return nil, model.NotFound("leave request")
	}
	return leave, nil
}

// Get handles GET /api/leave-requests/{id}.
func (h *LeavesHandler) Get(w http.ResponseWriter, r *http.Request) {
	leave, err := h.load(r, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, leave)
}

// Update handles PUT /api/leave-requests/{id}.
func (h *LeavesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.LeaveInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	current, err := h.load(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canModify(GetClaims(r.Context()), current.UserID) {
		writeError(w, r, model.Forbidden("only the requester can edit this leave request"))
		return
	}

	leave, err := store.UpdateLeave(r.Context(), h.DB, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, leave)
}

// Delete handles DELETE /api/leave-requests/{id}.
func (h *LeavesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	current, err := h.load(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canModify(GetClaims(r.Context()), current.UserID) {
		writeError(w, r, model.Forbidden("only the requester can delete this leave request"))
		return
	}

	if err := store.DeleteLeave(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "leave request deleted"})
}

// SetStatus handles PUT /api/leave-requests/{id}/status.
func (h *LeavesHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.StatusInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	leave, err := store.SetLeaveStatus(r.Context(), h.DB, id, req, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditWorkflow,
		Action:       "leave_" + req.Status,
		ResourceType: "leave_request",
		ResourceID:   id,
		Details:      map[string]any{"requester": leave.UserID, "days": leave.TotalDays, "reason": req.RejectionReason},
	})
	slog.Info("leave request decided", "user", claims.Username, "leave", id, "status", req.Status)
	jsonResponse(w, http.StatusOK, leave)
}
