package api

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// ScheduleHandler handles the shared calendar and its events.
type ScheduleHandler struct {
	DB *sqlx.DB
}

type calendarResponse struct {
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Entries   []model.CalendarEntry `json:"entries"`
}

// monthRange returns the first and last day of t's month.
func monthRange(t time.Time) (string, string) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1)
	return first.Format(time.DateOnly), last.Format(time.DateOnly)
}

// Calendar handles GET /api/schedule. The range defaults to the current month.
func (h *ScheduleHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	from, to, err := workflowRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defFrom, defTo := monthRange(time.Now())
	if from == "" {
		from = defFrom
	}
	if to == "" {
		to = defTo
	}
	if err := model.CheckDateRange(from, to); err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := store.Calendar(r.Context(), h.DB, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, calendarResponse{StartDate: from, EndDate: to, Entries: entries})
}

// Create handles POST /api/schedule.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.EventInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ev, err := store.CreateEvent(r.Context(), h.DB, req, GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, ev)
}

// Get handles GET /api/schedule/{id}.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := store.GetEvent(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ev == nil {
		writeError(w, r, model.NotFound("schedule event"))
		return
	}
	jsonResponse(w, http.StatusOK, ev)
}

// Update handles PUT /api/schedule/{id}.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.EventInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ev, err := store.UpdateEvent(r.Context(), h.DB, r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, ev)
}

// Delete handles DELETE /api/schedule/{id}.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteEvent(r.Context(), h.DB, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "schedule event deleted"})
}
