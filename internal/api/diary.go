package api

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/auth"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// DiaryHandler handles work diary endpoints.
type DiaryHandler struct {
	DB *sqlx.DB
}

// diaryFilter reads the list filters. Callers below level 3 only ever see
// their own entries.
func diaryFilter(r *http.Request, claims *auth.Claims) (model.DiaryFilter, error) {
	q := r.URL.Query()
	f := model.DiaryFilter{
		UserID:    q.Get("userId"),
		ProjectID: q.Get("projectId"),
	}
	if !model.LevelAtLeast(claims.Level, model.Level3) {
		f.UserID = claims.UserID
	}

	var err error
	if f.From, f.To, err = workflowRange(r); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(r, "page", 1); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", 20); err != nil {
		return f, err
	}
	return f, nil
}

// List handles GET /api/work-diary.
func (h *DiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := diaryFilter(r, GetClaims(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := store.ListDiaries(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Stats handles GET /api/work-diary/stats.
func (h *DiaryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	f, err := diaryFilter(r, GetClaims(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := store.DiaryStats(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Create handles POST /api/work-diary.
func (h *DiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.DiaryInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := store.CreateDiary(r.Context(), h.DB, GetClaims(r.Context()).UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, entry)
}

func (h *DiaryHandler) load(r *http.Request, id string) (*model.WorkDiary, error) {
	entry, err := store.GetDiary(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	claims := GetClaims(r.Context())
	if entry == nil || (entry.UserID != claims.UserID && !model.LevelAtLeast(claims.Level, model.Level3)) {
		return nil, model.NotFound("work diary")
	}
	return entry, nil
}

// Get handles GET /api/work-diary/{id}.
func (h *DiaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.load(r, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, entry)
}

// Update handles PUT /api/work-diary/{id}.
func (h *DiaryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.DiaryInput
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
		writeError(w, r, model.Forbidden("only the author can edit this entry"))
		return
	}

	entry, err := store.UpdateDiary(r.Context(), h.DB, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, entry)
}

// Delete handles DELETE /api/work-diary/{id}.
func (h *DiaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	current, err := h.load(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canModify(GetClaims(r.Context()), current.UserID) {
		writeError(w, r, model.Forbidden("only the author can delete this entry"))
		return
	}

	if err := store.DeleteDiary(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "work diary deleted"})
}
