package api

import (
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// ClosingHandler handles period closing runs.
type ClosingHandler struct {
	DB *sqlx.DB
}

type closingResponse struct {
	*model.ClosingRun
	Period string              `json:"period"`
	Items  []model.ClosingItem `json:"items,omitempty"`
}

// Close handles POST /api/stock/closing.
func (h *ClosingHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req model.ClosingInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	run, err := store.CloseStock(r.Context(), h.DB, req, claims.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditClosing,
		Action:       "closing_completed",
		ResourceType: "closing_run",
		ResourceID:   run.ID,
		Details: map[string]any{
			"period":        run.PeriodLabel(),
			"total_items":   run.TotalItems,
			"total_value":   run.TotalValue,
			"force_reclose": req.ForceReclose,
		},
	})
	slog.Info("stock closed", "user", claims.Username, "period", run.PeriodLabel(), "items", run.TotalItems)
	jsonResponse(w, http.StatusCreated, closingResponse{ClosingRun: run, Period: run.PeriodLabel()})
}

// List handles GET /api/stock/closing.
func (h *ClosingHandler) List(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	runs, err := store.ListClosings(r.Context(), h.DB, year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]closingResponse, len(runs))
	for i := range runs {
		out[i] = closingResponse{ClosingRun: &runs[i], Period: runs[i].PeriodLabel()}
	}
	jsonResponse(w, http.StatusOK, out)
}

// Get handles GET /api/stock/closing/{id}.
func (h *ClosingHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, items, err := h.load(r, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, closingResponse{ClosingRun: run, Period: run.PeriodLabel(), Items: items})
}

func (h *ClosingHandler) load(r *http.Request, id string) (*model.ClosingRun, []model.ClosingItem, error) {
	run, err := store.GetClosing(r.Context(), h.DB, id)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, model.NotFound("closing run")
	}
	items, err := store.ListClosingItems(r.Context(), h.DB, id)
	if err != nil {
		return nil, nil, err
	}
	return run, items, nil
}

// Rollback handles DELETE /api/stock/closing/{id}.
func (h *ClosingHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.RollbackInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	run, err := store.RollbackClosing(r.Context(), h.DB, id, req.Reason, claims.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditClosing,
		Action:       "closing_rolled_back",
		Level:        model.AuditWarning,
		ResourceType: "closing_run",
		ResourceID:   id,
		Details:      map[string]string{"period": run.PeriodLabel(), "reason": req.Reason},
	})
	slog.Info("closing rolled back", "user", claims.Username, "period", run.PeriodLabel(), "reason", req.Reason)
	jsonResponse(w, http.StatusOK, closingResponse{ClosingRun: run, Period: run.PeriodLabel()})
}
