package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/nara"
	"github.com/erazemk/jaego/internal/store"
)

// NaraHandler controls bid monitoring.
type NaraHandler struct {
	DB      *sqlx.DB
	Monitor *nara.Monitor
}

type cleanupRequest struct {
	Days int `json:"days" validate:"min=0,max=3650"`
}

// mergeConfig keeps the saved bot token when the client echoes back the
// redacted placeholder.
func (h *NaraHandler) mergeConfig(r *http.Request, cfg nara.Config) (nara.Config, error) {
	if cfg.TelegramBotToken != nara.RedactedToken {
		return cfg, nil
	}
	saved, err := h.Monitor.Config(r.Context())
	if err != nil {
		return cfg, err
	}
	cfg.TelegramBotToken = saved.TelegramBotToken
	return cfg, nil
}

// decodeConfig reads a configuration overlaid on the saved one so partial
// bodies keep the other settings.
func (h *NaraHandler) decodeConfig(r *http.Request) (nara.Config, error) {
	cfg, err := h.Monitor.Config(r.Context())
	if err != nil {
		return cfg, err
	}
	if err := decodeJSON(r, &cfg); err != nil {
		return cfg, err
	}
	return h.mergeConfig(r, cfg)
}

// Start handles POST /api/nara-monitoring/start.
func (h *NaraHandler) Start(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.decodeConfig(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.Monitor.Running() {
		h.status(w, r)
		return
	}
	if err := h.Monitor.Start(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category: model.AuditSystem,
		Action:   "bid_monitoring_started",
		Details:  map[string]any{"keywords": cfg.Keywords, "interval_hours": cfg.SearchIntervalHours},
	})
	h.status(w, r)
}

// Stop handles POST /api/nara-monitoring/stop.
func (h *NaraHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.Monitor.Stop()
	audit(r, h.DB, store.AuditEntry{Category: model.AuditSystem, Action: "bid_monitoring_stopped"})
	h.status(w, r)
}

// Status handles GET /api/nara-monitoring/status.
func (h *NaraHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.status(w, r)
}

func (h *NaraHandler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Monitor.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, st)
}

// Search handles POST /api/nara-monitoring/search, running one pass now.
func (h *NaraHandler) Search(w http.ResponseWriter, r *http.Request) {
	report, err := h.Monitor.RunOnce(r.Context())
	if errors.Is(err, nara.ErrSearchInProgress) {
		writeError(w, r, model.Conflict("a search is already in progress"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, report)
}

// GetConfig handles GET /api/nara-monitoring/config.
func (h *NaraHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Monitor.Config(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, cfg.Redacted())
}

// PutConfig handles PUT /api/nara-monitoring/config.
func (h *NaraHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.decodeConfig(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Monitor.SetConfig(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category: model.AuditSystem,
		Action:   "bid_monitoring_configured",
		Details:  map[string]any{"keywords": cfg.Keywords, "sources": cfg.Sources},
	})
	slog.Info("bid monitoring configured", "user", GetClaims(r.Context()).Username, "keywords", cfg.Keywords)
	jsonResponse(w, http.StatusOK, cfg.Redacted())
}

// Bids handles GET /api/nara-monitoring/bids.
func (h *NaraHandler) Bids(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.BidFilter{
		Status: q.Get("status"),
		Source: q.Get("source"),
	}
	if kw := q.Get("keywords"); kw != "" {
		f.Keywords = strings.Split(kw, ",")
	}
	var err error
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, r, err)
		return
	}

	bids, err := h.Monitor.Bids(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, bids)
}

// Cleanup handles POST /api/nara-monitoring/cleanup. Without days the
// configured retention is used.
func (h *NaraHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Days == 0 {
		cfg, err := h.Monitor.Config(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Days = cfg.CleanupOldDays
	}

	n, err := h.Monitor.Cleanup(r.Context(), req.Days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"deleted": n, "days": req.Days})
}

// ClearErrors handles DELETE /api/nara-monitoring/errors.
func (h *NaraHandler) ClearErrors(w http.ResponseWriter, r *http.Request) {
	h.Monitor.ClearErrors()
	h.status(w, r)
}
