package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"

	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/report"
	"github.com/erazemk/jaego/internal/store"
)

// ReportsHandler serves audit log queries and spreadsheet exports.
type ReportsHandler struct {
	DB *sqlx.DB
}

// AuditLogs handles GET /api/audit-logs.
func (h *ReportsHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.AuditFilter{
		Action:   q.Get("action"),
		UserID:   q.Get("user_id"),
		Category: q.Get("category"),
	}
	var err error
	if f.From, err = queryTime(r, "from", false); err != nil {
		writeError(w, r, err)
		return
	}
	if f.To, err = queryTime(r, "to", true); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Limit, err = queryInt(r, "limit", 100); err != nil {
		writeError(w, r, err)
		return
	}

	logs, err := store.ListAudit(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, logs)
}

func (h *ReportsHandler) send(w http.ResponseWriter, r *http.Request, name string, f *excelize.File, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s_%s.xlsx", name, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := report.Write(w, f); err != nil {
		slog.Error("writing report", "report", name, "error", err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category: model.AuditSystem,
		Action:   "report_exported",
		Details:  map[string]string{"report": name},
	})
}

// Stock handles GET /api/reports/stock.xlsx.
func (h *ReportsHandler) Stock(w http.ResponseWriter, r *http.Request) {
	filter, err := itemFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := store.ListItems(r.Context(), h.DB, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := report.Stock(items)
	h.send(w, r, "stock", f, err)
}

// History handles GET /api/reports/stock-history.xlsx.
func (h *ReportsHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("limit") == "" {
		filter.Limit = 10000
	}
	rows, err := store.ListHistory(r.Context(), h.DB, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := report.History(rows)
	h.send(w, r, "stock_history", f, err)
}

// Closing handles GET /api/reports/closing/{file}, where file is
// "<id>.xlsx".
func (h *ReportsHandler) Closing(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(r.PathValue("file"), ".xlsx")
	if !ok {
		writeError(w, r, model.NotFound("report"))
		return
	}

	run, err := store.GetClosing(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if run == nil {
		writeError(w, r, model.NotFound("closing run"))
		return
	}
	items, err := store.ListClosingItems(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := report.Closing(run, items)
	h.send(w, r, "closing_"+run.PeriodLabel(), f, err)
}

// WorkDiary handles GET /api/reports/work-diary.xlsx.
func (h *ReportsHandler) WorkDiary(w http.ResponseWriter, r *http.Request) {
	filter, err := diaryFilter(r, GetClaims(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := store.ListAllDiaries(r.Context(), h.DB, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := report.WorkDiary(entries)
	h.send(w, r, "work_diary", f, err)
}
