package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/csvimport"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// StockHandler handles stock movements, history and CSV import.
type StockHandler struct {
	DB *sqlx.DB
}

type transactionType struct {
	Type string `json:"type" validate:"required,oneof=in out"`
}

// In handles POST /api/stock/in.
func (h *StockHandler) In(w http.ResponseWriter, r *http.Request) {
	var req model.StockInInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.stockIn(w, r, req)
}

func (h *StockHandler) stockIn(w http.ResponseWriter, r *http.Request, req model.StockInInput) {
	claims := GetClaims(r.Context())
	res, err := store.StockIn(r.Context(), h.DB, req, claims.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditStock,
		Action:       "stock_in",
		ResourceType: "item",
		ResourceID:   res.Item.ID,
		Details: map[string]any{
			"quantity":     req.Quantity,
			"old_quantity": res.OldQuantity,
			"new_quantity": res.NewQuantity,
			"item_created": res.ItemCreated,
		},
	})
	slog.Info("stock in", "user", claims.Username, "item", res.Item.Name, "quantity", req.Quantity, "new_quantity", res.NewQuantity)
	jsonResponse(w, http.StatusCreated, res)
}

// Out handles POST /api/stock/out.
func (h *StockHandler) Out(w http.ResponseWriter, r *http.Request) {
	var req model.StockOutInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.stockOut(w, r, req)
}

func (h *StockHandler) stockOut(w http.ResponseWriter, r *http.Request, req model.StockOutInput) {
	claims := GetClaims(r.Context())
	res, err := store.StockOut(r.Context(), h.DB, req, claims.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditStock,
		Action:       "stock_out",
		ResourceType: "item",
		ResourceID:   req.ItemID,
		Details: map[string]any{
			"quantity":     req.Quantity,
			"project":      req.Project,
			"old_quantity": res.OldQuantity,
			"new_quantity": res.NewQuantity,
		},
	})
	slog.Info("stock out", "user", claims.Username, "item", res.Item.Name, "quantity", req.Quantity, "new_quantity", res.NewQuantity)
	jsonResponse(w, http.StatusCreated, res)
}

// Transaction handles POST /api/stock/transaction, dispatching on "type".
func (h *StockHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	r.Body.Close()
	if err != nil {
		writeError(w, r, model.InvalidArgument("invalid request body"))
		return
	}

	var kind transactionType
	if err := json.Unmarshal(body, &kind); err != nil {
		writeError(w, r, model.InvalidArgument("invalid request body: %v", err))
		return
	}
	if err := model.Validate(&kind); err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	if kind.Type == "in" {
		h.In(w, r)
		return
	}
	h.Out(w, r)
}

// Bulk handles POST /api/stock/bulk. Each operation commits on its own;
// the request fails only when every operation failed.
func (h *StockHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req model.BulkInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	res := store.ProcessBulk(r.Context(), h.DB, req, claims.Username)

	audit(r, h.DB, store.AuditEntry{
		Category: model.AuditStock,
		Action:   "stock_bulk_" + req.OperationType,
		Details: map[string]int{
			"success_count": res.SuccessCount,
			"failure_count": res.FailureCount,
		},
	})
	slog.Info("bulk stock operation", "user", claims.Username, "type", req.OperationType,
		"succeeded", res.SuccessCount, "failed", res.FailureCount)

	if res.SuccessCount == 0 {
		partialFailure(w, "all operations failed", res)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Adjust handles POST /api/stock/adjust.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req model.AdjustInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	res, err := store.AdjustStock(r.Context(), h.DB, req, claims.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditStock,
		Action:       "stock_adjusted",
		Level:        model.AuditWarning,
		ResourceType: "item",
		ResourceID:   req.ItemID,
		Details: map[string]any{
			"type":         req.AdjustmentType,
			"old_quantity": res.OldQuantity,
			"new_quantity": res.NewQuantity,
			"reason":       req.Reason,
		},
	})
	jsonResponse(w, http.StatusOK, res)
}

// Disposal handles POST /api/stock/disposal.
func (h *StockHandler) Disposal(w http.ResponseWriter, r *http.Request) {
	var req model.DisposalInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	results := store.DisposeStock(r.Context(), h.DB, req, claims.Username)

	succeeded := 0
	for _, res := range results {
		if !res.Success {
			continue
		}
		succeeded++
		audit(r, h.DB, store.AuditEntry{
			Category:     model.AuditStock,
			Action:       "stock_disposed",
			Level:        model.AuditWarning,
			ResourceType: "item",
			ResourceID:   res.ItemID,
			Details:      map[string]int{"new_quantity": res.NewQuantity},
		})
	}

	if succeeded == 0 {
		partialFailure(w, "no item could be disposed", results)
		return
	}
	jsonResponse(w, http.StatusOK, results)
}

// History handles GET /api/stock/history.
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	f, err := historyFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := store.ListHistory(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rows)
}

func historyFilter(r *http.Request) (model.HistoryFilter, error) {
	f := model.HistoryFilter{
		ItemID: r.URL.Query().Get("item_id"),
		Kind:   r.URL.Query().Get("kind"),
	}
	var err error
	if f.From, err = queryTime(r, "from", false); err != nil {
		return f, err
	}
	if f.To, err = queryTime(r, "to", true); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", 100); err != nil {
		return f, err
	}
	return f, nil
}

// Import handles POST /api/stock/import with a multipart "file" field.
func (h *StockHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, csvimport.MaxSize+1<<20)
	if err := r.ParseMultipartForm(csvimport.MaxSize); err != nil {
		writeError(w, r, model.InvalidArgument("file too large or invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, model.InvalidArgument("csv file required"))
		return
	}
	defer file.Close()

	data, err := csvimport.Decode(file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := csvimport.Parse(data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	res := csvimport.Import(r.Context(), h.DB, rows, claims.Username)

	audit(r, h.DB, store.AuditEntry{
		Category: model.AuditStock,
		Action:   "stock_import",
		Details: map[string]any{
			"file":          header.Filename,
			"success_count": res.SuccessCount,
			"failure_count": res.FailureCount,
		},
	})
	slog.Info("stock imported", "user", claims.Username, "file", header.Filename,
		"succeeded", res.SuccessCount, "failed", res.FailureCount)
	jsonResponse(w, http.StatusOK, res)
}
