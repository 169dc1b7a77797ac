package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/jaego/internal/blob"
	"github.com/erazemk/jaego/internal/imaging"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	DB    *sqlx.DB
	Blobs blob.Store
}

type itemResponse struct {
	*model.Item
	HasImage   bool                 `json:"has_image"`
	TotalValue decimal.Decimal      `json:"total_value"`
	History    []model.StockHistory `json:"history,omitempty"`
}

func newItemResponse(item *model.Item) itemResponse {
	return itemResponse{Item: item, HasImage: item.HasImage(), TotalValue: item.TotalValue()}
}

type searchResponse struct {
	Items []itemResponse    `json:"items"`
	Stats model.SearchStats `json:"stats"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := itemFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]itemResponse, len(items))
	for i := range items {
		out[i] = newItemResponse(&items[i])
	}
	jsonResponse(w, http.StatusOK, out)
}

func itemFilter(r *http.Request) (model.ItemFilter, error) {
	q := r.URL.Query()
	f := model.ItemFilter{
		Query:       q.Get("q"),
		Category:    q.Get("category"),
		StockStatus: q.Get("stock_status"),
		LowStock:    q.Get("low_stock") == "true",
		InStock:     q.Get("in_stock") == "true",
	}
	for name, dst := range map[string]**decimal.Decimal{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, model.InvalidArgument("%s must be a number", name)
		}
		*dst = &d
	}
	return f, nil
}

// Search handles POST /api/search.
func (h *ItemsHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req model.SearchInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	items, stats, err := store.SearchItems(r.Context(), h.DB, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]itemResponse, len(items))
	for i := range items {
		out[i] = newItemResponse(&items[i])
	}
	jsonResponse(w, http.StatusOK, searchResponse{Items: out, Stats: stats})
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditStock,
		Action:       "item_created",
		ResourceType: "item",
		ResourceID:   item.ID,
		Details:      map[string]string{"name": item.Name, "specification": item.Specification},
	})
	jsonResponse(w, http.StatusCreated, newItemResponse(item))
}

// Get handles GET /api/items/{id}. The response carries the most recent
// history entries of the item.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		writeError(w, r, model.NotFound("item"))
		return
	}

	history, err := store.ListHistory(r.Context(), h.DB, model.HistoryFilter{ItemID: id, Limit: 20})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := newItemResponse(item)
	resp.History = history
	jsonResponse(w, http.StatusOK, resp)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.UpdateItem(r.Context(), h.DB, id, req, claims.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditStock,
		Action:       "item_updated",
		ResourceType: "item",
		ResourceID:   id,
	})
	jsonResponse(w, http.StatusOK, newItemResponse(item))
}

// Delete handles DELETE /api/items/{id}. Items are deactivated, never removed.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := store.DeactivateItem(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditStock,
		Action:       "item_deactivated",
		Level:        model.AuditWarning,
		ResourceType: "item",
		ResourceID:   id,
	})
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deactivated"})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil || item.Status != model.ItemStatusActive {
		writeError(w, r, model.NotFound("item"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		writeError(w, r, model.InvalidArgument("file too large or invalid multipart form"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, model.InvalidArgument("image file required"))
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key, thumbKey := imaging.Keys(id)
	if err := h.Blobs.Put(r.Context(), key, photo.Data, imaging.MIME); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Blobs.Put(r.Context(), thumbKey, photo.Thumb, imaging.MIME); err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.SetItemImageKey(r.Context(), h.DB, id, key); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("item image uploaded", "item", id, "width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetImage handles GET /api/items/{id}/image. With ?thumb=true the thumbnail
// is returned.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil || !item.HasImage() {
		writeError(w, r, model.NotFound("image"))
		return
	}

	key := item.ImageKey
	if thumb, _ := strconv.ParseBool(r.URL.Query().Get("thumb")); thumb {
		_, key = imaging.Keys(id)
	}

	data, mime, err := h.Blobs.Get(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		writeError(w, r, model.NotFound("image"))
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
