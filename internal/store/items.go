package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const itemColumns = `id, name, specification, maker, location, unit_price, purpose, min_stock, category,
	description, status, stock_status, current_quantity, image_key, created_at, updated_at`

// CreateItem creates a new active item with zero stock.
func CreateItem(ctx context.Context, q db.DBTX, in model.ItemInput) (*model.Item, error) {
	id, ts := newID(), now()
	stockStatus := in.StockStatus
	if stockStatus == "" {
		stockStatus = model.StockStatusNew
	}

	_, err := exec(ctx, q,
		`INSERT INTO items (id, name, specification, maker, location, unit_price, purpose, min_stock,
		                    category, description, status, stock_status, current_quantity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, strings.TrimSpace(in.Name), strings.TrimSpace(in.Specification), in.Maker, in.Location,
		in.UnitPrice.Round(2), in.Purpose, in.MinStock, in.Category, in.Description,
		model.ItemStatusActive, stockStatus, ts, ts,
	)
	if isUniqueViolation(err) {
		return nil, model.Conflict("item %q (%s) already exists", in.Name, in.Specification)
	}
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, including inactive ones.
func GetItem(ctx context.Context, q db.DBTX, id string) (*model.Item, error) {
	item := &model.Item{}
	found, err := get(ctx, q, item, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if !found {
		return nil, nil
	}
	return item, nil
}

// FindActiveItem returns the active item with the given name and specification.
func FindActiveItem(ctx context.Context, q db.DBTX, name, specification string) (*model.Item, error) {
	item := &model.Item{}
	found, err := get(ctx, q, item,
		`SELECT `+itemColumns+` FROM items
		 WHERE name = ? AND specification = ? AND status = ?`+forUpdate(q),
		strings.TrimSpace(name), strings.TrimSpace(specification), model.ItemStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if !found {
		return nil, nil
	}
	return item, nil
}

// lockActiveItem loads an active item for modification inside a transaction.
func lockActiveItem(ctx context.Context, tx *sqlx.Tx, id string) (*model.Item, error) {
	item := &model.Item{}
	found, err := get(ctx, tx, item,
		`SELECT `+itemColumns+` FROM items WHERE id = ? AND status = ?`+forUpdate(tx),
		id, model.ItemStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("locking item: %w", err)
	}
	if !found {
		return nil, model.NotFound("item")
	}
	return item, nil
}

// ListItems returns active items matching the filter, ordered by name.
func ListItems(ctx context.Context, q db.DBTX, f model.ItemFilter) ([]model.Item, error) {
	where := []string{"status = ?"}
	args := []any{model.ItemStatusActive}

	if f.Query != "" {
		like := likeOp(q)
		where = append(where, fmt.Sprintf(
			"(name %[1]s ? ESCAPE '\\' OR specification %[1]s ? ESCAPE '\\' OR maker %[1]s ? ESCAPE '\\' OR description %[1]s ? ESCAPE '\\')", like))
		p := likePattern(f.Query)
		args = append(args, p, p, p, p)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.StockStatus != "" {
		where = append(where, "stock_status = ?")
		args = append(args, f.StockStatus)
	}
	if f.LowStock {
		where = append(where, "current_quantity <= min_stock")
	}
	if f.InStock {
		where = append(where, "current_quantity > 0")
	}

	items := []model.Item{}
	if err := sel(ctx, q, &items,
		`SELECT `+itemColumns+` FROM items WHERE `+strings.Join(where, " AND ")+` ORDER BY name, specification`,
		args...); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	// Money columns are TEXT on SQLite, so price bounds are applied here.
	if f.MinPrice == nil && f.MaxPrice == nil {
		return items, nil
	}
	filtered := items[:0]
	for _, it := range items {
		if f.MinPrice != nil && it.UnitPrice.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && it.UnitPrice.GreaterThan(*f.MaxPrice) {
			continue
		}
		filtered = append(filtered, it)
	}
	return filtered, nil
}

// UpdateItem updates an item's metadata. A unit price change is recorded in
// the stock history.
func UpdateItem(ctx context.Context, database *sqlx.DB, id string, in model.ItemInput, actor string) (*model.Item, error) {
	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		item, err := lockActiveItem(ctx, tx, id)
		if err != nil {
			return err
		}

		stockStatus := in.StockStatus
		if stockStatus == "" {
			stockStatus = item.StockStatus
		}
		price := in.UnitPrice.Round(2)

		_, err = exec(ctx, tx,
			`UPDATE items SET name = ?, specification = ?, maker = ?, location = ?, unit_price = ?, purpose = ?,
			        min_stock = ?, category = ?, description = ?, stock_status = ?, updated_at = ?
			 WHERE id = ?`,
			strings.TrimSpace(in.Name), strings.TrimSpace(in.Specification), in.Maker, in.Location, price,
			in.Purpose, in.MinStock, in.Category, in.Description, stockStatus, now(), id,
		)
		if isUniqueViolation(err) {
			return model.Conflict("item %q (%s) already exists", in.Name, in.Specification)
		}
		if err != nil {
			return fmt.Errorf("updating item: %w", err)
		}

		if !price.Equal(item.UnitPrice) {
			reason := fmt.Sprintf("unit price %s -> %s", item.UnitPrice.StringFixed(2), price.StringFixed(2))
			if err := appendHistory(ctx, tx, id, model.HistoryEdit, 0, item.CurrentQuantity, price, actor, reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, database, id)
}

// DeactivateItem hides an item from stock lists. Its history is kept.
func DeactivateItem(ctx context.Context, q db.DBTX, id string) error {
	res, err := exec(ctx, q,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.ItemStatusInactive, now(), id, model.ItemStatusActive,
	)
	if err != nil {
		return fmt.Errorf("deactivating item: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.NotFound("item")
	}
	return nil
}

// SetItemImageKey points an item at a stored image blob.
func SetItemImageKey(ctx context.Context, q db.DBTX, id, key string) error {
	res, err := exec(ctx, q,
		`UPDATE items SET image_key = ?, updated_at = ? WHERE id = ? AND status = ?`,
		key, now(), id, model.ItemStatusActive,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.NotFound("item")
	}
	return nil
}

// SearchItems runs an item search and summarizes the matches.
func SearchItems(ctx context.Context, q db.DBTX, in model.SearchInput) ([]model.Item, model.SearchStats, error) {
	items, err := ListItems(ctx, q, model.ItemFilter{
		Query:    in.Query,
		Category: in.Category,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		InStock:  in.InStock,
	})
	if err != nil {
		return nil, model.SearchStats{}, err
	}
	return items, SummarizeItems(items), nil
}

// SummarizeItems computes totals over a set of items.
func SummarizeItems(items []model.Item) model.SearchStats {
	stats := model.SearchStats{
		ResultCount:          len(items),
		TotalValue:           decimal.Zero,
		AveragePrice:         decimal.Zero,
		CategoryDistribution: map[string]int{},
	}

	priceSum := decimal.Zero
	for i := range items {
		it := &items[i]
		stats.TotalQuantity += it.CurrentQuantity
		stats.TotalValue = stats.TotalValue.Add(it.TotalValue())
		priceSum = priceSum.Add(it.UnitPrice)

		category := it.Category
		if category == "" {
			category = "uncategorized"
		}
		stats.CategoryDistribution[category]++
	}
	if len(items) > 0 {
		stats.AveragePrice = priceSum.Div(decimal.NewFromInt(int64(len(items)))).Round(2)
	}
	return stats
}
