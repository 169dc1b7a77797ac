package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const bidColumns = `id, source, external_id, title, company, price, deadline, status, url, description,
	location, category, keyword, created_at`

// InsertBid stores a bid unless one with the same source and external id
// already exists. It reports whether the bid was new.
func InsertBid(ctx context.Context, q db.DBTX, b *model.BidItem) (bool, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}
	if b.Status == "" {
		b.Status = model.BidActive
	}

	res, err := exec(ctx, q,
		`INSERT INTO bid_items (id, source, external_id, title, company, price, deadline, status, url,
		                        description, location, category, keyword, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source, external_id) DO NOTHING`,
		b.ID, b.Source, b.ExternalID, b.Title, b.Company, b.Price, b.Deadline, b.Status, b.URL,
		b.Description, b.Location, b.Category, b.Keyword, b.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting bid: %w", err)
	}
	return rowsAffected(res) > 0, nil
}

// ListBids returns bids matching the filter, newest first.
func ListBids(ctx context.Context, q db.DBTX, f model.BidFilter) ([]model.BidItem, error) {
	where := []string{"1 = 1"}
	var args []any

	if len(f.Keywords) > 0 {
		like := likeOp(q)
		var clauses []string
		for _, kw := range f.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			clauses = append(clauses, fmt.Sprintf(
				"(title %[1]s ? ESCAPE '\\' OR description %[1]s ? ESCAPE '\\' OR category %[1]s ? ESCAPE '\\')", like))
			p := likePattern(kw)
			args = append(args, p, p, p)
		}
		if len(clauses) > 0 {
			where = append(where, "("+strings.Join(clauses, " OR ")+")")
		}
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	args = append(args, limit)

	bids := []model.BidItem{}
	if err := sel(ctx, q, &bids,
		`SELECT `+bidColumns+` FROM bid_items WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY created_at DESC LIMIT ?`, args...); err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	return bids, nil
}

// CountBids returns the total number of bids and those created since.
func CountBids(ctx context.Context, q db.DBTX, since time.Time) (total, recent int, err error) {
	if _, err = get(ctx, q, &total, `SELECT COUNT(*) FROM bid_items`); err != nil {
		return 0, 0, fmt.Errorf("counting bids: %w", err)
	}
	if _, err = get(ctx, q, &recent, `SELECT COUNT(*) FROM bid_items WHERE created_at > ?`, since.UTC()); err != nil {
		return 0, 0, fmt.Errorf("counting recent bids: %w", err)
	}
	return total, recent, nil
}

// DeleteBidsBefore removes bids created before cutoff and returns how many.
func DeleteBidsBefore(ctx context.Context, q db.DBTX, cutoff time.Time) (int64, error) {
	res, err := exec(ctx, q, `DELETE FROM bid_items WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting old bids: %w", err)
	}
	return rowsAffected(res), nil
}
