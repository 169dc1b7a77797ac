package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const closingColumns = `id, run_no, period_year, period_quarter, period_month, period_type, total_items,
	total_value, status, notes, closed_by, closed_at, rollback_reason, rolled_back_by, rolled_back_at`

// CloseStock snapshots every active item with stock into a new closing run.
// A period that already has a completed run is only closed again with
// ForceReclose, which rolls the earlier run back.
func CloseStock(ctx context.Context, database *sqlx.DB, in model.ClosingInput, actor string) (*model.ClosingRun, error) {
	periodType, err := in.PeriodType()
	if err != nil {
		return nil, err
	}

	run := &model.ClosingRun{
		ID:            newID(),
		RunNo:         ulid.Make().String(),
		PeriodYear:    in.Year,
		PeriodQuarter: in.Quarter,
		PeriodMonth:   in.Month,
		PeriodType:    periodType,
		Status:        model.ClosingCompleted,
		Notes:         in.Notes,
		ClosedBy:      actor,
		ClosedAt:      now(),
		TotalValue:    decimal.Zero,
	}

	err = db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		existing, err := findCompletedRun(ctx, tx, in.Year, in.Quarter, in.Month)
		if err != nil {
			return err
		}
		if existing != nil {
			if !in.ForceReclose {
				return &model.Error{
					Code:    model.CodeConflict,
					Message: fmt.Sprintf("period %s is already closed", existing.PeriodLabel()),
					Details: map[string]string{"closing_id": existing.ID, "run_no": existing.RunNo},
				}
			}
			if err := markRolledBack(ctx, tx, existing.ID, "superseded by reclose "+run.RunNo, actor); err != nil {
				return err
			}
		}

		var items []model.Item
		if err := sel(ctx, tx, &items,
			`SELECT `+itemColumns+` FROM items WHERE status = ? AND current_quantity > 0 ORDER BY name, specification`,
			model.ItemStatusActive); err != nil {
			return fmt.Errorf("loading items for closing: %w", err)
		}

		for i := range items {
			run.TotalItems++
			run.TotalValue = run.TotalValue.Add(items[i].TotalValue())
		}

		if _, err := exec(ctx, tx,
			`INSERT INTO closing_runs (id, run_no, period_year, period_quarter, period_month, period_type,
			                           total_items, total_value, status, notes, closed_by, closed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.RunNo, run.PeriodYear, run.PeriodQuarter, run.PeriodMonth, run.PeriodType,
			run.TotalItems, run.TotalValue, run.Status, run.Notes, run.ClosedBy, run.ClosedAt,
		); err != nil {
			return fmt.Errorf("creating closing run: %w", err)
		}

		for i := range items {
			it := &items[i]
			if _, err := exec(ctx, tx,
				`INSERT INTO closing_items (closing_run_id, item_id, item_name, specification, quantity,
				                            unit_price, total_value)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, it.ID, it.Name, it.Specification, it.CurrentQuantity, it.UnitPrice.Round(2), it.TotalValue(),
			); err != nil {
				return fmt.Errorf("recording closing item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func findCompletedRun(ctx context.Context, q db.DBTX, year int, quarter, month *int) (*model.ClosingRun, error) {
	query := `SELECT ` + closingColumns + ` FROM closing_runs WHERE period_year = ? AND status = ?`
	args := []any{year, model.ClosingCompleted}
	if quarter != nil {
		query += ` AND period_quarter = ?`
		args = append(args, *quarter)
	} else {
		query += ` AND period_month = ?`
		args = append(args, *month)
	}

	run := &model.ClosingRun{}
	found, err := get(ctx, q, run, query+forUpdate(q), args...)
	if err != nil {
		return nil, fmt.Errorf("finding closing run: %w", err)
	}
	if !found {
		return nil, nil
	}
	return run, nil
}

func markRolledBack(ctx context.Context, tx *sqlx.Tx, id, reason, actor string) error {
	_, err := exec(ctx, tx,
		`UPDATE closing_runs SET status = ?, rollback_reason = ?, rolled_back_by = ?, rolled_back_at = ?
		 WHERE id = ?`,
		model.ClosingRolledBack, reason, actor, now(), id,
	)
	if err != nil {
		return fmt.Errorf("rolling back closing run: %w", err)
	}
	return nil
}

// RollbackClosing marks a completed closing run as rolled back.
func RollbackClosing(ctx context.Context, database *sqlx.DB, id, reason, actor string) (*model.ClosingRun, error) {
	if reason == "" {
		return nil, model.InvalidArgument("rollback reason is required")
	}

	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		run := &model.ClosingRun{}
		found, err := get(ctx, tx, run, `SELECT `+closingColumns+` FROM closing_runs WHERE id = ?`+forUpdate(tx), id)
		if err != nil {
			return fmt.Errorf("getting closing run: %w", err)
		}
		if !found {
			return model.NotFound("closing run")
		}
		if run.Status != model.ClosingCompleted {
			return model.Conflict("closing run %s is already rolled back", run.RunNo)
		}
		return markRolledBack(ctx, tx, id, reason, actor)
	})
	if err != nil {
		return nil, err
	}
	return GetClosing(ctx, database, id)
}

// GetClosing returns a closing run by ID.
func GetClosing(ctx context.Context, q db.DBTX, id string) (*model.ClosingRun, error) {
	run := &model.ClosingRun{}
	found, err := get(ctx, q, run, `SELECT `+closingColumns+` FROM closing_runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting closing run: %w", err)
	}
	if !found {
		return nil, nil
	}
	return run, nil
}

// ListClosings returns closing runs, newest first.
func ListClosings(ctx context.Context, q db.DBTX, year int) ([]model.ClosingRun, error) {
	query := `SELECT ` + closingColumns + ` FROM closing_runs`
	var args []any
	if year > 0 {
		query += ` WHERE period_year = ?`
		args = append(args, year)
	}

	runs := []model.ClosingRun{}
	if err := sel(ctx, q, &runs, query+` ORDER BY closed_at DESC`, args...); err != nil {
		return nil, fmt.Errorf("listing closing runs: %w", err)
	}
	return runs, nil
}

// ListClosingItems returns the item snapshot of a closing run.
func ListClosingItems(ctx context.Context, q db.DBTX, runID string) ([]model.ClosingItem, error) {
	items := []model.ClosingItem{}
	if err := sel(ctx, q, &items,
		`SELECT closing_run_id, item_id, item_name, specification, quantity, unit_price, total_value
		 FROM closing_items WHERE closing_run_id = ? ORDER BY item_name, specification`, runID); err != nil {
		return nil, fmt.Errorf("listing closing items: %w", err)
	}
	return items, nil
}
