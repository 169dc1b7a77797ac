package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

// StockIn receives units into stock. The item is looked up by name and
// specification and created when missing. The unit price becomes the
// weighted average of the existing stock and the receipt.
func StockIn(ctx context.Context, database *sqlx.DB, in model.StockInInput, actor string) (*model.StockInResult, error) {
	if strings.TrimSpace(in.ItemName) == "" {
		return nil, model.InvalidArgument("item name is required")
	}

	var result model.StockInResult

	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		condition := in.ConditionType
		if condition == "" {
			condition = model.ConditionNew
		}

		item, err := FindActiveItem(ctx, tx, in.ItemName, in.Specification)
		if err != nil {
			return err
		}
		if item == nil {
			item, err = CreateItem(ctx, tx, model.ItemInput{
				Name:          in.ItemName,
				Specification: in.Specification,
				Maker:         in.Maker,
				Location:      in.Location,
				UnitPrice:     in.UnitPrice,
				Category:      in.Category,
				StockStatus:   model.StockStatusFor(condition),
			})
			if err != nil {
				return err
			}
			result.ItemCreated = true
		}

		result.OldQuantity = item.CurrentQuantity
		result.OldPrice = item.UnitPrice
		result.NewQuantity = item.CurrentQuantity + in.Quantity
		result.NewPrice = model.WeightedAveragePrice(item.CurrentQuantity, item.UnitPrice, in.Quantity, in.UnitPrice)

		ts := now()
		if _, err := exec(ctx, tx,
			`UPDATE items SET current_quantity = ?, unit_price = ?, updated_at = ? WHERE id = ?`,
			result.NewQuantity, result.NewPrice, ts, item.ID,
		); err != nil {
			return fmt.Errorf("updating item stock: %w", err)
		}

		result.StockIn = model.StockIn{
			ID:            newID(),
			ItemID:        item.ID,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice.Round(2),
			ConditionType: condition,
			Reason:        in.Reason,
			OrderedBy:     in.OrderedBy,
			Notes:         in.Notes,
			ReceivedBy:    actor,
			ReceivedAt:    ts,
		}
		if _, err := exec(ctx, tx,
			`INSERT INTO stock_in (id, item_id, quantity, unit_price, condition_type, reason, ordered_by,
			                       notes, received_by, received_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.StockIn.ID, item.ID, in.Quantity, result.StockIn.UnitPrice, condition, in.Reason,
			in.OrderedBy, in.Notes, actor, ts,
		); err != nil {
			return fmt.Errorf("recording stock in: %w", err)
		}

		if err := appendHistory(ctx, tx, item.ID, model.HistoryIn, in.Quantity, result.NewQuantity,
			result.StockIn.UnitPrice, actor, in.Reason); err != nil {
			return err
		}

		updated, err := GetItem(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		result.Item = *updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// StockOut issues units of an item. Requests larger than the current
// quantity fail with INSUFFICIENT_STOCK and change nothing.
func StockOut(ctx context.Context, database *sqlx.DB, in model.StockOutInput, actor string) (*model.StockOutResult, error) {
	var result model.StockOutResult

	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		item, err := lockActiveItem(ctx, tx, in.ItemID)
		if err != nil {
			return err
		}
		if in.Quantity > item.CurrentQuantity {
			return model.InsufficientStock(item.CurrentQuantity, in.Quantity)
		}

		result.OldQuantity = item.CurrentQuantity
		result.NewQuantity = item.CurrentQuantity - in.Quantity

		ts := now()
		if _, err := exec(ctx, tx,
			`UPDATE items SET current_quantity = ?, updated_at = ? WHERE id = ?`,
			result.NewQuantity, ts, item.ID,
		); err != nil {
			return fmt.Errorf("updating item stock: %w", err)
		}

		result.StockOut = model.StockOut{
			ID:         newID(),
			ItemID:     item.ID,
			Quantity:   in.Quantity,
			Project:    in.Project,
			Notes:      in.Notes,
			IsRental:   in.IsRental,
			ReturnDate: in.ReturnDate,
			IssuedBy:   actor,
			IssuedAt:   ts,
		}
		if _, err := exec(ctx, tx,
			`INSERT INTO stock_out (id, item_id, quantity, project, notes, is_rental, return_date, issued_by, issued_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.StockOut.ID, item.ID, in.Quantity, in.Project, in.Notes, in.IsRental, in.ReturnDate, actor, ts,
		); err != nil {
			return fmt.Errorf("recording stock out: %w", err)
		}

		reason := in.Project
		if reason == "" {
			reason = in.Notes
		}
		if err := appendHistory(ctx, tx, item.ID, model.HistoryOut, -in.Quantity, result.NewQuantity,
			item.UnitPrice, actor, reason); err != nil {
			return err
		}

		item.CurrentQuantity = result.NewQuantity
		item.UpdatedAt = ts
		result.Item = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ProcessBulk runs each operation in its own transaction so one failure does
// not undo the others.
func ProcessBulk(ctx context.Context, database *sqlx.DB, in model.BulkInput, actor string) model.BulkResult {
	result := model.BulkResult{Results: make([]model.BulkOpResult, 0, len(in.Operations))}

	for i, op := range in.Operations {
		r := model.BulkOpResult{Index: i}

		var itemID string
		var err error
		switch in.OperationType {
		case model.BulkStockIn:
			name, spec := op.ItemName, op.Specification
			if op.ItemID != "" {
				name, spec, err = itemIdentity(ctx, database, op.ItemID)
				if err != nil {
					break
				}
			}
			var res *model.StockInResult
			res, err = StockIn(ctx, database, model.StockInInput{
				ItemName:      name,
				Specification: spec,
				Quantity:      op.Quantity,
				UnitPrice:     op.UnitPrice,
				ConditionType: op.ConditionType,
				Reason:        op.Reason,
				OrderedBy:     op.OrderedBy,
				Notes:         op.Notes,
			}, actor)
			if res != nil {
				itemID = res.Item.ID
			}
		case model.BulkStockOut:
			itemID = op.ItemID
			if itemID == "" {
				itemID, err = resolveItemID(ctx, database, op.ItemName, op.Specification)
			}
			if err == nil {
				_, err = StockOut(ctx, database, model.StockOutInput{
					ItemID:   itemID,
					Quantity: op.Quantity,
					Project:  op.Project,
					Notes:    op.Notes,
				}, actor)
			}
		default:
			err = model.InvalidArgument("unknown operation type %q", in.OperationType)
		}

		if err != nil {
			r.Error = err.Error()
			var merr *model.Error
			if errors.As(err, &merr) {
				r.Code = merr.Code
				r.Error = merr.Message
			}
			result.FailureCount++
		} else {
			r.Success = true
			r.ItemID = itemID
			result.SuccessCount++
		}
		result.Results = append(result.Results, r)
	}

	return result
}

// itemIdentity returns the name and specification of an active item, the
// key stock-in uses to find it.
func itemIdentity(ctx context.Context, q db.DBTX, id string) (string, string, error) {
	item, err := GetItem(ctx, q, id)
	if err != nil {
		return "", "", err
	}
	if item == nil || item.Status != model.ItemStatusActive {
		return "", "", model.NotFound("item")
	}
	return item.Name, item.Specification, nil
}

func resolveItemID(ctx context.Context, q db.DBTX, name, specification string) (string, error) {
	item, err := FindActiveItem(ctx, q, name, specification)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", model.NotFound("item")
	}
	return item.ID, nil
}

// AdjustStock corrects an item's quantity by adding, subtracting or setting.
func AdjustStock(ctx context.Context, database *sqlx.DB, in model.AdjustInput, actor string) (*model.AdjustResult, error) {
	var result model.AdjustResult

	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		item, err := lockActiveItem(ctx, tx, in.ItemID)
		if err != nil {
			return err
		}

		newQty := item.CurrentQuantity
		switch in.AdjustmentType {
		case model.AdjustAdd:
			newQty += in.Quantity
		case model.AdjustSubtract:
			if in.Quantity > item.CurrentQuantity {
				return model.InsufficientStock(item.CurrentQuantity, in.Quantity)
			}
			newQty -= in.Quantity
		case model.AdjustSet:
			newQty = in.Quantity
		default:
			return model.InvalidArgument("unknown adjustment type %q", in.AdjustmentType)
		}

		result.OldQuantity = item.CurrentQuantity
		result.NewQuantity = newQty
		result.Delta = newQty - item.CurrentQuantity

		ts := now()
		if _, err := exec(ctx, tx,
			`UPDATE items SET current_quantity = ?, updated_at = ? WHERE id = ?`, newQty, ts, item.ID,
		); err != nil {
			return fmt.Errorf("adjusting item stock: %w", err)
		}

		reason := in.Reason
		if in.Notes != "" {
			reason += " (" + in.Notes + ")"
		}
		if err := appendHistory(ctx, tx, item.ID, model.HistoryAdjust, result.Delta, newQty,
			item.UnitPrice, actor, reason); err != nil {
			return err
		}

		item.CurrentQuantity = newQty
		item.UpdatedAt = ts
		result.Item = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DisposeStock writes off units of several items. Each entry is applied in
// its own transaction and reported separately.
func DisposeStock(ctx context.Context, database *sqlx.DB, in model.DisposalInput, actor string) []model.DisposalResult {
	results := make([]model.DisposalResult, 0, len(in.Items))

	for _, entry := range in.Items {
		r := model.DisposalResult{ItemID: entry.ItemID}

		err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
			item, err := lockActiveItem(ctx, tx, entry.ItemID)
			if err != nil {
				return err
			}
			if entry.Quantity > item.CurrentQuantity {
				return model.InsufficientStock(item.CurrentQuantity, entry.Quantity)
			}

			newQty := item.CurrentQuantity - entry.Quantity
			if _, err := exec(ctx, tx,
				`UPDATE items SET current_quantity = ?, updated_at = ? WHERE id = ?`, newQty, now(), item.ID,
			); err != nil {
				return fmt.Errorf("disposing stock: %w", err)
			}
			if err := appendHistory(ctx, tx, item.ID, model.HistoryDisposal, -entry.Quantity, newQty,
				item.UnitPrice, actor, entry.Reason); err != nil {
				return err
			}
			r.NewQuantity = newQty
			return nil
		})

		if err != nil {
			r.Error = err.Error()
			var merr *model.Error
			if errors.As(err, &merr) {
				r.Error = merr.Message
			}
		} else {
			r.Success = true
		}
		results = append(results, r)
	}

	return results
}

func appendHistory(ctx context.Context, tx *sqlx.Tx, itemID, kind string, delta, after int, price decimal.Decimal, actor, reason string) error {
	_, err := exec(ctx, tx,
		`INSERT INTO stock_history (id, item_id, kind, delta, quantity_after, unit_price, actor, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		newID(), itemID, kind, delta, after, price.Round(2), actor, reason, now(),
	)
	if err != nil {
		return fmt.Errorf("recording stock history: %w", err)
	}
	return nil
}

// ListHistory returns stock history entries, newest first.
func ListHistory(ctx context.Context, q db.DBTX, f model.HistoryFilter) ([]model.StockHistory, error) {
	where := []string{"1 = 1"}
	var args []any

	if f.ItemID != "" {
		where = append(where, "h.item_id = ?")
		args = append(args, f.ItemID)
	}
	if f.Kind != "" {
		where = append(where, "h.kind = ?")
		args = append(args, f.Kind)
	}
	if f.From != nil {
		where = append(where, "h.created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "h.created_at <= ?")
		args = append(args, f.To.UTC())
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	args = append(args, limit)

	history := []model.StockHistory{}
	if err := sel(ctx, q, &history,
		`SELECT h.id, h.item_id, i.name AS item_name, h.kind, h.delta, h.quantity_after, h.unit_price,
		        h.actor, h.reason, h.created_at
		 FROM stock_history h
		 JOIN items i ON i.id = h.item_id
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY h.created_at DESC, h.id
		 LIMIT ?`, args...); err != nil {
		return nil, fmt.Errorf("listing stock history: %w", err)
	}
	return history, nil
}
