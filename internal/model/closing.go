package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Closing run statuses.
const (
	ClosingCompleted  = "completed"
	ClosingRolledBack = "rolled_back"
)

// Closing period types.
const (
	PeriodQuarter = "quarter"
	PeriodMonth   = "month"
)

// ClosingRun is a snapshot of stock value at the end of a period.
type ClosingRun struct {
	ID             string          `db:"id" json:"id"`
	RunNo          string          `db:"run_no" json:"run_no"`
	PeriodYear     int             `db:"period_year" json:"period_year"`
	PeriodQuarter  *int            `db:"period_quarter" json:"period_quarter,omitempty"`
	PeriodMonth    *int            `db:"period_month" json:"period_month,omitempty"`
	PeriodType     string          `db:"period_type" json:"period_type"`
	TotalItems     int             `db:"total_items" json:"total_items"`
	TotalValue     decimal.Decimal `db:"total_value" json:"total_value"`
	Status         string          `db:"status" json:"status"`
	Notes          string          `db:"notes" json:"notes"`
	ClosedBy       string          `db:"closed_by" json:"closed_by"`
	ClosedAt       time.Time       `db:"closed_at" json:"closed_at"`
	RollbackReason string          `db:"rollback_reason" json:"rollback_reason,omitempty"`
	RolledBackBy   string          `db:"rolled_back_by" json:"rolled_back_by,omitempty"`
	RolledBackAt   *time.Time      `db:"rolled_back_at" json:"rolled_back_at,omitempty"`
}

// PeriodLabel renders the closed period, e.g. "2025-Q1" or "2025-03".
func (c *ClosingRun) PeriodLabel() string {
	if c.PeriodQuarter != nil {
		return fmt.Sprintf("%d-Q%d", c.PeriodYear, *c.PeriodQuarter)
	}
	if c.PeriodMonth != nil {
		return fmt.Sprintf("%d-%02d", c.PeriodYear, *c.PeriodMonth)
	}
	return fmt.Sprintf("%d", c.PeriodYear)
}

// ClosingItem is the per-item part of a closing snapshot.
type ClosingItem struct {
	ClosingRunID  string          `db:"closing_run_id" json:"closing_run_id"`
	ItemID        string          `db:"item_id" json:"item_id"`
	ItemName      string          `db:"item_name" json:"item_name"`
	Specification string          `db:"specification" json:"specification"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalValue    decimal.Decimal `db:"total_value" json:"total_value"`
}

// ClosingInput closes either a quarter or a month of a year.
type ClosingInput struct {
	Year         int    `json:"year" validate:"min=2020,max=2030"`
	Quarter      *int   `json:"quarter" validate:"omitempty,min=1,max=4"`
	Month        *int   `json:"month" validate:"omitempty,min=1,max=12"`
	Notes        string `json:"notes" validate:"max=500"`
	ForceReclose bool   `json:"force_reclose"`
}

// PeriodType returns the period kind, or an error unless exactly one of
// quarter and month is set.
func (in *ClosingInput) PeriodType() (string, error) {
	switch {
	case in.Quarter != nil && in.Month != nil:
		return "", InvalidArgument("specify either quarter or month, not both")
	case in.Quarter != nil:
		return PeriodQuarter, nil
	case in.Month != nil:
		return PeriodMonth, nil
	default:
		return "", InvalidArgument("quarter or month is required")
	}
}

// RollbackInput undoes a closing run.
type RollbackInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
