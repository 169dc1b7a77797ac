package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockIn records units received into stock.
type StockIn struct {
	ID            string          `db:"id" json:"id"`
	ItemID        string          `db:"item_id" json:"item_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	ConditionType string          `db:"condition_type" json:"condition_type"`
	Reason        string          `db:"reason" json:"reason"`
	OrderedBy     string          `db:"ordered_by" json:"ordered_by"`
	Notes         string          `db:"notes" json:"notes"`
	ReceivedBy    string          `db:"received_by" json:"received_by"`
	ReceivedAt    time.Time       `db:"received_at" json:"received_at"`
}

// StockOut records units issued from stock.
type StockOut struct {
	ID         string     `db:"id" json:"id"`
	ItemID     string     `db:"item_id" json:"item_id"`
	Quantity   int        `db:"quantity" json:"quantity"`
	Project    string     `db:"project" json:"project"`
	Notes      string     `db:"notes" json:"notes"`
	IsRental   bool       `db:"is_rental" json:"is_rental"`
	ReturnDate *time.Time `db:"return_date" json:"return_date,omitempty"`
	IssuedBy   string     `db:"issued_by" json:"issued_by"`
	IssuedAt   time.Time  `db:"issued_at" json:"issued_at"`
}

// History kinds.
const (
	HistoryIn       = "in"
	HistoryOut      = "out"
	HistoryAdjust   = "adjust"
	HistoryDisposal = "disposal"
	HistoryEdit     = "edit"
)

// StockHistory is one append-only entry per quantity or price change.
type StockHistory struct {
	ID            string          `db:"id" json:"id"`
	ItemID        string          `db:"item_id" json:"item_id"`
	ItemName      string          `db:"item_name" json:"item_name,omitempty"`
	Kind          string          `db:"kind" json:"kind"`
	Delta         int             `db:"delta" json:"delta"`
	QuantityAfter int             `db:"quantity_after" json:"quantity_after"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	Actor         string          `db:"actor" json:"actor"`
	Reason        string          `db:"reason" json:"reason"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// HistoryFilter narrows stock history queries.
type HistoryFilter struct {
	ItemID string
	Kind   string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// Stock-in condition types.
const (
	ConditionNew           = "new"
	ConditionUsedGood      = "used_good"
	ConditionUsedDefective = "used_defective"
	ConditionUnknown       = "unknown"
)

// StockStatusFor maps a receipt condition to the item's stock status.
func StockStatusFor(condition string) string {
	switch condition {
	case ConditionUsedGood:
		return StockStatusUsedNew
	case ConditionUsedDefective:
		return StockStatusBroken
	case ConditionUnknown:
		return StockStatusUsedUsed
	default:
		return StockStatusNew
	}
}

// StockInInput receives units of an item identified by name and specification.
// The item is created when it does not exist yet.
type StockInInput struct {
	ItemName      string          `json:"item_name" validate:"required,max=100"`
	Specification string          `json:"specification" validate:"max=200"`
	Quantity      int             `json:"quantity" validate:"min=1,max=999999"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"min=0,max=999999999"`
	ConditionType string          `json:"condition_type" validate:"omitempty,oneof=new used_good used_defective unknown"`
	Reason        string          `json:"reason" validate:"max=200"`
	OrderedBy     string          `json:"ordered_by" validate:"max=100"`
	Notes         string          `json:"notes" validate:"max=500"`
	Category      string          `json:"category" validate:"max=50"`
	Maker         string          `json:"maker" validate:"max=100"`
	Location      string          `json:"location" validate:"max=100"`
}

// StockOutInput issues units of an existing item.
type StockOutInput struct {
	ItemID     string     `json:"item_id" validate:"required,uuid"`
	Quantity   int        `json:"quantity" validate:"min=1,max=999999"`
	Project    string     `json:"project" validate:"max=100"`
	Notes      string     `json:"notes" validate:"max=500"`
	IsRental   bool       `json:"is_rental"`
	ReturnDate *time.Time `json:"return_date"`
}

// StockInResult reports the item state after a receipt.
type StockInResult struct {
	StockIn     StockIn         `json:"stock_in"`
	Item        Item            `json:"item"`
	ItemCreated bool            `json:"item_created"`
	OldQuantity int             `json:"old_quantity"`
	NewQuantity int             `json:"new_quantity"`
	OldPrice    decimal.Decimal `json:"old_unit_price"`
	NewPrice    decimal.Decimal `json:"new_unit_price"`
}

// StockOutResult reports the item state after an issue.
type StockOutResult struct {
	StockOut    StockOut `json:"stock_out"`
	Item        Item     `json:"item"`
	OldQuantity int      `json:"old_quantity"`
	NewQuantity int      `json:"new_quantity"`
}

// Bulk operation types.
const (
	BulkStockIn  = "stock_in"
	BulkStockOut = "stock_out"
)

// BulkOperation is one entry of a bulk request. Entries name an item either
// by ItemID or by ItemName and Specification.
type BulkOperation struct {
	ItemName      string          `json:"item_name" validate:"required_without=ItemID,max=100"`
	ItemID        string          `json:"item_id" validate:"omitempty,uuid"`
	Specification string          `json:"specification" validate:"max=200"`
	Quantity      int             `json:"quantity" validate:"min=1,max=999999"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"min=0,max=999999999"`
	ConditionType string          `json:"condition_type" validate:"omitempty,oneof=new used_good used_defective unknown"`
	Reason        string          `json:"reason" validate:"max=200"`
	OrderedBy     string          `json:"ordered_by" validate:"max=100"`
	Project       string          `json:"project" validate:"max=100"`
	Notes         string          `json:"notes" validate:"max=500"`
}

// BulkInput is a batch of operations of a single type.
type BulkInput struct {
	OperationType string          `json:"operation_type" validate:"required,oneof=stock_in stock_out"`
	Operations    []BulkOperation `json:"operations" validate:"min=1,max=100,dive"`
}

// BulkOpResult is the outcome of one bulk operation.
type BulkOpResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	ItemID  string `json:"item_id,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// BulkResult summarizes a bulk request.
type BulkResult struct {
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
	Results      []BulkOpResult `json:"results"`
}

// Adjustment types.
const (
	AdjustAdd      = "add"
	AdjustSubtract = "subtract"
	AdjustSet      = "set"
)

// AdjustInput corrects an item's quantity.
type AdjustInput struct {
	ItemID         string `json:"item_id" validate:"required,uuid"`
	AdjustmentType string `json:"adjustment_type" validate:"required,oneof=add subtract set"`
	Quantity       int    `json:"quantity" validate:"min=0,max=999999"`
	Reason         string `json:"reason" validate:"required,max=200"`
	Notes          string `json:"notes" validate:"max=500"`
}

// AdjustResult reports an adjustment.
type AdjustResult struct {
	Item        Item `json:"item"`
	OldQuantity int  `json:"old_quantity"`
	NewQuantity int  `json:"new_quantity"`
	Delta       int  `json:"delta"`
}

// DisposalEntry disposes of units of one item.
type DisposalEntry struct {
	ItemID   string `json:"id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"min=1,max=999999"`
	Reason   string `json:"reason" validate:"max=200"`
}

// DisposalInput is a batch of disposals.
type DisposalInput struct {
	Items []DisposalEntry `json:"items" validate:"min=1,max=100,dive"`
}

// DisposalResult is the outcome for one disposal entry.
type DisposalResult struct {
	ItemID      string `json:"id"`
	Success     bool   `json:"success"`
	NewQuantity int    `json:"new_quantity,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SearchStats summarizes an item search.
type SearchStats struct {
	ResultCount          int             `json:"result_count"`
	TotalQuantity        int             `json:"total_quantity"`
	TotalValue           decimal.Decimal `json:"total_value"`
	AveragePrice         decimal.Decimal `json:"average_price"`
	CategoryDistribution map[string]int  `json:"category_distribution"`
}

// SearchInput is the body of an item search.
type SearchInput struct {
	Query    string           `json:"query" validate:"required,max=200"`
	Category string           `json:"category" validate:"max=50"`
	MinPrice *decimal.Decimal `json:"min_price"`
	MaxPrice *decimal.Decimal `json:"max_price"`
	InStock  bool             `json:"in_stock"`
}

// WeightedAveragePrice blends an existing stock valuation with a new receipt:
// (q0*p0 + q*p) / (q0 + q), rounded to two decimal places.
// With no existing stock the receipt price is returned.
func WeightedAveragePrice(q0 int, p0 decimal.Decimal, q int, p decimal.Decimal) decimal.Decimal {
	if q0 <= 0 {
		return p.Round(2)
	}
	total := decimal.NewFromInt(int64(q0 + q))
	if total.IsZero() {
		return p.Round(2)
	}
	value := p0.Mul(decimal.NewFromInt(int64(q0))).Add(p.Mul(decimal.NewFromInt(int64(q))))
	return value.Div(total).Round(2)
}
