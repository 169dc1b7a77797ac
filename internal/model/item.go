package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a stock-keeping unit identified by name and specification.
type Item struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Specification   string          `db:"specification" json:"specification"`
	Maker           string          `db:"maker" json:"maker"`
	Location        string          `db:"location" json:"location"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	Purpose         string          `db:"purpose" json:"purpose"`
	MinStock        int             `db:"min_stock" json:"min_stock"`
	Category        string          `db:"category" json:"category"`
	Description     string          `db:"description" json:"description"`
	Status          string          `db:"status" json:"status"`
	StockStatus     string          `db:"stock_status" json:"stock_status"`
	CurrentQuantity int             `db:"current_quantity" json:"current_quantity"`
	ImageKey        string          `db:"image_key" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// HasImage reports whether a photo is stored for the item.
func (i *Item) HasImage() bool {
	return i.ImageKey != ""
}

// TotalValue is the current quantity valued at the unit price.
func (i *Item) TotalValue() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.CurrentQuantity))).Round(2)
}

// Item statuses. Inactive items are hidden from stock lists but keep their history.
const (
	ItemStatusActive   = "active"
	ItemStatusInactive = "inactive"
)

// Stock statuses describe the physical condition of the units held.
const (
	StockStatusNew      = "new"
	StockStatusUsedNew  = "used-new"
	StockStatusUsedUsed = "used-used"
	StockStatusBroken   = "broken"
)

// ItemInput is the editable part of an item.
type ItemInput struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Specification string          `json:"specification" validate:"max=200"`
	Maker         string          `json:"maker" validate:"max=100"`
	Location      string          `json:"location" validate:"max=100"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"min=0,max=999999999"`
	Purpose       string          `json:"purpose" validate:"max=200"`
	MinStock      int             `json:"min_stock" validate:"min=0,max=999999"`
	Category      string          `json:"category" validate:"max=50"`
	Description   string          `json:"description" validate:"max=1000"`
	StockStatus   string          `json:"stock_status" validate:"omitempty,oneof=new used-new used-used broken"`
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	Query       string
	Category    string
	StockStatus string
	LowStock    bool
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStock     bool
}
