package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestWeightedAveragePrice(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name string
		q0   int
		p0   string
		q    int
		p    string
		want string
	}{
		{"empty stock takes receipt price", 0, "0", 10, "1500", "1500"},
		{"equal quantities", 10, "1000", 10, "2000", "1500"},
		{"uneven blend", 3, "100", 1, "200", "125"},
		{"rounds to two places", 3, "10", 0, "0", "10"},
		{"repeating decimal", 2, "10", 1, "11", "10.33"},
		{"negative existing treated as empty", -5, "999", 2, "50", "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAveragePrice(tt.q0, d(tt.p0), tt.q, d(tt.p))
			if !got.Equal(d(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStockStatusFor(t *testing.T) {
	tests := map[string]string{
		ConditionNew:           StockStatusNew,
		"":                     StockStatusNew,
		ConditionUsedGood:      StockStatusUsedNew,
		ConditionUsedDefective: StockStatusBroken,
		ConditionUnknown:       StockStatusUsedUsed,
	}
	for in, want := range tests {
		if got := StockStatusFor(in); got != want {
			t.Errorf("StockStatusFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestItemTotalValue(t *testing.T) {
	item := Item{UnitPrice: decimal.RequireFromString("12.345"), CurrentQuantity: 3}
	if got := item.TotalValue(); !got.Equal(decimal.RequireFromString("37.04")) {
		t.Errorf("TotalValue = %s, want 37.04", got)
	}
}
