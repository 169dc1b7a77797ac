package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

func createTestItem(t *testing.T, q db.DBTX, name, spec string) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), q, model.ItemInput{
		Name:          name,
		Specification: spec,
		UnitPrice:     decimal.NewFromInt(1000),
		Category:      "cable",
	})
	if err != nil {
		t.Fatalf("CreateItem(%q): %v", name, err)
	}
	return item
}

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := createTestItem(t, database, "CV Cable", "6SQ")
	if item.Status != model.ItemStatusActive {
		t.Errorf("expected status 'active', got %q", item.Status)
	}
	if item.StockStatus != model.StockStatusNew {
		t.Errorf("expected stock status 'new', got %q", item.StockStatus)
	}
	if !item.UnitPrice.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected unit price 1000, got %s", item.UnitPrice)
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil || got == nil {
		t.Fatalf("GetItem: %v, %v", got, err)
	}
	if got.Name != "CV Cable" {
		t.Errorf("expected name 'CV Cable', got %q", got.Name)
	}
}

func TestCreateItemDuplicate(t *testing.T) {
	database := db.NewTestDB(t)
	createTestItem(t, database, "Breaker", "30A")

	_, err := CreateItem(context.Background(), database, model.ItemInput{Name: "Breaker", Specification: "30A"})
	var merr *model.Error
	if !errors.As(err, &merr) || merr.Code != model.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	// A different specification is a different item.
	createTestItem(t, database, "Breaker", "50A")
}

func TestDeactivateItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := createTestItem(t, database, "Delete Me", "")
	if err := DeactivateItem(ctx, database, item.ID); err != nil {
		t.Fatal(err)
	}

	items, _ := ListItems(ctx, database, model.ItemFilter{})
	if len(items) != 0 {
		t.Errorf("expected 0 items after deactivation, got %d", len(items))
	}

	// Should still be fetchable by ID for history.
	got, _ := GetItem(ctx, database, item.ID)
	if got == nil || got.Status != model.ItemStatusInactive {
		t.Errorf("expected inactive item, got %+v", got)
	}

	// Name becomes free again.
	createTestItem(t, database, "Delete Me", "")

	err := DeactivateItem(ctx, database, item.ID)
	var merr *model.Error
	if !errors.As(err, &merr) || merr.Code != model.CodeNotFound {
		t.Errorf("expected NOT_FOUND on second deactivation, got %v", err)
	}
}

func TestListItemsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	createTestItem(t, database, "Copper wire", "2.5SQ")
	lamp, _ := CreateItem(ctx, database, model.ItemInput{Name: "LED lamp", Category: "lighting", MinStock: 5, UnitPrice: decimal.NewFromInt(20000)})
	createTestItem(t, database, "50%_off tag", "")

	tests := []struct {
		name   string
		filter model.ItemFilter
		want   int
	}{
		{"all", model.ItemFilter{}, 3},
		{"query case-insensitive", model.ItemFilter{Query: "copper"}, 1},
		{"category", model.ItemFilter{Category: "lighting"}, 1},
		{"low stock", model.ItemFilter{LowStock: true}, 3},
		{"wildcards escaped", model.ItemFilter{Query: "%_"}, 1},
		{"in stock", model.ItemFilter{InStock: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ListItems(ctx, database, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(items) != tt.want {
				t.Errorf("expected %d items, got %d", tt.want, len(items))
			}
		})
	}

	minPrice := decimal.NewFromInt(5000)
	items, _ := ListItems(ctx, database, model.ItemFilter{MinPrice: &minPrice})
	if len(items) != 1 || items[0].ID != lamp.ID {
		t.Errorf("expected only the lamp above 5000, got %d items", len(items))
	}
}

func TestUpdateItemRecordsPriceEdit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := createTestItem(t, database, "Relay", "24V")
	in := model.ItemInput{Name: "Relay", Specification: "24V", UnitPrice: decimal.NewFromInt(1200), Location: "A-1"}

	updated, err := UpdateItem(ctx, database, item.ID, in, "admin")
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Location != "A-1" || !updated.UnitPrice.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("update not applied: %+v", updated)
	}

	history, _ := ListHistory(ctx, database, model.HistoryFilter{ItemID: item.ID})
	if len(history) != 1 || history[0].Kind != model.HistoryEdit {
		t.Fatalf("expected one edit entry, got %+v", history)
	}

	// Same price again records nothing new.
	in.Location = "A-2"
	if _, err := UpdateItem(ctx, database, item.ID, in, "admin"); err != nil {
		t.Fatal(err)
	}
	history, _ = ListHistory(ctx, database, model.HistoryFilter{ItemID: item.ID})
	if len(history) != 1 {
		t.Errorf("expected history unchanged, got %d entries", len(history))
	}
}

func TestSummarizeItems(t *testing.T) {
	items := []model.Item{
		{UnitPrice: decimal.NewFromInt(100), CurrentQuantity: 2, Category: "a"},
		{UnitPrice: decimal.NewFromInt(300), CurrentQuantity: 1, Category: "a"},
		{UnitPrice: decimal.NewFromInt(50), CurrentQuantity: 0},
	}
	stats := SummarizeItems(items)

	if stats.ResultCount != 3 || stats.TotalQuantity != 3 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if !stats.TotalValue.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected total value 500, got %s", stats.TotalValue)
	}
	if !stats.AveragePrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected average price 150, got %s", stats.AveragePrice)
	}
	if stats.CategoryDistribution["a"] != 2 || stats.CategoryDistribution["uncategorized"] != 1 {
		t.Errorf("unexpected distribution: %v", stats.CategoryDistribution)
	}
}
