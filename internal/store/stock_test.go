package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

func TestStockInCreatesItemAndAverages(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := StockIn(ctx, database, model.StockInInput{
		ItemName: "CV Cable", Specification: "6SQ", Quantity: 10, UnitPrice: decimal.NewFromInt(1000),
	}, "kim")
	if err != nil {
		t.Fatalf("first StockIn: %v", err)
	}
	if !first.ItemCreated {
		t.Error("expected item to be created")
	}
	if first.NewQuantity != 10 || !first.NewPrice.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("unexpected first result: qty %d price %s", first.NewQuantity, first.NewPrice)
	}

	second, err := StockIn(ctx, database, model.StockInInput{
		ItemName: "CV Cable", Specification: "6SQ", Quantity: 5, UnitPrice: decimal.NewFromInt(1300),
	}, "kim")
	if err != nil {
		t.Fatalf("second StockIn: %v", err)
	}
	if second.ItemCreated {
		t.Error("expected existing item to be reused")
	}
	if second.Item.ID != first.Item.ID {
		t.Error("expected same item id")
	}
	// (10*1000 + 5*1300) / 15 = 1100
	if second.NewQuantity != 15 || !second.NewPrice.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("expected 15 @ 1100, got %d @ %s", second.NewQuantity, second.NewPrice)
	}

	item, _ := GetItem(ctx, database, first.Item.ID)
	if item.CurrentQuantity != 15 || !item.UnitPrice.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("stored item mismatch: %d @ %s", item.CurrentQuantity, item.UnitPrice)
	}

	history, _ := ListHistory(ctx, database, model.HistoryFilter{ItemID: item.ID})
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	for _, h := range history {
		if h.Kind != model.HistoryIn || h.ItemName != "CV Cable" {
			t.Errorf("unexpected history entry %+v", h)
		}
	}
}

func TestStockInConditionSetsStockStatus(t *testing.T) {
	database := db.NewTestDB(t)

	res, err := StockIn(context.Background(), database, model.StockInInput{
		ItemName: "Used breaker", Quantity: 1, ConditionType: model.ConditionUsedDefective,
	}, "kim")
	if err != nil {
		t.Fatal(err)
	}
	if res.Item.StockStatus != model.StockStatusBroken {
		t.Errorf("expected broken stock status, got %q", res.Item.StockStatus)
	}
	if res.StockIn.ConditionType != model.ConditionUsedDefective {
		t.Errorf("expected condition recorded, got %q", res.StockIn.ConditionType)
	}
}

func TestStockOut(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	in, _ := StockIn(ctx, database, model.StockInInput{ItemName: "Fuse", Quantity: 5, UnitPrice: decimal.NewFromInt(100)}, "kim")

	out, err := StockOut(ctx, database, model.StockOutInput{ItemID: in.Item.ID, Quantity: 3, Project: "Plant A"}, "lee")
	if err != nil {
		t.Fatalf("StockOut: %v", err)
	}
	if out.OldQuantity != 5 || out.NewQuantity != 2 {
		t.Errorf("expected 5 -> 2, got %d -> %d", out.OldQuantity, out.NewQuantity)
	}

	_, err = StockOut(ctx, database, model.StockOutInput{ItemID: in.Item.ID, Quantity: 3}, "lee")
	var merr *model.Error
	if !errors.As(err, &merr) || merr.Code != model.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	details, _ := merr.Details.(map[string]int)
	if details["current"] != 2 || details["requested"] != 3 {
		t.Errorf("unexpected details %v", merr.Details)
	}

	item, _ := GetItem(ctx, database, in.Item.ID)
	if item.CurrentQuantity != 2 {
		t.Errorf("failed stock out must not change quantity, got %d", item.CurrentQuantity)
	}

	_, err = StockOut(ctx, database, model.StockOutInput{ItemID: newID(), Quantity: 1}, "lee")
	if !errors.As(err, &merr) || merr.Code != model.CodeNotFound {
		t.Errorf("expected NOT_FOUND for unknown item, got %v", err)
	}
}

func TestProcessBulk(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	res := ProcessBulk(ctx, database, model.BulkInput{
		OperationType: model.BulkStockIn,
		Operations: []model.BulkOperation{
			{ItemName: "Lamp", Quantity: 4, UnitPrice: decimal.NewFromInt(10)},
			{ItemName: "Switch", Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
		},
	}, "kim")
	if res.SuccessCount != 2 || res.FailureCount != 0 {
		t.Fatalf("unexpected bulk in result %+v", res)
	}

	res = ProcessBulk(ctx, database, model.BulkInput{
		OperationType: model.BulkStockOut,
		Operations: []model.BulkOperation{
			{ItemName: "Lamp", Quantity: 1},
			{ItemName: "Switch", Quantity: 9},
			{ItemName: "Ghost", Quantity: 1},
		},
	}, "kim")
	if res.SuccessCount != 1 || res.FailureCount != 2 {
		t.Fatalf("unexpected bulk out result %+v", res)
	}
	if res.Results[1].Code != model.CodeInsufficientStock {
		t.Errorf("expected INSUFFICIENT_STOCK for op 1, got %q", res.Results[1].Code)
	}
	if res.Results[2].Code != model.CodeNotFound {
		t.Errorf("expected NOT_FOUND for op 2, got %q", res.Results[2].Code)
	}

	lamp, _ := FindActiveItem(ctx, database, "Lamp", "")
	if lamp.CurrentQuantity != 3 {
		t.Errorf("expected lamp quantity 3, got %d", lamp.CurrentQuantity)
	}
}

func TestProcessBulkStockInByItemID(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := StockIn(ctx, database, model.StockInInput{
		ItemName: "Cable", Specification: "3x2.5", Quantity: 2, UnitPrice: decimal.NewFromInt(100),
	}, "kim")
	if err != nil {
		t.Fatalf("StockIn: %v", err)
	}

	res := ProcessBulk(ctx, database, model.BulkInput{
		OperationType: model.BulkStockIn,
		Operations: []model.BulkOperation{
			{ItemID: first.Item.ID, Quantity: 5, UnitPrice: decimal.NewFromInt(100)},
			{ItemID: "00000000-0000-0000-0000-000000000000", Quantity: 1},
		},
	}, "kim")
	if res.SuccessCount != 1 || res.FailureCount != 1 {
		t.Fatalf("unexpected bulk result %+v", res)
	}
	if res.Results[0].ItemID != first.Item.ID {
		t.Errorf("expected stock-in on %s, got %s", first.Item.ID, res.Results[0].ItemID)
	}
	if res.Results[1].Code != model.CodeNotFound {
		t.Errorf("expected NOT_FOUND for unknown id, got %q", res.Results[1].Code)
	}

	cable, err := GetItem(ctx, database, first.Item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if cable.CurrentQuantity != 7 {
		t.Errorf("expected quantity 7, got %d", cable.CurrentQuantity)
	}

	var nameless int
	if err := database.Get(&nameless, `SELECT COUNT(*) FROM items WHERE name = ''`); err != nil {
		t.Fatalf("counting items: %v", err)
	}
	if nameless != 0 {
		t.Errorf("expected no nameless items, found %d", nameless)
	}
}

func TestStockInRequiresName(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := StockIn(context.Background(), database, model.StockInInput{Quantity: 1}, "kim")
	var merr *model.Error
	if !errors.As(err, &merr) || merr.Code != model.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestAdjustStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	in, _ := StockIn(ctx, database, model.StockInInput{ItemName: "Bolt", Quantity: 10}, "kim")
	id := in.Item.ID

	tests := []struct {
		typ     string
		qty     int
		want    int
		wantErr string
	}{
		{model.AdjustAdd, 5, 15, ""},
		{model.AdjustSubtract, 3, 12, ""},
		{model.AdjustSubtract, 20, 12, model.CodeInsufficientStock},
		{model.AdjustSet, 7, 7, ""},
		{model.AdjustSet, 0, 0, ""},
	}

	for _, tt := range tests {
		res, err := AdjustStock(ctx, database, model.AdjustInput{ItemID: id, AdjustmentType: tt.typ, Quantity: tt.qty, Reason: "count"}, "kim")
		if tt.wantErr != "" {
			var merr *model.Error
			if !errors.As(err, &merr) || merr.Code != tt.wantErr {
				t.Errorf("%s %d: expected %s, got %v", tt.typ, tt.qty, tt.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s %d: %v", tt.typ, tt.qty, err)
		}
		if res.NewQuantity != tt.want {
			t.Errorf("%s %d: expected %d, got %d", tt.typ, tt.qty, tt.want, res.NewQuantity)
		}
	}

	history, _ := ListHistory(ctx, database, model.HistoryFilter{ItemID: id, Kind: model.HistoryAdjust})
	if len(history) != 4 {
		t.Errorf("expected 4 adjust entries, got %d", len(history))
	}
}

func TestDisposeStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, _ := StockIn(ctx, database, model.StockInInput{ItemName: "Broken lamp", Quantity: 3}, "kim")
	b, _ := StockIn(ctx, database, model.StockInInput{ItemName: "Old cable", Quantity: 1}, "kim")

	results := DisposeStock(ctx, database, model.DisposalInput{Items: []model.DisposalEntry{
		{ItemID: a.Item.ID, Quantity: 3, Reason: "burnt"},
		{ItemID: b.Item.ID, Quantity: 2, Reason: "cut"},
	}}, "kim")

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Success || results[0].NewQuantity != 0 {
		t.Errorf("expected first disposal to succeed, got %+v", results[0])
	}
	if results[1].Success {
		t.Errorf("expected second disposal to fail, got %+v", results[1])
	}

	item, _ := GetItem(ctx, database, b.Item.ID)
	if item.CurrentQuantity != 1 {
		t.Errorf("failed disposal changed quantity to %d", item.CurrentQuantity)
	}
}
