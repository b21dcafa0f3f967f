package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestClampOpeningQty(t *testing.T) {
	if qty, clamped := ClampOpeningQty(decimal.NewFromInt(-3)); !clamped || !qty.IsZero() {
		t.Fatalf("qty = %s clamped = %v, want 0/true", qty, clamped)
	}
	if qty, clamped := ClampOpeningQty(decimal.NewFromInt(4)); clamped || !qty.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("qty = %s clamped = %v, want 4/false", qty, clamped)
	}
	if _, clamped := ClampOpeningQty(decimal.Zero); clamped {
		t.Fatal("zero must not be clamped")
	}
}

func TestOpeningBalanceReplayCreatesNoDuplicate(t *testing.T) {
	db := testDB(t)
	businessId := uuid.NewString()
	stockDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	first, created, err := EnsureOpeningBalance(db, businessId, 1, 1, decimal.NewFromInt(5), decimal.RequireFromString("2.50"), stockDate)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if !created {
		t.Fatal("first write must create the row")
	}

	// Replaying the same (product, location) must return the original row
	// untouched, whatever the replay's quantity and cost say.
	second, created, err := EnsureOpeningBalance(db, businessId, 1, 1, decimal.NewFromInt(9), decimal.RequireFromString("9.99"), stockDate)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if created {
		t.Fatal("replay must not create a second row")
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned row %d, want %d", second.ID, first.ID)
	}
	if !second.Qty.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("replay mutated qty to %s", second.Qty)
	}

	var count int64
	if err := db.Model(&InventoryBatch{}).Where("business_id = ?", businessId).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}
