package workflow

import (
	"testing"

	"github.com/frh3ddy/farmacia-ops-sub000/models"
	"github.com/frh3ddy/farmacia-ops-sub000/possync"
	"github.com/shopspring/decimal"
)

func TestAggregateWindowSumsAndSkips(t *testing.T) {
	window := []workItem{
		{ProductId: 1, LocationId: 10, ExternalId: "a", Qty: decimal.NewFromInt(2)},
		{ProductId: 1, LocationId: 10, ExternalId: "a", Qty: decimal.NewFromInt(3)},
		{ProductId: 1, LocationId: 11, ExternalId: "a", Qty: decimal.NewFromInt(7)},
		{ProductId: 2, LocationId: 10, ExternalId: "b", Qty: decimal.NewFromInt(1)},
	}
	items, skipped := aggregateWindow(window, map[int]bool{2: true})
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	// Sorted by location then product.
	if items[0].LocationId != 10 || !items[0].Qty.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("first aggregate = loc %d qty %s", items[0].LocationId, items[0].Qty)
	}
	if items[1].LocationId != 11 || !items[1].Qty.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("second aggregate = loc %d qty %s", items[1].LocationId, items[1].Qty)
	}
}

func TestCostForItemApprovalAlwaysWins(t *testing.T) {
	cutover := &models.Cutover{CostBasis: models.CostBasisManualInput}
	approvals := map[int]models.CostApproval{
		1: {ProductId: 1, ApprovedCost: decimal.RequireFromString("4.25"), MigrationStatus: models.MigrationStatusApproved},
	}
	cost, err := costForItem(nil, "b1", cutover, models.ResumeState{}, migrationItem{ProductId: 1}, approvals, nil)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !cost.Equal(decimal.RequireFromString("4.25")) {
		t.Fatalf("cost = %s, want 4.25", cost)
	}
}

func TestCostForItemManualInput(t *testing.T) {
	cutover := &models.Cutover{CostBasis: models.CostBasisManualInput}
	state := models.ResumeState{ManualCosts: map[int]decimal.Decimal{7: decimal.NewFromInt(3)}}

	cost, err := costForItem(nil, "b1", cutover, state, migrationItem{ProductId: 7}, nil, nil)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !cost.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("cost = %s", cost)
	}

	_, err = costForItem(nil, "b1", cutover, state, migrationItem{ProductId: 8}, nil, nil)
	appErr, ok := models.AsAppError(err)
	if !ok || appErr.Code != models.ErrCodeMissingCost {
		t.Fatalf("missing manual cost: err = %v", err)
	}
}

func TestCostForItemDescriptionBasis(t *testing.T) {
	cutover := &models.Cutover{CostBasis: models.CostBasisDescription}
	price := decimal.NewFromInt(99)
	catalog := map[string]possync.CatalogItem{
		"ext-1": {ExternalId: "ext-1", Name: "Amoxicilina", Description: "GSK $8.25 2 junio", Price: &price},
		"ext-2": {ExternalId: "ext-2", Name: "Vendas", Description: "sin nota de costo"},
	}

	cost, err := costForItem(nil, "b1", cutover, models.ResumeState{}, migrationItem{ProductId: 1, ExternalId: "ext-1"}, nil, catalog)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !cost.Equal(decimal.RequireFromString("8.25")) {
		t.Fatalf("cost = %s, want 8.25", cost)
	}

	_, err = costForItem(nil, "b1", cutover, models.ResumeState{}, migrationItem{ProductId: 2, ExternalId: "ext-2"}, nil, catalog)
	appErr, ok := models.AsAppError(err)
	if !ok || appErr.Code != models.ErrCodeMissingCost {
		t.Fatalf("no extractable cost: err = %v", err)
	}
}

func TestCostForItemSourceSystemUsesCatalogPrice(t *testing.T) {
	cutover := &models.Cutover{CostBasis: models.CostBasisSourceSystem}
	price := decimal.RequireFromString("2.50")
	catalog := map[string]possync.CatalogItem{
		"ext-1": {ExternalId: "ext-1", Price: &price},
	}
	cost, err := costForItem(nil, "b1", cutover, models.ResumeState{}, migrationItem{ProductId: 1, ExternalId: "ext-1"}, nil, catalog)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !cost.Equal(price) {
		t.Fatalf("cost = %s, want %s", cost, price)
	}
}

func TestDeriveCostsKeepsInputOrder(t *testing.T) {
	cutover := &models.Cutover{CostBasis: models.CostBasisManualInput}
	state := models.ResumeState{ManualCosts: map[int]decimal.Decimal{
		1: decimal.NewFromInt(1),
		2: decimal.NewFromInt(2),
		3: decimal.NewFromInt(3),
	}}
	items := []migrationItem{{ProductId: 1}, {ProductId: 2}, {ProductId: 3}}

	costed := deriveCosts(nil, "b1", cutover, state, items, nil, nil)
	if len(costed) != 3 {
		t.Fatalf("costed = %d", len(costed))
	}
	for i, c := range costed {
		if c.Err != nil {
			t.Fatalf("item %d err = %v", i, c.Err)
		}
		if !c.Cost.Equal(decimal.NewFromInt(int64(i + 1))) {
			t.Fatalf("item %d cost = %s", i, c.Cost)
		}
	}
}

func TestClampWarningIsRecordedNotFatal(t *testing.T) {
	qty, clamped := models.ClampOpeningQty(decimal.NewFromInt(-4))
	if !clamped {
		t.Fatal("negative qty must clamp")
	}
	if !qty.IsZero() {
		t.Fatalf("qty = %s, want 0", qty)
	}
}

func TestEnsureResumableRejectsCompleted(t *testing.T) {
	if err := ensureResumable(models.CutoverStatusCompleted); err == nil {
		t.Fatal("a completed cutover must not be re-executed")
	} else if appErr, ok := models.AsAppError(err); !ok || appErr.Code != models.ErrCodeValidation {
		t.Fatalf("err = %v, want a validation error", err)
	}

	for _, status := range []models.CutoverStatus{
		models.CutoverStatusPending,
		models.CutoverStatusInProgress,
		models.CutoverStatusFailed,
	} {
		if err := ensureResumable(status); err != nil {
			t.Fatalf("status %s must be resumable: %v", status, err)
		}
	}
}
