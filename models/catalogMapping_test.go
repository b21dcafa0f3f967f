package models

import (
	"testing"

	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func TestPickMappingPrefersScoped(t *testing.T) {
	scoped := CatalogMapping{ID: 1, LocationId: intPtr(10), ProductId: 100}
	global := CatalogMapping{ID: 2, ProductId: 200}

	if picked := pickMapping([]CatalogMapping{global, scoped}); picked == nil || picked.ProductId != 100 {
		t.Fatalf("picked = %+v, want scoped mapping", picked)
	}
	if picked := pickMapping([]CatalogMapping{scoped, global}); picked == nil || picked.ProductId != 100 {
		t.Fatalf("picked = %+v, want scoped mapping regardless of order", picked)
	}
}

func TestPickMappingFallsBackToGlobal(t *testing.T) {
	global := CatalogMapping{ID: 2, ProductId: 200}
	if picked := pickMapping([]CatalogMapping{global}); picked == nil || picked.ProductId != 200 {
		t.Fatalf("picked = %+v, want global mapping", picked)
	}
	if picked := pickMapping(nil); picked != nil {
		t.Fatalf("picked = %+v, want nil", picked)
	}
}

func TestResolveProductRejectsUnmappedId(t *testing.T) {
	db := testDB(t)
	businessId := uuid.NewString()

	_, err := ResolveProduct(db, businessId, "ext-none", 1)
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != ErrCodeUnmappedProduct {
		t.Fatalf("err = %v, want %s", err, ErrCodeUnmappedProduct)
	}
	if !appErr.Retryable {
		t.Fatal("a catalog gap is retryable after a sync")
	}
}

func TestResolveProductRejectsOrphanMapping(t *testing.T) {
	db := testDB(t)
	businessId := uuid.NewString()

	mapping := CatalogMapping{BusinessId: businessId, ExternalVariationId: "ext-orphan", ProductId: 987654321}
	if err := db.Create(&mapping).Error; err != nil {
		t.Fatalf("create mapping: %v", err)
	}

	_, err := ResolveProduct(db, businessId, "ext-orphan", 1)
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != ErrCodeDataIntegrity {
		t.Fatalf("err = %v, want %s", err, ErrCodeDataIntegrity)
	}
}

func TestResolveProductPrefersScopedMapping(t *testing.T) {
	db := testDB(t)
	businessId := uuid.NewString()

	scoped := Product{BusinessId: businessId, Name: "scoped"}
	global := Product{BusinessId: businessId, Name: "global"}
	if err := db.Create(&scoped).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	if err := db.Create(&global).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	if err := db.Create(&CatalogMapping{BusinessId: businessId, ExternalVariationId: "ext-1", LocationId: intPtr(7), ProductId: scoped.ID}).Error; err != nil {
		t.Fatalf("create scoped mapping: %v", err)
	}
	if err := db.Create(&CatalogMapping{BusinessId: businessId, ExternalVariationId: "ext-1", ProductId: global.ID}).Error; err != nil {
		t.Fatalf("create global mapping: %v", err)
	}

	productId, err := ResolveProduct(db, businessId, "ext-1", 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if productId != scoped.ID {
		t.Fatalf("productId = %d, want the location-scoped product %d", productId, scoped.ID)
	}
}
