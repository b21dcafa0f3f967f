package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogMapping links an external catalog variation to an internal product.
// A row with LocationId = NULL is a global mapping; a location-scoped row
// takes precedence over a global one for the same external id.
type CatalogMapping struct {
	ID                  int              `gorm:"primary_key" json:"id"`
	BusinessId          string           `gorm:"uniqueIndex:idx_catalog_mapping,priority:1;not null" json:"business_id"`
	ExternalVariationId string           `gorm:"uniqueIndex:idx_catalog_mapping,priority:2;size:128;not null" json:"external_variation_id"`
	LocationId          *int             `gorm:"uniqueIndex:idx_catalog_mapping,priority:3" json:"location_id"`
	ProductId           int              `gorm:"index;not null" json:"product_id"`
	SellingPrice        *decimal.Decimal `gorm:"type:decimal(20,4)" json:"selling_price"`
	PriceSyncedAt       *time.Time       `json:"price_synced_at"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveProduct resolves one external variation id to a product id.
// Lookup order: location-scoped mapping, then global mapping. Missing
// mappings are an UnmappedProduct error; a mapping whose product row no
// longer exists is a DataIntegrity error.
func ResolveProduct(tx *gorm.DB, businessId string, externalId string, locationId int) (int, error) {
	var mappings []CatalogMapping
	err := tx.Where("business_id = ? AND external_variation_id = ? AND (location_id = ? OR location_id IS NULL)",
		businessId, externalId, locationId).
		Find(&mappings).Error
	if err != nil {
		return 0, NewStorageError(err)
	}

	mapping := pickMapping(mappings)
	if mapping == nil {
		return 0, NewUnmappedProductError(externalId)
	}

	var count int64
	if err := tx.Model(&Product{}).
		Where("business_id = ? AND id = ?", businessId, mapping.ProductId).
		Count(&count).Error; err != nil {
		return 0, NewStorageError(err)
	}
	if count == 0 {
		return 0, NewDataIntegrityError(fmt.Sprintf("catalog mapping %d points to missing product %d", mapping.ID, mapping.ProductId))
	}
	return mapping.ProductId, nil
}

// BatchResolveProducts resolves many external ids in one read.
//
// Deliberately more lenient than ResolveProduct: ids that remain unmapped, or
// whose product row is missing, are silently dropped so bulk extraction can
// proceed past catalog gaps. Callers that need strict failure must use
// ResolveProduct.
func BatchResolveProducts(tx *gorm.DB, businessId string, externalIds []string, locationId int) (map[string]int, error) {
	resolved := make(map[string]int, len(externalIds))
	if len(externalIds) == 0 {
		return resolved, nil
	}

	var mappings []CatalogMapping
	err := tx.Where("business_id = ? AND external_variation_id IN ? AND (location_id = ? OR location_id IS NULL)",
		businessId, externalIds, locationId).
		Find(&mappings).Error
	if err != nil {
		return nil, NewStorageError(err)
	}

	byExternal := make(map[string][]CatalogMapping)
	for _, m := range mappings {
		byExternal[m.ExternalVariationId] = append(byExternal[m.ExternalVariationId], m)
	}

	candidates := make(map[string]int, len(byExternal))
	productIds := make([]int, 0, len(byExternal))
	for externalId, group := range byExternal {
		if picked := pickMapping(group); picked != nil {
			candidates[externalId] = picked.ProductId
			productIds = append(productIds, picked.ProductId)
		}
	}
	if len(candidates) == 0 {
		return resolved, nil
	}

	var existing []int
	if err := tx.Model(&Product{}).
		Where("business_id = ? AND id IN ?", businessId, productIds).
		Pluck("id", &existing).Error; err != nil {
		return nil, NewStorageError(err)
	}
	exists := make(map[int]bool, len(existing))
	for _, id := range existing {
		exists[id] = true
	}

	for externalId, productId := range candidates {
		if exists[productId] {
			resolved[externalId] = productId
		}
	}
	return resolved, nil
}

// pickMapping prefers a location-scoped row over a global one.
func pickMapping(mappings []CatalogMapping) *CatalogMapping {
	var global *CatalogMapping
	for i := range mappings {
		if mappings[i].LocationId != nil {
			return &mappings[i]
		}
		if global == nil {
			global = &mappings[i]
		}
	}
	return global
}

// GetMappingPrice returns the cached selling price for an external id at a
// location, if a mapping carries one.
func GetMappingPrice(tx *gorm.DB, businessId string, externalId string, locationId int) (*decimal.Decimal, error) {
	var mappings []CatalogMapping
	err := tx.Where("business_id = ? AND external_variation_id = ? AND (location_id = ? OR location_id IS NULL)",
		businessId, externalId, locationId).
		Find(&mappings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, NewStorageError(err)
	}
	if picked := pickMapping(mappings); picked != nil {
		return picked.SellingPrice, nil
	}
	return nil, nil
}
