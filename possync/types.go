// Package possync is the boundary to the external point-of-sale platform.
// The source is read-only, un-lockable, and non-stable between calls; callers
// must treat every snapshot as live data.
package possync

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is one on-hand row in the external source, normalized.
type InventoryItem struct {
	ExternalId string          `json:"external_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// CatalogItem is the normalized external metadata for a variation.
type CatalogItem struct {
	ExternalId  string           `json:"external_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ImageUrl    string           `json:"image_url"`
	Price       *decimal.Decimal `json:"price"`
	SyncedAt    time.Time        `json:"synced_at"`
}

// Wire shapes as the POS API returns them. Parsed into the normalized types
// at this boundary and nowhere else.
type posInventoryCount struct {
	VariationId string      `json:"catalog_object_id"`
	LocationId  string      `json:"location_id"`
	Quantity    json.Number `json:"quantity"`
	State       string      `json:"state"`
}

type posCatalogObject struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ImageUrl    string      `json:"image_url"`
	Price       json.Number `json:"price"`
	UpdatedAt   string      `json:"updated_at"`
}

func (c posInventoryCount) normalize() (InventoryItem, bool) {
	if c.VariationId == "" {
		return InventoryItem{}, false
	}
	qty, err := decimal.NewFromString(c.Quantity.String())
	if err != nil {
		return InventoryItem{}, false
	}
	return InventoryItem{ExternalId: c.VariationId, Quantity: qty}, true
}

func (o posCatalogObject) normalize(now time.Time) (CatalogItem, bool) {
	if o.ID == "" {
		return CatalogItem{}, false
	}
	item := CatalogItem{
		ExternalId:  o.ID,
		Name:        o.Name,
		Description: o.Description,
		ImageUrl:    o.ImageUrl,
		SyncedAt:    now,
	}
	if o.Price.String() != "" {
		if price, err := decimal.NewFromString(o.Price.String()); err == nil {
			item.Price = &price
		}
	}
	return item, true
}
