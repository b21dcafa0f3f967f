package possync

import (
	"context"
	"sort"
)

// MemoryClient is an in-memory Client for tests and local development.
type MemoryClient struct {
	// Inventory is keyed by external location id.
	Inventory map[string][]InventoryItem
	Catalog   map[string]CatalogItem
	// Err, when set, is returned by every call to model a source outage.
	Err error
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		Inventory: make(map[string][]InventoryItem),
		Catalog:   make(map[string]CatalogItem),
	}
}

func (m *MemoryClient) ListInventory(ctx context.Context, locationExternalId string) ([]InventoryItem, error) {
	_ = ctx
	if m.Err != nil {
		return nil, m.Err
	}
	items := append([]InventoryItem(nil), m.Inventory[locationExternalId]...)
	sort.Slice(items, func(i, j int) bool { return items[i].ExternalId < items[j].ExternalId })
	return items, nil
}

func (m *MemoryClient) FetchCatalogItems(ctx context.Context, externalIds []string) (map[string]CatalogItem, error) {
	_ = ctx
	if m.Err != nil {
		return nil, m.Err
	}
	result := make(map[string]CatalogItem, len(externalIds))
	for _, id := range externalIds {
		if item, ok := m.Catalog[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}
