package possync

import (
	"context"
	"time"

	"github.com/frh3ddy/farmacia-ops-sub000/config"
)

// MetadataCache fronts a Client with a redis-backed cache for catalog
// metadata. Entries live for the staleness window given at construction;
// Invalidate drops entries eagerly (e.g. after a catalog sync). Inventory
// listings are never cached: the on-hand snapshot must always be live.
type MetadataCache struct {
	source Client
	ttl    time.Duration
}

func NewMetadataCache(source Client, ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MetadataCache{source: source, ttl: ttl}
}

func catalogKey(externalId string) string {
	return "catalog:item:" + externalId
}

func (c *MetadataCache) ListInventory(ctx context.Context, locationExternalId string) ([]InventoryItem, error) {
	return c.source.ListInventory(ctx, locationExternalId)
}

func (c *MetadataCache) FetchCatalogItems(ctx context.Context, externalIds []string) (map[string]CatalogItem, error) {
	result := make(map[string]CatalogItem, len(externalIds))
	var misses []string
	for _, id := range externalIds {
		var cached CatalogItem
		found, err := config.GetRedisObject(catalogKey(id), &cached)
		if err != nil || !found {
			misses = append(misses, id)
			continue
		}
		result[id] = cached
	}
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := c.source.FetchCatalogItems(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, item := range fetched {
		result[id] = item
		if serr := config.SetRedisObject(catalogKey(id), item, c.ttl); serr != nil {
			config.LogError(config.GetLogger(), "cache.go", "FetchCatalogItems", "SetRedisObject", id, serr)
		}
	}
	return result, nil
}

// Invalidate drops cached metadata for the given ids.
func (c *MetadataCache) Invalidate(externalIds ...string) error {
	keys := make([]string, 0, len(externalIds))
	for _, id := range externalIds {
		keys = append(keys, catalogKey(id))
	}
	if len(keys) == 0 {
		return nil
	}
	return config.RemoveRedisKey(keys...)
}
