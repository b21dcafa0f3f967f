package possync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestInventoryCountNormalize(t *testing.T) {
	count := posInventoryCount{VariationId: "v1", Quantity: json.Number("3.5")}
	item, ok := count.normalize()
	if !ok {
		t.Fatal("expected a normalized item")
	}
	if item.ExternalId != "v1" || !item.Quantity.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("item = %+v", item)
	}

	if _, ok := (posInventoryCount{Quantity: json.Number("1")}).normalize(); ok {
		t.Fatal("missing variation id must be dropped")
	}
	if _, ok := (posInventoryCount{VariationId: "v2", Quantity: json.Number("abc")}).normalize(); ok {
		t.Fatal("unreadable quantity must be dropped")
	}
}

func TestCatalogObjectNormalize(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	obj := posCatalogObject{ID: "c1", Name: "Paracetamol", Description: "GSK $12.50 abril", Price: json.Number("4.75")}
	item, ok := obj.normalize(now)
	if !ok {
		t.Fatal("expected a normalized item")
	}
	if item.Price == nil || !item.Price.Equal(decimal.RequireFromString("4.75")) {
		t.Fatalf("price = %v", item.Price)
	}
	if !item.SyncedAt.Equal(now) {
		t.Fatalf("synced at = %v", item.SyncedAt)
	}

	noPrice, ok := (posCatalogObject{ID: "c2"}).normalize(now)
	if !ok || noPrice.Price != nil {
		t.Fatalf("missing price must stay nil, got %+v", noPrice)
	}
}

func TestMemoryClientListsSorted(t *testing.T) {
	client := NewMemoryClient()
	client.Inventory["loc-1"] = []InventoryItem{
		{ExternalId: "b", Quantity: decimal.NewFromInt(1)},
		{ExternalId: "a", Quantity: decimal.NewFromInt(2)},
	}
	items, err := client.ListInventory(context.Background(), "loc-1")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(items) != 2 || items[0].ExternalId != "a" {
		t.Fatalf("items = %+v", items)
	}
}

func TestMetadataCachePassthroughWithoutRedis(t *testing.T) {
	source := NewMemoryClient()
	source.Catalog["c1"] = CatalogItem{ExternalId: "c1", Name: "Ibuprofeno"}
	cache := NewMetadataCache(source, 0)

	items, err := cache.FetchCatalogItems(context.Background(), []string{"c1", "missing"})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(items) != 1 || items["c1"].Name != "Ibuprofeno" {
		t.Fatalf("items = %+v", items)
	}
}

func TestGetListHonorsContextCancellation(t *testing.T) {
	c := &httpClient{
		baseURL:   "http://127.0.0.1:1",
		apiKey:    "key",
		apiKeyHdr: "X-API-Key",
		http:      &http.Client{},
		limiter:   make(chan time.Time), // never fires
		now:       time.Now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.getList(ctx, "/v2/inventory/counts", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
