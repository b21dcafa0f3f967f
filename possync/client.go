package possync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client exposes the two operations this core consumes from the POS platform.
type Client interface {
	// ListInventory lists current on-hand items at an external location.
	ListInventory(ctx context.Context, locationExternalId string) ([]InventoryItem, error)
	// FetchCatalogItems fetches name/description/image/price for item ids.
	// Missing ids are absent from the map, not an error.
	FetchCatalogItems(ctx context.Context, externalIds []string) (map[string]CatalogItem, error)
}

type httpClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
	now       func() time.Time
}

// Options configures the HTTP client explicitly; there is no env-driven or
// lazily-initialized fallback. The client lives as long as the process and is
// safe for concurrent use.
type Options struct {
	BaseURL         string
	APIKey          string
	APIKeyHeader    string
	RateLimitPerMin int64
	Timeout         time.Duration
}

func NewHTTPClient(opts Options) (Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("pos api key is empty")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("pos base url is empty")
	}
	header := opts.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}
	ratePerMin := opts.RateLimitPerMin
	if ratePerMin <= 0 {
		ratePerMin = 10
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &httpClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		apiKeyHdr: header,
		http:      &http.Client{Timeout: timeout},
		// time.Tick's ticker is never collected; the client lives for the
		// whole process, so that is the intended lifetime.
		limiter: time.Tick(time.Minute / time.Duration(ratePerMin)),
		now:     time.Now,
	}, nil
}

type posListResponse struct {
	Counts  []json.RawMessage `json:"counts"`
	Objects []json.RawMessage `json:"objects"`
	Cursor  string            `json:"cursor"`
}

func (c *httpClient) ListInventory(ctx context.Context, locationExternalId string) ([]InventoryItem, error) {
	var items []InventoryItem
	cursor := ""
	for {
		params := url.Values{}
		params.Set("location_id", locationExternalId)
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		page, err := c.getList(ctx, "/v2/inventory/counts", params)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Counts {
			var count posInventoryCount
			if err := json.Unmarshal(raw, &count); err != nil {
				continue
			}
			if item, ok := count.normalize(); ok {
				items = append(items, item)
			}
		}
		if page.Cursor == "" {
			return items, nil
		}
		cursor = page.Cursor
	}
}

func (c *httpClient) FetchCatalogItems(ctx context.Context, externalIds []string) (map[string]CatalogItem, error) {
	result := make(map[string]CatalogItem, len(externalIds))
	if len(externalIds) == 0 {
		return result, nil
	}

	const pageSize = 100
	for start := 0; start < len(externalIds); start += pageSize {
		end := start + pageSize
		if end > len(externalIds) {
			end = len(externalIds)
		}
		params := url.Values{}
		params.Set("object_ids", strings.Join(externalIds[start:end], ","))
		page, err := c.getList(ctx, "/v2/catalog/batch-retrieve", params)
		if err != nil {
			return nil, err
		}
		now := c.now()
		for _, raw := range page.Objects {
			var obj posCatalogObject
			if err := json.Unmarshal(raw, &obj); err != nil {
				continue
			}
			if item, ok := obj.normalize(now); ok {
				result[item.ExternalId] = item
			}
		}
	}
	return result, nil
}

func (c *httpClient) getList(ctx context.Context, path string, params url.Values) (posListResponse, error) {
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return posListResponse{}, ctx.Err()
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return posListResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return posListResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return posListResponse{}, fmt.Errorf("pos api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed posListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return posListResponse{}, err
	}
	return parsed, nil
}
