// internal/supplier/client.go
package supplier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// SentinelSince is the "everything" filter value. The supplier API requires a
// sysmodified filter on every request, so callers wanting the full catalog
// pass this instead of omitting the parameter.
var SentinelSince = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// LocalizedText carries the supplier's EN/NL description pair.
type LocalizedText struct {
	EN string `json:"en"`
	NL string `json:"nl"`
}

type Dimensions struct {
	Height   float64 `json:"height"`
	Width    float64 `json:"width"`
	Depth    float64 `json:"depth"`
	Diameter float64 `json:"diameter"`
}

// RemoteProduct is the wire shape of one supplier catalog record. Only the
// fields the reconciler consumes are mapped; everything else is ignored.
type RemoteProduct struct {
	ItemCode                 string        `json:"Itemcode"`
	ItemDescription          LocalizedText `json:"ItemDescription"`
	ShowOnWebsite            bool          `json:"ShowOnWebsite"`
	ItemStatus               string        `json:"ItemStatus"`
	IsStockItem              bool          `json:"IsStockItem"`
	MainGroupDescription     LocalizedText `json:"MainGroupDescription"`
	SubGroupDescription      LocalizedText `json:"SubGroupDescription"`
	MaterialGroupDescription string        `json:"MaterialGroupDescription"`
	SellPrice                float64       `json:"Salesprice"`
	StockQuantity            int           `json:"StockAvailable"`
	Dimensions               Dimensions    `json:"Dimensions"`
	Weight                   float64       `json:"Weight"`
	DeliveryTimeInDays       int           `json:"DeliveryTimeInDays"`
	CountryOfOrigin          string        `json:"CountryOfOrigin"`
	Tags                     []string      `json:"Tags"`
	Sysmodified              time.Time     `json:"Sysmodified"`
	PictureName              string        `json:"ItemPictureName"`
}

// Filter selects which records a fetch returns. SysmodifiedSince is mandatory
// on the wire; the client substitutes SentinelSince when it is zero.
type Filter struct {
	SysmodifiedSince time.Time
	ItemCode         string
	Limit            int
	Offset           int
}

// APIError is the typed failure for non-2xx supplier responses. Transport
// errors come back as-is; retries are the caller's concern.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supplier api error: status=%d body=%s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL      string
	APIKey       string
	TimeoutMs    int
	RateLimitRPS int
}

// Client is a thin HTTP client over the supplier catalog API. It paces
// requests with a shared limiter and applies a bounded per-call timeout, but
// carries no caching or business logic.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg Config) *Client {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 10000
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// FetchProducts returns the records matching the filter, in the supplier's
// paging order.
func (c *Client) FetchProducts(ctx context.Context, filter Filter) ([]RemoteProduct, error) {
	since := filter.SysmodifiedSince
	if since.IsZero() {
		since = SentinelSince
	}

	params := url.Values{}
	params.Set("sysmodified", since.UTC().Format(time.RFC3339))
	if filter.ItemCode != "" {
		params.Set("itemCode", filter.ItemCode)
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		params.Set("offset", strconv.Itoa(filter.Offset))
	}

	body, err := c.get(ctx, "items", params)
	if err != nil {
		return nil, err
	}

	var products []RemoteProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("failed to decode supplier response: %w", err)
	}
	return products, nil
}

// FetchProduct looks up a single item by code. Returns an *APIError with
// status 404 when the supplier does not know the code.
func (c *Client) FetchProduct(ctx context.Context, itemCode string) (*RemoteProduct, error) {
	products, err := c.FetchProducts(ctx, Filter{ItemCode: itemCode, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Body: "item not found: " + itemCode}
	}
	return &products[0], nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.cfg.BaseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.SetBasicAuth("api", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
