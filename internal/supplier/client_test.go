// internal/supplier/client_test.go
package supplier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(Config{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		TimeoutMs:    2000,
		RateLimitRPS: 100,
	})
	return client, srv
}

func TestFetchProductsSendsMandatorySysmodifiedFilter(t *testing.T) {
	var gotQuery string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("sysmodified")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := client.FetchProducts(context.Background(), Filter{})
	require.NoError(t, err)

	// Zero filter falls back to the sentinel epoch, never an empty param.
	assert.Equal(t, SentinelSince.Format(time.RFC3339), gotQuery)
}

func TestFetchProductsDecodesRecords(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"Itemcode": "PLT-100",
			"ShowOnWebsite": true,
			"ItemStatus": "A",
			"IsStockItem": true,
			"MainGroupDescription": {"en": "Plants", "nl": "Planten"},
			"SubGroupDescription": {"en": "Ficus", "nl": "Ficus"},
			"Salesprice": 12.5,
			"StockAvailable": 7,
			"Sysmodified": "2026-03-01T10:00:00Z",
			"ItemPictureName": "PLT-100.jpg"
		}]`))
	}))
	defer srv.Close()

	products, err := client.FetchProducts(context.Background(), Filter{SysmodifiedSince: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "PLT-100", p.ItemCode)
	assert.Equal(t, "A", p.ItemStatus)
	assert.True(t, p.ShowOnWebsite)
	assert.True(t, p.IsStockItem)
	assert.Equal(t, "Plants", p.MainGroupDescription.EN)
	assert.Equal(t, 12.5, p.SellPrice)
	assert.Equal(t, 7, p.StockQuantity)
}

func TestFetchProductsReturnsTypedErrorOnServerFailure(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := client.FetchProducts(context.Background(), Filter{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "upstream exploded")
}

func TestFetchProductNotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := client.FetchProduct(context.Background(), "NOPE-1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestFetchProductsPaging(t *testing.T) {
	var gotLimit, gotOffset string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		gotOffset = r.URL.Query().Get("offset")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := client.FetchProducts(context.Background(), Filter{Limit: 200, Offset: 400})
	require.NoError(t, err)
	assert.Equal(t, "200", gotLimit)
	assert.Equal(t, "400", gotOffset)
}
