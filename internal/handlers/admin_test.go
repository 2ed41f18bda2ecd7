// internal/handlers/admin_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/supplier"
	"github.com/greenhaven/garden-backend/internal/syncer"
)

type stubFetcher struct{}

func (stubFetcher) FetchProducts(ctx context.Context, filter supplier.Filter) ([]supplier.RemoteProduct, error) {
	return nil, nil
}

func (stubFetcher) FetchProduct(ctx context.Context, itemCode string) (*supplier.RemoteProduct, error) {
	return nil, &supplier.APIError{StatusCode: http.StatusNotFound, Body: "not found"}
}

type stubStore struct{}

func (stubStore) GetByNieuwkoopID(string) (*models.Product, error) { return nil, nil }
func (stubStore) GetBySKU(string) (*models.Product, error)         { return nil, nil }
func (stubStore) SlugTaken(string, string) (bool, error)           { return false, nil }
func (stubStore) Insert(*models.Product) error                     { return nil }
func (stubStore) Update(*models.Product) error                     { return nil }
func (stubStore) UpdateRealtime(string, float64, int, time.Time) error {
	return nil
}

type stubRunLog struct {
	mu      sync.Mutex
	entries []*models.SyncLog
}

func (l *stubRunLog) HasActiveRun(t models.SyncType) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Type == t && e.Status == models.SyncStatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (l *stubRunLog) Create(entry *models.SyncLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *stubRunLog) Complete(entry *models.SyncLog, status models.SyncStatus, processed, errored int, metadata models.JSONB) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.Status = status
	return nil
}

// trackingFetcher serves one listable record and counts pages fetched, so a
// test can tell whether a dispatched run actually reached the supplier.
type trackingFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *trackingFetcher) FetchProducts(ctx context.Context, filter supplier.Filter) ([]supplier.RemoteProduct, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filter.Offset > 0 {
		return nil, nil
	}
	return []supplier.RemoteProduct{{
		ItemCode:        "PLT-001",
		ItemDescription: supplier.LocalizedText{EN: "Ficus lyrata"},
		ShowOnWebsite:   true,
		ItemStatus:      "A",
		IsStockItem:     true,
		SellPrice:       4.20,
		StockQuantity:   12,
		Sysmodified:     time.Now(),
	}}, nil
}

func (f *trackingFetcher) FetchProduct(ctx context.Context, itemCode string) (*supplier.RemoteProduct, error) {
	return nil, &supplier.APIError{StatusCode: http.StatusNotFound, Body: "not found"}
}

func (f *trackingFetcher) pagesFetched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubSettings struct{}

func (stubSettings) BatchSettings() syncer.BatchConfig    { return syncer.BatchConfig{} }
func (stubSettings) CacheSettings() (bool, time.Duration) { return false, 0 }
func (stubSettings) Watermark() time.Time                 { return time.Now().Add(-time.Hour) }
func (stubSettings) AdvanceWatermark(t time.Time) error   { return nil }

func newSyncTestRouter(logs *stubRunLog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	reconciler := syncer.NewReconciler(stubFetcher{}, stubStore{}, logs, stubSettings{}, nil)
	handler := NewAdminHandler(reconciler, nil, nil)

	r := gin.New()
	r.POST("/v1/admin/sync", handler.TriggerSync)
	return r
}

func postSync(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/v1/admin/sync", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerSyncAccepted(t *testing.T) {
	logs := &stubRunLog{}
	r := newSyncTestRouter(logs)

	w := postSync(t, r, `{"type":"sync-changes"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "sync-changes", data["type"])
	assert.Contains(t, data, "log_id")
}

func TestTriggerSyncDefaultsToChanges(t *testing.T) {
	logs := &stubRunLog{}
	r := newSyncTestRouter(logs)

	w := postSync(t, r, `{}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "sync-changes", data["type"])
}

func TestTriggerSyncConflictWhileRunning(t *testing.T) {
	logs := &stubRunLog{}
	logs.entries = append(logs.entries, &models.SyncLog{
		Type:      models.SyncTypeFull,
		Status:    models.SyncStatusInProgress,
		StartedAt: time.Now(),
	})
	r := newSyncTestRouter(logs)

	w := postSync(t, r, `{"type":"sync-full"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response["success"].(bool))

	errObj := response["error"].(map[string]interface{})
	assert.Equal(t, "CONFLICT", errObj["code"])
}

// Dispatched runs must survive the request that triggered them. A real server
// cancels the request context as soon as the 202 is written, so this test goes
// through httptest.NewServer rather than calling ServeHTTP directly.
func TestTriggerSyncOutlivesRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := &stubRunLog{}
	fetcher := &trackingFetcher{}
	reconciler := syncer.NewReconciler(fetcher, stubStore{}, logs, stubSettings{}, nil)
	handler := NewAdminHandler(reconciler, nil, nil)

	r := gin.New()
	r.POST("/v1/admin/sync", handler.TriggerSync)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/admin/sync", "application/json",
		bytes.NewBufferString(`{"type":"sync-changes"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		logs.mu.Lock()
		defer logs.mu.Unlock()
		return len(logs.entries) == 1 && logs.entries[0].Status != models.SyncStatusInProgress
	}, 2*time.Second, 10*time.Millisecond)

	logs.mu.Lock()
	status := logs.entries[0].Status
	logs.mu.Unlock()
	assert.Equal(t, models.SyncStatusSuccess, status)
	assert.Greater(t, fetcher.pagesFetched(), 0)
}

func TestTriggerSyncRejectsUnknownType(t *testing.T) {
	r := newSyncTestRouter(&stubRunLog{})

	w := postSync(t, r, `{"type":"sync-popular"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerSyncRejectsMalformedBody(t *testing.T) {
	r := newSyncTestRouter(&stubRunLog{})

	w := postSync(t, r, `{"type":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
