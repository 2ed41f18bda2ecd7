// internal/syncer/reconciler.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/supplier"
)

// ErrSyncInProgress is returned when a manual run is requested while a run of
// the same family is still in progress. Callers surface it as a conflict, the
// request is never queued.
var ErrSyncInProgress = errors.New("a sync run of this type is already in progress")

// ErrNotFound marks a SKU absent from the local store. The realtime lookup
// never falls through to the supplier for unknown SKUs.
var ErrNotFound = errors.New("product not found")

const maxErrorSamples = 10

// CatalogFetcher is the slice of the supplier client the reconciler needs.
type CatalogFetcher interface {
	FetchProducts(ctx context.Context, filter supplier.Filter) ([]supplier.RemoteProduct, error)
	FetchProduct(ctx context.Context, itemCode string) (*supplier.RemoteProduct, error)
}

// ProductStore is the local-store contract. All writes are upserts keyed by
// the supplier id, so reprocessing the same remote record is safe.
type ProductStore interface {
	GetByNieuwkoopID(nieuwkoopID string) (*models.Product, error)
	GetBySKU(sku string) (*models.Product, error)
	SlugTaken(slug, excludeNieuwkoopID string) (bool, error)
	Insert(p *models.Product) error
	Update(p *models.Product) error
	UpdateRealtime(sku string, price float64, stock int, checkedAt time.Time) error
}

// RunLog records sync runs. HasActiveRun plus Create gives the reconciler its
// one-in-progress-per-type discipline.
type RunLog interface {
	HasActiveRun(t models.SyncType) (bool, error)
	Create(entry *models.SyncLog) error
	Complete(entry *models.SyncLog, status models.SyncStatus, processed, errored int, metadata models.JSONB) error
}

// SyncSettings supplies batch tuning and the incremental watermark.
type SyncSettings interface {
	BatchSettings() BatchConfig
	CacheSettings() (enabled bool, ttl time.Duration)
	Watermark() time.Time
	AdvanceWatermark(t time.Time) error
}

// BatchConfig tunes a bulk run. Zero values fall back to the hard defaults so
// a run never fails on missing configuration.
type BatchConfig struct {
	BatchSize             int `json:"batch_size"`
	PauseBetweenBatchesMs int `json:"pause_between_batches_ms"`
	MaxConcurrentRequests int `json:"max_concurrent_requests"`
}

const (
	defaultBatchSize      = 500
	defaultPauseMs        = 1000
	defaultMaxConcurrency = 3
)

func (c BatchConfig) withDefaults() BatchConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.PauseBetweenBatchesMs < 0 {
		c.PauseBetweenBatchesMs = defaultPauseMs
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = defaultMaxConcurrency
	}
	return c
}

// SyncResult is the run-level outcome. It is always returned, never replaced
// by an error, so the run log write and the watermark decision always happen.
type SyncResult struct {
	NewProducts     int           `json:"new_products"`
	UpdatedProducts int           `json:"updated_products"`
	Errors          int           `json:"errors"`
	ErrorDetails    []string      `json:"error_details,omitempty"`
	Duration        time.Duration `json:"-"`
}

func (r *SyncResult) Status() models.SyncStatus {
	if r.Errors > 0 {
		return models.SyncStatusPartial
	}
	return models.SyncStatusSuccess
}

// ProductView is a stored product augmented with live supplier data when the
// realtime lookup succeeded.
type ProductView struct {
	models.Product
	IsRealTimeData bool       `json:"is_real_time_data"`
	LastPriceCheck *time.Time `json:"last_price_check,omitempty"`
}

// Reconciler diffs the remote catalog against the local store. It owns the
// bulk sync path and the single-item realtime lookup the storefront uses.
type Reconciler struct {
	fetcher  CatalogFetcher
	store    ProductStore
	logs     RunLog
	settings SyncSettings
	cache    *RealtimeCache
	log      *logrus.Entry
	now      func() time.Time
}

func NewReconciler(fetcher CatalogFetcher, store ProductStore, logs RunLog, settings SyncSettings, cache *RealtimeCache) *Reconciler {
	return &Reconciler{
		fetcher:  fetcher,
		store:    store,
		logs:     logs,
		settings: settings,
		cache:    cache,
		log:      logrus.WithField("component", "reconciler"),
		now:      time.Now,
	}
}

// WithClock overrides the reconciler's notion of now. Test hook.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// TriggerManual starts a bulk run of the requested family after checking that
// none is already in progress. It returns the created log entry immediately;
// the run itself continues on the calling goroutine of runFn (the handler
// dispatches it asynchronously). The run outlives the triggering HTTP request,
// so runFn detaches from the request context instead of inheriting its
// cancellation.
func (r *Reconciler) TriggerManual(ctx context.Context, syncType models.SyncType) (*models.SyncLog, func(), error) {
	if syncType != models.SyncTypeChanges && syncType != models.SyncTypeFull {
		return nil, nil, fmt.Errorf("unsupported manual sync type: %s", syncType)
	}

	entry, err := r.startRun(syncType, models.JSONB{"trigger": "manual"})
	if err != nil {
		return nil, nil, err
	}

	runCtx := context.WithoutCancel(ctx)
	runFn := func() {
		var result SyncResult
		if syncType == models.SyncTypeFull {
			result = r.syncSince(runCtx, supplier.SentinelSince, nil)
		} else {
			result = r.syncSince(runCtx, r.settings.Watermark(), nil)
		}
		r.finishRun(entry, &result)
	}
	return entry, runFn, nil
}

// SyncChanges reconciles every remote record modified since the given time.
// The zero time means "use the stored watermark".
func (r *Reconciler) SyncChanges(ctx context.Context, since time.Time, cfg *BatchConfig) SyncResult {
	if since.IsZero() {
		since = r.settings.Watermark()
	}
	return r.runLogged(ctx, models.SyncTypeChanges, since, cfg)
}

// SyncFull reconciles the entire remote catalog.
func (r *Reconciler) SyncFull(ctx context.Context, cfg *BatchConfig) SyncResult {
	return r.runLogged(ctx, models.SyncTypeFull, supplier.SentinelSince, cfg)
}

func (r *Reconciler) runLogged(ctx context.Context, syncType models.SyncType, since time.Time, cfg *BatchConfig) SyncResult {
	entry, err := r.startRun(syncType, models.JSONB{"trigger": "scheduled"})
	if err != nil {
		// A concurrent run holds the slot; report a no-op rather than racing it.
		r.log.WithError(err).WithField("type", syncType).Warn("Skipping sync run")
		return SyncResult{Errors: 1, ErrorDetails: []string{err.Error()}}
	}

	result := r.syncSince(ctx, since, cfg)
	r.finishRun(entry, &result)
	return result
}

func (r *Reconciler) startRun(syncType models.SyncType, metadata models.JSONB) (*models.SyncLog, error) {
	active, err := r.logs.HasActiveRun(syncType)
	if err != nil {
		return nil, fmt.Errorf("failed to check active runs: %w", err)
	}
	if active {
		return nil, ErrSyncInProgress
	}

	entry := &models.SyncLog{
		Type:      syncType,
		Status:    models.SyncStatusInProgress,
		Metadata:  metadata,
		StartedAt: r.now(),
	}
	if err := r.logs.Create(entry); err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}
	return entry, nil
}

func (r *Reconciler) finishRun(entry *models.SyncLog, result *SyncResult) {
	metadata := models.JSONB{
		"new_products":     result.NewProducts,
		"updated_products": result.UpdatedProducts,
		"duration_ms":      result.Duration.Milliseconds(),
	}
	if len(result.ErrorDetails) > 0 {
		metadata["error_samples"] = result.ErrorDetails
	}

	processed := result.NewProducts + result.UpdatedProducts
	if err := r.logs.Complete(entry, result.Status(), processed, result.Errors, metadata); err != nil {
		r.log.WithError(err).Error("Failed to finalize sync log entry")
	}
}

// syncSince pages through the remote catalog and reconciles each batch. Per
// record failures are sampled and counted but never abort the run; the
// watermark moves only after a clean run so an errored gap is re-covered by
// the next incremental sync.
func (r *Reconciler) syncSince(ctx context.Context, since time.Time, cfg *BatchConfig) SyncResult {
	batch := r.settings.BatchSettings()
	if cfg != nil {
		batch = *cfg
	}
	batch = batch.withDefaults()

	start := r.now()
	result := &SyncResult{}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, batch.MaxConcurrentRequests)
	)

	offset := 0
	for {
		if ctx.Err() != nil {
			mu.Lock()
			result.Errors++
			result.addErrorDetail(fmt.Sprintf("sync canceled: %v", ctx.Err()))
			mu.Unlock()
			break
		}

		page, err := r.fetcher.FetchProducts(ctx, supplier.Filter{
			SysmodifiedSince: since,
			Limit:            batch.BatchSize,
			Offset:           offset,
		})
		if err != nil {
			// A failed page is counted and the run moves on; the unmoved
			// watermark re-covers the gap next time.
			mu.Lock()
			result.Errors++
			result.addErrorDetail(fmt.Sprintf("page fetch at offset %d: %v", offset, err))
			mu.Unlock()
			break
		}
		if len(page) == 0 {
			break
		}

		records := page
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.commitBatch(records, result, &mu)
		}()

		if len(page) < batch.BatchSize {
			break
		}
		offset += batch.BatchSize

		if batch.PauseBetweenBatchesMs > 0 {
			select {
			case <-time.After(time.Duration(batch.PauseBetweenBatchesMs) * time.Millisecond):
			case <-ctx.Done():
			}
		}
	}

	wg.Wait()
	result.Duration = r.now().Sub(start)

	if result.Errors == 0 {
		if err := r.settings.AdvanceWatermark(r.now()); err != nil {
			r.log.WithError(err).Error("Failed to advance sync watermark")
		}
	}

	r.log.WithFields(logrus.Fields{
		"since":   since,
		"new":     result.NewProducts,
		"updated": result.UpdatedProducts,
		"errors":  result.Errors,
	}).Info("Sync run finished")

	return *result
}

// commitBatch reconciles one fetched page against the store. Each record is
// handled independently so a bad record or a failed write costs exactly one
// error, not the batch.
func (r *Reconciler) commitBatch(records []supplier.RemoteProduct, result *SyncResult, mu *sync.Mutex) {
	for i := range records {
		outcome, err := r.reconcileRecord(&records[i])

		mu.Lock()
		switch {
		case err != nil:
			result.Errors++
			result.addErrorDetail(err.Error())
		case outcome == outcomeInserted:
			result.NewProducts++
		case outcome == outcomeUpdated:
			result.UpdatedProducts++
		}
		mu.Unlock()
	}
}

type recordOutcome int

const (
	outcomeSkipped recordOutcome = iota
	outcomeInserted
	outcomeUpdated
)

func (r *Reconciler) reconcileRecord(record *supplier.RemoteProduct) (recordOutcome, error) {
	incoming, err := Transform(record)
	if err != nil {
		return outcomeSkipped, err
	}

	stored, err := r.store.GetByNieuwkoopID(incoming.NieuwkoopID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("lookup %s: %w", incoming.NieuwkoopID, err)
	}

	if stored == nil {
		if err := r.insertWithUniqueSlug(incoming, record.ItemCode); err != nil {
			return outcomeSkipped, fmt.Errorf("insert %s: %w", incoming.NieuwkoopID, err)
		}
		return outcomeInserted, nil
	}

	if !NeedsUpdate(stored, incoming) {
		return outcomeSkipped, nil
	}

	// Keep identity and the already-resolved slug stable across updates.
	incoming.ID = stored.ID
	incoming.CreatedAt = stored.CreatedAt
	incoming.Slug = stored.Slug
	incoming.CartCount = stored.CartCount
	incoming.OrderCount = stored.OrderCount
	if err := r.store.Update(incoming); err != nil {
		return outcomeSkipped, fmt.Errorf("update %s: %w", incoming.NieuwkoopID, err)
	}
	return outcomeUpdated, nil
}

func (r *Reconciler) insertWithUniqueSlug(p *models.Product, itemCode string) error {
	taken, err := r.store.SlugTaken(p.Slug, p.NieuwkoopID)
	if err != nil {
		return err
	}
	if taken {
		p.Slug = SlugWithSuffix(p.Name, itemCode)
	}
	return r.store.Insert(p)
}

// GetProductWithRealtimeData is the storefront's single-item path: live
// price/stock merged onto the stored record, with a silent fallback to the
// last-known values when the supplier is slow, down or does not know the SKU.
// The only error this returns is "not found in the local store".
func (r *Reconciler) GetProductWithRealtimeData(ctx context.Context, sku string) (*ProductView, error) {
	stored, err := r.store.GetBySKU(sku)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", sku, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sku)
	}

	view := &ProductView{Product: *stored, LastPriceCheck: stored.LastStockCheck}

	cacheEnabled, cacheTTL := r.settings.CacheSettings()
	if cacheEnabled && r.cache != nil {
		if price, stock, fetchedAt, ok := r.cache.Get(sku); ok {
			view.BasePrice = price
			view.StockQuantity = stock
			view.IsRealTimeData = true
			view.LastPriceCheck = &fetchedAt
			return view, nil
		}
	}

	remote, err := r.fetcher.FetchProduct(ctx, sku)
	if err != nil {
		// Staleness is acceptable here, an error page is not.
		r.log.WithError(err).WithField("sku", sku).Warn("Realtime lookup failed, serving stored data")
		return view, nil
	}

	checkedAt := r.now()
	view.BasePrice = remote.SellPrice
	view.StockQuantity = remote.StockQuantity
	view.IsRealTimeData = true
	view.LastPriceCheck = &checkedAt

	if cacheEnabled && r.cache != nil {
		r.cache.Put(sku, remote.SellPrice, remote.StockQuantity, cacheTTL)
	}
	if err := r.store.UpdateRealtime(sku, remote.SellPrice, remote.StockQuantity, checkedAt); err != nil {
		r.log.WithError(err).WithField("sku", sku).Warn("Failed to persist realtime snapshot")
	}
	return view, nil
}

// RefreshMany re-checks live price/stock for a set of SKUs. The tiered
// scheduler uses it for the targeted refresh tiers; failures are counted per
// SKU and never stop the sweep.
func (r *Reconciler) RefreshMany(ctx context.Context, skus []string) (processed, errored int) {
	for _, sku := range skus {
		if ctx.Err() != nil {
			errored += len(skus) - processed - errored
			break
		}

		remote, err := r.fetcher.FetchProduct(ctx, sku)
		if err != nil {
			errored++
			continue
		}

		checkedAt := r.now()
		if err := r.store.UpdateRealtime(sku, remote.SellPrice, remote.StockQuantity, checkedAt); err != nil {
			errored++
			continue
		}
		if r.cache != nil {
			if enabled, ttl := r.settings.CacheSettings(); enabled {
				r.cache.Put(sku, remote.SellPrice, remote.StockQuantity, ttl)
			}
		}
		processed++
	}
	return processed, errored
}

func (r *SyncResult) addErrorDetail(detail string) {
	if len(r.ErrorDetails) < maxErrorSamples {
		r.ErrorDetails = append(r.ErrorDetails, detail)
	}
}
