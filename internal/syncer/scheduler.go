// internal/syncer/scheduler.go
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenhaven/garden-backend/internal/models"
)

// TierStore is the catalog-selection contract the scheduler needs on top of
// the reconciler: which SKUs each refresh tier should sweep.
type TierStore interface {
	CriticalStockSKUs(threshold int) ([]string, error)
	PopularSKUs(limit int) ([]string, error)
	StaleSKUs(notCheckedSince time.Time, limit int) ([]string, error)
}

// LogPruner removes finished sync log rows older than the retention window.
type LogPruner interface {
	PruneBefore(cutoff time.Time) (int64, error)
}

// Tier intervals and selection caps. These are shop policy, not supplier
// requirements.
const (
	criticalInterval = 5 * time.Minute
	popularInterval  = 15 * time.Minute
	normalInterval   = 2 * time.Hour
	fullInterval     = 24 * time.Hour
	cleanupInterval  = 30 * time.Minute

	popularTierSize  = 20
	normalTierSize   = 100
	normalStaleAfter = 4 * time.Hour
	logRetention     = 30 * 24 * time.Hour

	// First pass per tier shortly after boot; waiting out a full interval
	// would leave the catalog stale for up to a day after a restart.
	defaultStartupDelay = 10 * time.Second
)

type tier struct {
	name     models.SyncType
	interval time.Duration
	run      func(ctx context.Context) (processed, errored int)
}

// Scheduler drives the tiered background refresh. It is an explicitly
// constructed component with a start/stop lifecycle; tiers tick independently
// and a tier never overlaps its own previous invocation.
type Scheduler struct {
	reconciler *Reconciler
	store      TierStore
	logs       RunLog
	pruner     LogPruner
	cache      *RealtimeCache
	log        *logrus.Entry

	startupDelay time.Duration

	mu      sync.Mutex
	running map[models.SyncType]bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewScheduler(reconciler *Reconciler, store TierStore, logs RunLog, pruner LogPruner, cache *RealtimeCache) *Scheduler {
	return &Scheduler{
		reconciler:   reconciler,
		store:        store,
		logs:         logs,
		pruner:       pruner,
		cache:        cache,
		log:          logrus.WithField("component", "scheduler"),
		running:      make(map[models.SyncType]bool),
		startupDelay: defaultStartupDelay,
	}
}

// Start launches all tiers. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	for _, t := range s.tiers() {
		s.wg.Add(1)
		go s.runTierLoop(ctx, t)
	}
	s.log.Info("Tiered sync scheduler started")
}

// Stop cancels all tiers and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info("Tiered sync scheduler stopped")
}

func (s *Scheduler) tiers() []tier {
	return []tier{
		{models.SyncTypeCriticalStock, criticalInterval, s.runCriticalStock},
		{models.SyncTypePopular, popularInterval, s.runPopular},
		{models.SyncTypeNormal, normalInterval, s.runNormal},
		{models.SyncTypeFull, fullInterval, s.runFull},
		{models.SyncTypeCleanup, cleanupInterval, s.runCleanup},
	}
}

func (s *Scheduler) runTierLoop(ctx context.Context, t tier) {
	defer s.wg.Done()

	kick := time.NewTimer(s.startupDelay)
	defer kick.Stop()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-kick.C:
			s.executeTier(ctx, t)
		case <-ticker.C:
			s.executeTier(ctx, t)
		}
	}
}

// executeTier runs one tier invocation with the in-progress guard and full
// failure containment: a panicking or failing tier logs an error entry and
// leaves every other tier untouched.
func (s *Scheduler) executeTier(ctx context.Context, t tier) {
	if !s.tryAcquire(t.name) {
		s.log.WithField("tier", t.name).Warn("Previous run still active, skipping tick")
		return
	}
	defer s.release(t.name)

	start := time.Now()
	var processed, errored int

	defer func() {
		if rec := recover(); rec != nil {
			s.log.WithFields(logrus.Fields{"tier": t.name, "panic": rec}).Error("Tier run panicked")
			s.writeTierLog(t.name, models.SyncStatusError, processed, errored+1, start)
		}
	}()

	processed, errored = t.run(ctx)

	status := models.SyncStatusSuccess
	if errored > 0 {
		status = models.SyncStatusPartial
	}
	s.writeTierLog(t.name, status, processed, errored, start)
}

func (s *Scheduler) tryAcquire(name models.SyncType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) release(name models.SyncType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
}

func (s *Scheduler) writeTierLog(name models.SyncType, status models.SyncStatus, processed, errored int, start time.Time) {
	// The full tier logs through the reconciler already.
	if name == models.SyncTypeFull {
		return
	}

	entry := &models.SyncLog{
		Type:      name,
		Status:    models.SyncStatusInProgress,
		StartedAt: start,
	}
	if err := s.logs.Create(entry); err != nil {
		s.log.WithError(err).WithField("tier", name).Error("Failed to create tier log entry")
		return
	}
	metadata := models.JSONB{"duration_ms": time.Since(start).Milliseconds()}
	if err := s.logs.Complete(entry, status, processed, errored, metadata); err != nil {
		s.log.WithError(err).WithField("tier", name).Error("Failed to finalize tier log entry")
	}
}

// Critical tier: active products with nearly empty stock must reflect reality
// fast.
func (s *Scheduler) runCriticalStock(ctx context.Context) (int, int) {
	skus, err := s.store.CriticalStockSKUs(models.LowStockThreshold)
	if err != nil {
		s.log.WithError(err).Error("Critical stock selection failed")
		return 0, 1
	}
	return s.reconciler.RefreshMany(ctx, skus)
}

// Popular tier: the most referenced products tolerate the least staleness.
func (s *Scheduler) runPopular(ctx context.Context) (int, int) {
	skus, err := s.store.PopularSKUs(popularTierSize)
	if err != nil {
		s.log.WithError(err).Error("Popular selection failed")
		return 0, 1
	}
	return s.reconciler.RefreshMany(ctx, skus)
}

// Normal tier: steady rotation through the rest of the active catalog,
// oldest-checked first, capped so the supplier API is never flooded.
func (s *Scheduler) runNormal(ctx context.Context) (int, int) {
	skus, err := s.store.StaleSKUs(time.Now().Add(-normalStaleAfter), normalTierSize)
	if err != nil {
		s.log.WithError(err).Error("Stale selection failed")
		return 0, 1
	}
	return s.reconciler.RefreshMany(ctx, skus)
}

// Full tier: catalog-wide reconciliation catches taxonomy and price changes
// the targeted tiers miss.
func (s *Scheduler) runFull(ctx context.Context) (int, int) {
	result := s.reconciler.SyncFull(ctx, nil)
	return result.NewProducts + result.UpdatedProducts, result.Errors
}

// Cleanup tier: bounded growth for the realtime cache and the sync log table.
func (s *Scheduler) runCleanup(ctx context.Context) (int, int) {
	removed := 0
	if s.cache != nil {
		removed += s.cache.PruneExpired()
	}

	pruned, err := s.pruner.PruneBefore(time.Now().Add(-logRetention))
	if err != nil {
		s.log.WithError(err).Error("Sync log prune failed")
		return removed, 1
	}
	return removed + int(pruned), 0
}
