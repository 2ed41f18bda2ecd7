// internal/syncer/scheduler_test.go
package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/supplier"
)

type fakeTierStore struct {
	critical []string
	popular  []string
	stale    []string
}

func (s *fakeTierStore) CriticalStockSKUs(threshold int) ([]string, error) { return s.critical, nil }
func (s *fakeTierStore) PopularSKUs(limit int) ([]string, error)          { return s.popular, nil }
func (s *fakeTierStore) StaleSKUs(notCheckedSince time.Time, limit int) ([]string, error) {
	return s.stale, nil
}

type fakePruner struct {
	mu     sync.Mutex
	pruned int64
	cutoff time.Time
}

func (p *fakePruner) PruneBefore(cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoff = cutoff
	return p.pruned, nil
}

func newTestScheduler(fetcher *fakeFetcher, store *fakeStore, tiers *fakeTierStore, pruner *fakePruner, cache *RealtimeCache) (*Scheduler, *fakeRunLog) {
	logs := &fakeRunLog{}
	settings := &fakeSettings{
		batch:   BatchConfig{BatchSize: 50, MaxConcurrentRequests: 1},
		cacheOn: true,
	}
	r := NewReconciler(fetcher, store, logs, settings, cache)
	return NewScheduler(r, tiers, logs, pruner, cache), logs
}

func TestExecuteTierSkipsWhileStillRunning(t *testing.T) {
	s, logs := newTestScheduler(&fakeFetcher{}, newFakeStore(), &fakeTierStore{}, &fakePruner{}, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := tier{
		name:     models.SyncTypeCriticalStock,
		interval: time.Minute,
		run: func(ctx context.Context) (int, int) {
			close(entered)
			<-release
			return 1, 0
		},
	}

	done := make(chan struct{})
	go func() {
		s.executeTier(context.Background(), slow)
		close(done)
	}()
	<-entered

	// Second tick of the same tier while the first is in flight.
	s.executeTier(context.Background(), slow)

	close(release)
	<-done

	// Only the first invocation ran and logged.
	require.Len(t, logs.entries, 1)
	assert.Equal(t, 1, logs.entries[0].Processed)
}

func TestExecuteTierWritesCompletedLog(t *testing.T) {
	live := listableRecord("PLT-1")
	live.StockQuantity = 3
	fetcher := &fakeFetcher{singles: map[string]*supplier.RemoteProduct{"PLT-1": live}}
	store := newFakeStore()
	p, err := Transform(listableRecord("PLT-1"))
	require.NoError(t, err)
	require.NoError(t, store.Insert(p))

	s, logs := newTestScheduler(fetcher, store, &fakeTierStore{critical: []string{"PLT-1", "MISSING"}}, &fakePruner{}, nil)

	s.executeTier(context.Background(), tier{models.SyncTypeCriticalStock, time.Minute, s.runCriticalStock})

	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	assert.Equal(t, models.SyncTypeCriticalStock, entry.Type)
	assert.Equal(t, models.SyncStatusPartial, entry.Status)
	assert.Equal(t, 1, entry.Processed)
	assert.Equal(t, 1, entry.Errored)
	require.NotNil(t, entry.FinishedAt)
}

func TestExecuteTierRecoversFromPanic(t *testing.T) {
	s, logs := newTestScheduler(&fakeFetcher{}, newFakeStore(), &fakeTierStore{}, &fakePruner{}, nil)

	panicking := tier{
		name:     models.SyncTypePopular,
		interval: time.Minute,
		run:      func(ctx context.Context) (int, int) { panic("boom") },
	}

	assert.NotPanics(t, func() { s.executeTier(context.Background(), panicking) })

	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.SyncStatusError, logs.entries[0].Status)

	// The guard was released, the next tick runs normally.
	s.executeTier(context.Background(), tier{
		name:     models.SyncTypePopular,
		interval: time.Minute,
		run:      func(ctx context.Context) (int, int) { return 0, 0 },
	})
	assert.Len(t, logs.entries, 2)
}

func TestFullTierLogsThroughReconcilerOnly(t *testing.T) {
	fetcher := &fakeFetcher{records: remoteRecords(3)}
	s, logs := newTestScheduler(fetcher, newFakeStore(), &fakeTierStore{}, &fakePruner{}, nil)

	s.executeTier(context.Background(), tier{models.SyncTypeFull, time.Hour, s.runFull})

	// Exactly one entry: the reconciler's own run log, no duplicate tier log.
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.SyncTypeFull, logs.entries[0].Type)
	assert.Equal(t, models.SyncStatusSuccess, logs.entries[0].Status)
	assert.Equal(t, 3, logs.entries[0].Processed)
}

func TestCleanupTierPrunesCacheAndLogs(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewRealtimeCache(time.Minute, clock.Now)
	cache.Put("PLT-1", 1, 1, 0)
	cache.Put("PLT-2", 2, 2, 0)
	clock.Advance(5 * time.Minute)

	pruner := &fakePruner{pruned: 4}
	s, logs := newTestScheduler(&fakeFetcher{}, newFakeStore(), &fakeTierStore{}, pruner, cache)

	s.executeTier(context.Background(), tier{models.SyncTypeCleanup, time.Hour, s.runCleanup})

	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.SyncTypeCleanup, logs.entries[0].Type)
	assert.Equal(t, 6, logs.entries[0].Processed)
	assert.Equal(t, 0, cache.Len())

	// Retention cutoff is roughly 30 days back.
	wantCutoff := time.Now().Add(-logRetention)
	assert.WithinDuration(t, wantCutoff, pruner.cutoff, time.Minute)
}

func TestSchedulerRunsTiersShortlyAfterStart(t *testing.T) {
	s, logs := newTestScheduler(&fakeFetcher{}, newFakeStore(), &fakeTierStore{}, &fakePruner{}, nil)
	s.startupDelay = time.Millisecond

	s.Start()
	defer s.Stop()

	// Every tier fires its first pass after the startup delay, not after a
	// full interval.
	require.Eventually(t, func() bool {
		logs.mu.Lock()
		defer logs.mu.Unlock()
		return len(logs.entries) >= 5
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerStartStop(t *testing.T) {
	s, _ := newTestScheduler(&fakeFetcher{}, newFakeStore(), &fakeTierStore{}, &fakePruner{}, nil)

	s.Start()
	s.Start() // idempotent
	s.Stop()
	s.Stop() // idempotent

	// Restartable after a stop.
	s.Start()
	s.Stop()
}
