// internal/syncer/cache.go
package syncer

import (
	"sync"
	"time"
)

// realtimeEntry is one cached live price/stock snapshot.
type realtimeEntry struct {
	price     float64
	stock     int
	fetchedAt time.Time
	expiresAt time.Time
}

// RealtimeCache holds recent single-item supplier lookups so a busy product
// page does not hammer the remote API. It is an explicit owned object rather
// than package-level state, and takes its notion of "now" from an injected
// clock so expiry is deterministic under test.
type RealtimeCache struct {
	mu    sync.RWMutex
	items map[string]realtimeEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewRealtimeCache(ttl time.Duration, now func() time.Time) *RealtimeCache {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RealtimeCache{
		items: make(map[string]realtimeEntry),
		ttl:   ttl,
		now:   now,
	}
}

func (c *RealtimeCache) Get(sku string) (price float64, stock int, fetchedAt time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.items[sku]
	if !found || c.now().After(entry.expiresAt) {
		return 0, 0, time.Time{}, false
	}
	return entry.price, entry.stock, entry.fetchedAt, true
}

// Put stores one snapshot under the given TTL; non-positive falls back to the
// cache default. The TTL rides on the entry, so a changed cache_time setting
// applies to every new entry without a restart.
func (c *RealtimeCache) Put(sku string, price float64, stock int, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.items[sku] = realtimeEntry{
		price:     price,
		stock:     stock,
		fetchedAt: now,
		expiresAt: now.Add(ttl),
	}
}

func (c *RealtimeCache) Invalidate(sku string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, sku)
}

// PruneExpired drops stale entries and returns how many were removed. The
// cleanup scheduler tier calls this to bound memory growth.
func (c *RealtimeCache) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for sku, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, sku)
			removed++
		}
	}
	return removed
}

func (c *RealtimeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
