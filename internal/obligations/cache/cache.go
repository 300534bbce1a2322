// Package cache holds recently loaded client records with a soft TTL.
// Expired entries stop being served by Get but stay available to GetStale
// as an emergency fallback when the remote store cannot be reached.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"fiscus/internal/obligations/metrics"
	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/clock"
)

// DefaultTTL is how long a cached record counts as fresh.
const DefaultTTL = 5 * time.Minute

// Lookup results reported to metrics.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultStale = "stale"
)

type entry struct {
	record   models.ClientFiscalRecord
	storedAt time.Time
	seq      uint64
}

// FreshnessCache is safe for concurrent use. Put is last-write-wins.
type FreshnessCache struct {
	items   *gocache.Cache
	ttl     time.Duration
	clock   clock.Clock
	metrics *metrics.Metrics

	writeMu sync.Mutex
	seq     atomic.Uint64
	// cutoff soft-expires every entry whose seq is not above it.
	cutoff atomic.Uint64
}

type Option func(*FreshnessCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *FreshnessCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *FreshnessCache) {
		c.clock = clk
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *FreshnessCache) {
		c.metrics = m
	}
}

func New(opts ...Option) *FreshnessCache {
	c := &FreshnessCache{
		// Expiry is ours to decide; go-cache only provides the concurrent map.
		items: gocache.New(gocache.NoExpiration, 0),
		ttl:   DefaultTTL,
		clock: clock.Real{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured freshness window.
func (c *FreshnessCache) TTL() time.Duration {
	return c.ttl
}

// Get returns a copy of the cached record if it is still fresh.
func (c *FreshnessCache) Get(clientID string) (models.ClientFiscalRecord, bool) {
	e, ok := c.load(clientID)
	if !ok {
		c.metrics.RecordCacheLookup(ResultMiss)
		return models.ClientFiscalRecord{}, false
	}
	if !c.fresh(e) {
		c.metrics.RecordCacheLookup(ResultStale)
		return models.ClientFiscalRecord{}, false
	}
	c.metrics.RecordCacheLookup(ResultHit)
	return e.record.Clone(), true
}

// GetStale returns whatever is cached, fresh or not, with the time it was stored.
func (c *FreshnessCache) GetStale(clientID string) (models.ClientFiscalRecord, time.Time, bool) {
	e, ok := c.load(clientID)
	if !ok {
		return models.ClientFiscalRecord{}, time.Time{}, false
	}
	return e.record.Clone(), e.storedAt, true
}

// Put stores a copy of record, stamped with the current time.
func (c *FreshnessCache) Put(clientID string, record models.ClientFiscalRecord) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.items.Set(clientID, entry{
		record:   record.Clone(),
		storedAt: c.clock.Now(),
		seq:      c.seq.Add(1),
	}, gocache.NoExpiration)
}

// Invalidate drops the entry for one client.
func (c *FreshnessCache) Invalidate(clientID string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.items.Delete(clientID)
}

// InvalidateAll soft-expires every current entry. Stale reads keep working.
func (c *FreshnessCache) InvalidateAll() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.cutoff.Store(c.seq.Load())
}

// Len reports how many entries are held, fresh or stale.
func (c *FreshnessCache) Len() int {
	return c.items.ItemCount()
}

func (c *FreshnessCache) load(clientID string) (entry, bool) {
	v, ok := c.items.Get(clientID)
	if !ok {
		return entry{}, false
	}
	e, ok := v.(entry)
	return e, ok
}

func (c *FreshnessCache) fresh(e entry) bool {
	if e.seq <= c.cutoff.Load() {
		return false
	}
	return c.clock.Now().Sub(e.storedAt) < c.ttl
}
