// Package querycache memoizes executed queries for a bounded TTL and
// capacity, and records slow-query and cache-hit telemetry.
//
// The cache is a decorator around the query executor: hits skip the network
// round trip entirely, misses are timed and fed into the slow-query log.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// executor is the consumer interface for the cached pipeline (ISP).
type executor interface {
	Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error)
}

// Config bounds the cache and the telemetry it keeps.
type Config struct {
	TTL                time.Duration
	Capacity           int
	SlowQueryThreshold time.Duration
	SlowLogCapacity    int
}

// Defaults applied when a Config field is zero.
const (
	DefaultTTL                = 60 * time.Second
	DefaultCapacity           = 1000
	DefaultSlowQueryThreshold = time.Second
	DefaultSlowLogCapacity    = 100
)

func (c Config) normalized() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = DefaultSlowQueryThreshold
	}
	if c.SlowLogCapacity <= 0 {
		c.SlowLogCapacity = DefaultSlowLogCapacity
	}
	return c
}

type entry struct {
	payload     page.ResultPage
	insertedAt  time.Time
	accessCount int64
}

// Cache is a caching executor decorator with bounded TTL and capacity.
type Cache struct {
	inner  executor
	cfg    Config
	logger *zap.Logger

	// cacheTotal is a counter vec with label "result" ("hit"/"miss"),
	// passed explicitly like the rest of the metrics.
	cacheTotal *prometheus.CounterVec
	evictions  prometheus.Counter
	slowTotal  prometheus.Counter

	// One mutex guards entries and stats: eviction sweeps must be atomic
	// relative to insertion.
	mu      sync.RWMutex
	entries map[string]*entry
	stats   stats
	slowLog *slowLog

	now func() time.Time // injectable clock for tests
}

type stats struct {
	totalRequests int64
	hits          int64
	misses        int64
	cumLatency    time.Duration
}

// New creates a caching decorator around an executor.
func New(
	inner executor,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	evictions, slowTotal prometheus.Counter,
	logger *zap.Logger,
) *Cache {
	cfg = cfg.normalized()
	return &Cache{
		inner:      inner,
		cfg:        cfg,
		logger:     logger,
		cacheTotal: cacheTotal,
		evictions:  evictions,
		slowTotal:  slowTotal,
		entries:    make(map[string]*entry),
		slowLog:    newSlowLog(cfg.SlowLogCapacity),
		now:        time.Now,
	}
}

// Execute returns a cached page when fresh, otherwise delegates to the inner
// executor, timing the round trip and recording slow queries.
func (c *Cache) Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
	key := cacheKey(index, q)

	if p, ok := c.get(key); ok {
		c.incCache("hit")
		return p, nil
	}
	c.incCache("miss")

	start := c.now()
	p, err := c.inner.Execute(ctx, index, q)
	elapsed := c.now().Sub(start)

	c.recordLatency(elapsed)
	if elapsed >= c.cfg.SlowQueryThreshold {
		if c.slowTotal != nil {
			c.slowTotal.Inc()
		}
		c.slowLog.append(index, q, elapsed)
		c.logger.Warn("Slow search query",
			zap.String("index", index),
			zap.String("query", q.Text()),
			zap.Duration("elapsed", elapsed),
		)
	}
	if err != nil {
		return page.ResultPage{}, err
	}

	c.put(key, p)
	return p, nil
}

func (c *Cache) get(key string) (page.ResultPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.totalRequests++

	e, ok := c.entries[key]
	if !ok {
		c.stats.misses++
		return page.ResultPage{}, false
	}
	if c.now().Sub(e.insertedAt) >= c.cfg.TTL {
		delete(c.entries, key)
		c.stats.misses++
		return page.ResultPage{}, false
	}

	e.accessCount++
	c.stats.hits++
	return e.payload, true
}

func (c *Cache) put(key string, p page.ResultPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.cfg.Capacity {
		c.evictLocked()
	}
	c.entries[key] = &entry{payload: p, insertedAt: c.now()}
}

// evictLocked removes the lowest-ranked quarter of entries, ranked by
// (accessCount ascending, insertedAt ascending). Caller holds mu.
func (c *Cache) evictLocked() {
	type ranked struct {
		key string
		e   *entry
	}
	all := make([]ranked, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, ranked{key: k, e: e})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].e.accessCount != all[j].e.accessCount {
			return all[i].e.accessCount < all[j].e.accessCount
		}
		return all[i].e.insertedAt.Before(all[j].e.insertedAt)
	})

	n := len(all) / 4
	if n < 1 {
		n = 1
	}
	for _, r := range all[:n] {
		delete(c.entries, r.key)
	}
	if c.evictions != nil {
		c.evictions.Add(float64(n))
	}
	c.logger.Debug("Evicted cache entries", zap.Int("count", n), zap.Int("remaining", len(c.entries)))
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *Cache) recordLatency(d time.Duration) {
	c.mu.Lock()
	c.stats.cumLatency += d
	c.mu.Unlock()
}

// Snapshot is a point-in-time view of the cache telemetry.
type Snapshot struct {
	TotalRequests     int64
	Hits              int64
	Misses            int64
	Entries           int
	CumulativeLatency time.Duration
	AverageLatency    time.Duration
}

// Stats returns the accumulated telemetry.
func (c *Cache) Stats() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		TotalRequests:     c.stats.totalRequests,
		Hits:              c.stats.hits,
		Misses:            c.stats.misses,
		Entries:           len(c.entries),
		CumulativeLatency: c.stats.cumLatency,
	}
	if c.stats.misses > 0 {
		s.AverageLatency = c.stats.cumLatency / time.Duration(c.stats.misses)
	}
	return s
}

// SlowQueries returns the recorded slow queries, newest last.
func (c *Cache) SlowQueries() []SlowQuery {
	return c.slowLog.snapshot()
}

// Recommendations derives strategy hints from the accumulated telemetry.
func (c *Cache) Recommendations() []string {
	s := c.Stats()

	var recs []string
	if s.TotalRequests >= 100 {
		hitRate := float64(s.Hits) / float64(s.TotalRequests)
		if hitRate < 0.2 {
			recs = append(recs, "cache hit rate below 20%: consider raising TTL or disabling the cache")
		}
	}
	if s.Entries >= c.cfg.Capacity {
		recs = append(recs, "cache at capacity: consider raising capacity to reduce eviction churn")
	}
	if slow := c.slowLog.len(); slow > 0 {
		recs = append(recs, "slow queries recorded: prefer keyset pagination and narrower field selection")
	}
	return recs
}

// cacheKey hashes the index name and every query parameter.
func cacheKey(index string, q *query.Query) string {
	h := sha256.New()
	h.Write([]byte(index))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(q.CacheKeyParts(), "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}
