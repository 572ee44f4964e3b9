package pagedex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagedex/pagedex/internal/db"
	dbRedis "github.com/pagedex/pagedex/internal/db/redis"
	dbValkey "github.com/pagedex/pagedex/internal/db/valkey"
	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/metrics"
	"github.com/pagedex/pagedex/internal/repository/querycache"
	searchrepo "github.com/pagedex/pagedex/internal/repository/search"
	"github.com/pagedex/pagedex/internal/retry"
	countuc "github.com/pagedex/pagedex/internal/usecase/count"
)

const defaultReadinessTimeout = 10 * time.Second

// executor runs one search round trip (the bare repository or the cached
// pipeline around it).
type executor interface {
	Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error)
}

// Client is the pagedex SDK entry point. Safe for concurrent use.
type Client struct {
	store       db.Store
	exec        executor
	cache       *querycache.Cache // nil when caching is disabled
	counter     *countuc.Service
	limits      query.Limits
	retry       retry.Policy
	callTimeout time.Duration
	workers     int
	logger      *zap.Logger
}

// New creates a pagedex Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("pagedex: database address required (use WithValkey or WithRedis)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("pagedex: database not ready: %w", err)
	}

	return wireClient(store, cfg), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("pagedex: create valkey store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("pagedex: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("pagedex: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) *Client {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limits := query.Limits{
		MaxPageSize:   cfg.maxPageSize,
		OffsetCeiling: cfg.offsetCeiling,
	}
	pol := retry.Policy{
		MaxAttempts: cfg.retryAttempts,
		BaseDelay:   cfg.retryBaseDelay,
	}

	searchRepo := searchrepo.New(store)
	var exec executor = searchRepo
	var cache *querycache.Cache
	if cfg.cacheEnabled {
		cache = querycache.New(
			searchRepo,
			querycache.Config{
				TTL:      cfg.cacheTTL,
				Capacity: cfg.cacheCapacity,
			},
			metrics.CacheTotal,
			metrics.CacheEvictionsTotal,
			metrics.SlowQueriesTotal,
			logger,
		)
		exec = cache
	}

	return &Client{
		store:       store,
		exec:        exec,
		cache:       cache,
		counter:     countuc.New(exec, searchRepo, countuc.Config{Retry: pol}),
		limits:      limits,
		retry:       pol,
		callTimeout: cfg.callTimeout,
		workers:     cfg.maxConcurrency,
		logger:      logger,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// CacheStats is a point-in-time view of the result cache telemetry.
type CacheStats struct {
	TotalRequests  int64
	Hits           int64
	Misses         int64
	Entries        int
	AverageLatency time.Duration
}

// CacheStats returns hit/miss statistics of the result cache.
// Returns false when caching is disabled.
func (c *Client) CacheStats() (CacheStats, bool) {
	if c.cache == nil {
		return CacheStats{}, false
	}
	s := c.cache.Stats()
	return CacheStats{
		TotalRequests:  s.TotalRequests,
		Hits:           s.Hits,
		Misses:         s.Misses,
		Entries:        s.Entries,
		AverageLatency: s.AverageLatency,
	}, true
}
