package pagedex

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string // "valkey" or "redis"
	addrs    []string
	password string

	maxPageSize   int
	offsetCeiling int

	retryAttempts  int
	retryBaseDelay time.Duration
	callTimeout    time.Duration

	cacheEnabled  bool
	cacheTTL      time.Duration
	cacheCapacity int

	maxConcurrency int

	logger *zap.Logger
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithLimits overrides the service window bounds: the largest page a single
// request may ask for and the deepest addressable offset (skip+top).
// Defaults: 1000 and 100000.
func WithLimits(maxPageSize, offsetCeiling int) Option {
	return func(c *clientConfig) {
		c.maxPageSize = maxPageSize
		c.offsetCeiling = offsetCeiling
	}
}

// WithRetry overrides the transient-error retry policy.
// Defaults: 3 attempts, 1s base delay doubled per attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *clientConfig) {
		c.retryAttempts = maxAttempts
		c.retryBaseDelay = baseDelay
	}
}

// WithCallTimeout bounds every search round trip.
// Zero (the default) means no per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.callTimeout = d
	}
}

// WithCache enables the in-memory result cache.
// Zero ttl or capacity fall back to the cache defaults (60s, 1000 entries).
func WithCache(ttl time.Duration, capacity int) Option {
	return func(c *clientConfig) {
		c.cacheEnabled = true
		c.cacheTTL = ttl
		c.cacheCapacity = capacity
	}
}

// WithMaxConcurrency caps the worker pool used by bulk page fetches.
// Default: 4.
func WithMaxConcurrency(n int) Option {
	return func(c *clientConfig) {
		c.maxConcurrency = n
	}
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
