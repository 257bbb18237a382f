// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feedcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/feedrank/internal/feed"
	"github.com/tomtom215/feedrank/internal/metrics"
)

var (
	// ErrCacheMiss indicates no usable entry: absent, or older than its TTL.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable indicates the backing store is failing or the
	// circuit breaker is open. Request paths treat this as a forced miss.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// keyPrefix namespaces recommendation entries in the shared KV store.
const keyPrefix = "feed:recs:"

// envelope is the stored form of one cache entry. TTL travels with the
// entry so freshness is judged against the TTL in force at write time.
type envelope struct {
	Feed feed.CachedFeed `json:"feed"`
	TTL  time.Duration   `json:"ttl"`
}

// Config holds cache tunables.
type Config struct {
	// TTL is the default entry time-to-live. Distinct from the scheduler's
	// job retention window. Default: 10m.
	TTL time.Duration `json:"ttl" koanf:"ttl"`

	// BreakerTimeout is how long the circuit stays open after tripping.
	// Default: 30s.
	BreakerTimeout time.Duration `json:"breaker_timeout" koanf:"breaker_timeout"`

	// BreakerFailures is the consecutive-failure count that trips the
	// circuit. Default: 5.
	BreakerFailures uint32 `json:"breaker_failures" koanf:"breaker_failures"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:             10 * time.Minute,
		BreakerTimeout:  30 * time.Second,
		BreakerFailures: 5,
	}
}

// Cache is the recommendation cache: one whole-entry-replace slot per
// viewer. Writers are the scheduler worker and the synchronous-override
// path; the request path only reads. Safe for concurrent use.
type Cache struct {
	store   Store
	config  Config
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a cache over the given store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(store Store, cfg Config, logger zerolog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultConfig().BreakerTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultConfig().BreakerFailures
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "feedcache",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A cold read is an ordinary miss, not a store failure. Only real
		// store errors may count toward tripping the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrKeyNotFound)
		},
	})

	return &Cache{
		store:   store,
		config:  cfg,
		breaker: breaker,
		logger:  logger.With().Str("component", "feedcache").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the cache's clock. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the viewer's cached ranking. ErrCacheMiss when absent or
// expired; ErrCacheUnavailable when the store cannot answer.
func (c *Cache) Get(ctx context.Context, viewerID string) (*feed.CachedFeed, error) {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.store.Get(ctx, keyPrefix+viewerID)
	})
	if errors.Is(err, ErrKeyNotFound) {
		metrics.RecordCacheMiss("absent")
		return nil, ErrCacheMiss
	}
	if err != nil {
		metrics.RecordCacheMiss("unavailable")
		return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// A corrupt entry is indistinguishable from no entry; the next
		// successful computation overwrites it.
		c.logger.Warn().Err(err).Str("viewer_id", viewerID).Msg("corrupt cache entry, treating as miss")
		metrics.RecordCacheMiss("absent")
		return nil, ErrCacheMiss
	}

	if c.now().Sub(env.Feed.ComputedAt) >= env.TTL {
		metrics.RecordCacheMiss("expired")
		return nil, ErrCacheMiss
	}

	metrics.RecordCacheHit()
	return &env.Feed, nil
}

// Put replaces the viewer's entry whole. A non-positive ttl uses the
// configured default.
func (c *Cache) Put(ctx context.Context, viewerID string, cf *feed.CachedFeed, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.config.TTL
	}

	raw, err := json.Marshal(envelope{Feed: *cf, TTL: ttl})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	_, err = c.breaker.Execute(func() ([]byte, error) {
		return nil, c.store.Set(ctx, keyPrefix+viewerID, raw, ttl)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}

	metrics.CacheWrites.Inc()
	return nil
}

// IsFresh reports whether a usable entry exists. It is a cheap read used by
// the scheduler to decide whether a low-priority job is worth enqueuing; it
// never triggers computation.
func (c *Cache) IsFresh(ctx context.Context, viewerID string) bool {
	_, err := c.Get(ctx, viewerID)
	return err == nil
}

// Page serves one page out of the viewer's cached ranking.
func (c *Cache) Page(ctx context.Context, viewerID string, page, pageSize int) (*feed.FeedPage, error) {
	cf, err := c.Get(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return cf.PageAt(page, pageSize), nil
}
