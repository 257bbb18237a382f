// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package scheduler

import (
	"fmt"
	"time"
)

// Config contains all scheduler tunables.
type Config struct {
	// Workers caps concurrent ranking computations, independent of queue
	// depth. Default: 10.
	Workers int `json:"workers" koanf:"workers"`

	// RatePerSecond is the token-bucket refill rate bounding job starts,
	// protecting the content and relationship stores from burst load.
	// Default: 20.
	RatePerSecond float64 `json:"rate_per_second" koanf:"rate_per_second"`

	// Burst is the token-bucket burst size. Default: Workers.
	Burst int `json:"burst" koanf:"burst"`

	// JobTimeout is the per-attempt wall-clock budget. Exceeding it is a
	// retryable failure. Default: 30s.
	JobTimeout time.Duration `json:"job_timeout" koanf:"job_timeout"`

	// MaxRetries is how many times a failed attempt is retried before the
	// job goes failed-final. Default: 3.
	MaxRetries int `json:"max_retries" koanf:"max_retries"`

	// RetryInitialInterval is the first backoff delay. Default: 500ms.
	RetryInitialInterval time.Duration `json:"retry_initial_interval" koanf:"retry_initial_interval"`

	// RetryMaxInterval caps the backoff delay. Default: 30s.
	RetryMaxInterval time.Duration `json:"retry_max_interval" koanf:"retry_max_interval"`

	// RetryMultiplier is the backoff growth factor. Default: 2.0.
	RetryMultiplier float64 `json:"retry_multiplier" koanf:"retry_multiplier"`

	// QueueBuffer is the per-topic channel buffer. Default: 1024.
	QueueBuffer int `json:"queue_buffer" koanf:"queue_buffer"`

	// Retention is how long terminal job records are kept before purge.
	// Distinct from the cache entry TTL. Default: 1h.
	Retention time.Duration `json:"retention" koanf:"retention"`

	// EventBuffer is the completion event stream buffer. Events are
	// dropped, not blocked on, when no consumer keeps up. Default: 256.
	EventBuffer int `json:"event_buffer" koanf:"event_buffer"`

	// CloseTimeout is how long shutdown waits for in-flight jobs. A
	// running job is never force-cancelled mid-computation. Default: 30s.
	CloseTimeout time.Duration `json:"close_timeout" koanf:"close_timeout"`

	// Batch configures the periodic warm-cache trigger.
	Batch BatchConfig `json:"batch" koanf:"batch"`
}

// BatchConfig configures the periodic batch trigger that keeps caches warm
// for recently active users.
type BatchConfig struct {
	// Interval is the time between trigger runs. Default: 6h.
	Interval time.Duration `json:"interval" koanf:"interval"`

	// ActivityWindow is the trailing window defining "recently active":
	// at least one interaction within it. Default: 24h.
	ActivityWindow time.Duration `json:"activity_window" koanf:"activity_window"`

	// Limit caps users enqueued per run to avoid unbounded fan-out.
	// Default: 500.
	Limit int `json:"limit" koanf:"limit"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:              10,
		RatePerSecond:        20,
		Burst:                10,
		JobTimeout:           30 * time.Second,
		MaxRetries:           3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     30 * time.Second,
		RetryMultiplier:      2.0,
		QueueBuffer:          1024,
		Retention:            time.Hour,
		EventBuffer:          256,
		CloseTimeout:         30 * time.Second,
		Batch: BatchConfig{
			Interval:       6 * time.Hour,
			ActivityWindow: 24 * time.Hour,
			Limit:          500,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("rate_per_second must be positive, got %f", c.RatePerSecond)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be positive, got %d", c.Burst)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("job_timeout must be positive, got %v", c.JobTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.RetryInitialInterval <= 0 {
		return fmt.Errorf("retry_initial_interval must be positive, got %v", c.RetryInitialInterval)
	}
	if c.RetryMaxInterval < c.RetryInitialInterval {
		return fmt.Errorf("retry_max_interval must be >= retry_initial_interval, got %v < %v",
			c.RetryMaxInterval, c.RetryInitialInterval)
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("retry_multiplier must be >= 1, got %f", c.RetryMultiplier)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive, got %v", c.Retention)
	}
	if c.Batch.Interval <= 0 {
		return fmt.Errorf("batch.interval must be positive, got %v", c.Batch.Interval)
	}
	if c.Batch.ActivityWindow <= 0 {
		return fmt.Errorf("batch.activity_window must be positive, got %v", c.Batch.ActivityWindow)
	}
	if c.Batch.Limit < 1 {
		return fmt.Errorf("batch.limit must be positive, got %d", c.Batch.Limit)
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
