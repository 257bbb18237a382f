// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

// Package config loads the layered process configuration.
//
// Precedence, lowest to highest: built-in defaults, an optional YAML config
// file, then FEEDRANK_-prefixed environment variables. Loading fails on an
// invalid configuration rather than running with silently clamped values.
package config

import (
	"fmt"

	"github.com/tomtom215/feedrank/internal/feed"
	"github.com/tomtom215/feedrank/internal/feedcache"
	"github.com/tomtom215/feedrank/internal/scheduler"
)

// Config is the root process configuration.
type Config struct {
	// Feed configures the ranking core.
	Feed feed.Config `json:"feed" koanf:"feed"`

	// Cache configures the recommendation cache.
	Cache feedcache.Config `json:"cache" koanf:"cache"`

	// Store configures the cache's backing key-value store.
	Store StoreConfig `json:"store" koanf:"store"`

	// Scheduler configures the precompute job queue.
	Scheduler scheduler.Config `json:"scheduler" koanf:"scheduler"`

	// Logging configures the global logger.
	Logging LoggingConfig `json:"logging" koanf:"logging"`
}

// StoreConfig selects and configures the cache's key-value backend.
type StoreConfig struct {
	// Backend is "badger" for durable storage or "memory" for a process-local
	// store. Default: badger.
	Backend string `json:"backend" koanf:"backend"`

	// Path is the on-disk location for the badger backend.
	// Default: /data/feedrank/cache.
	Path string `json:"path" koanf:"path"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is the minimum log level. Default: info.
	Level string `json:"level" koanf:"level"`

	// Format is json or console. Default: json.
	Format string `json:"format" koanf:"format"`

	// Caller includes caller file and line in log output. Default: false.
	Caller bool `json:"caller" koanf:"caller"`
}

// defaultConfig returns the built-in defaults, the lowest layer of the
// loading stack.
func defaultConfig() *Config {
	return &Config{
		Feed:      *feed.DefaultConfig(),
		Cache:     feedcache.DefaultConfig(),
		Scheduler: *scheduler.DefaultConfig(),
		Store: StoreConfig{
			Backend: "badger",
			Path:    "/data/feedrank/cache",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache: ttl must be positive, got %v", c.Cache.TTL)
	}
	switch c.Store.Backend {
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store: path is required for the badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store: unknown backend %q (want badger or memory)", c.Store.Backend)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q (want json or console)", c.Logging.Format)
	}
	return nil
}
