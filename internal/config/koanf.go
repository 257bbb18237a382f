// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/feedrank/config.yaml",
	"/etc/feedrank/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "FEEDRANK_CONFIG"

// envPrefix namespaces this process's environment variables.
const envPrefix = "FEEDRANK_"

// Load builds the configuration from defaults, an optional YAML file, and
// FEEDRANK_ environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the config file to load, or "" for defaults-only.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps flat FEEDRANK_ variable names (lowercased, prefix
// stripped) to config paths. Unmapped variables are ignored so unrelated
// environment noise never lands in the configuration.
var envMappings = map[string]string{
	// Ranking core
	"weight_engagement": "feed.weights.engagement",
	"weight_recency":    "feed.weights.recency",
	"weight_relevance":  "feed.weights.relevance",
	"decay_per_hour":    "feed.decay_per_hour",
	"follow_boost":      "feed.relevance.follow_boost",
	"subscribe_boost":   "feed.relevance.subscribe_boost",
	"interaction_boost": "feed.relevance.interaction_boost",
	"interaction_cap":   "feed.relevance.interaction_cap",
	"default_page_size": "feed.limits.default_page_size",
	"max_page_size":     "feed.limits.max_page_size",
	"score_concurrency": "feed.limits.score_concurrency",
	"precompute_pages":  "feed.limits.precompute_pages",

	// Cache
	"cache_ttl":              "cache.ttl",
	"cache_breaker_timeout":  "cache.breaker_timeout",
	"cache_breaker_failures": "cache.breaker_failures",
	"store_backend":          "store.backend",
	"store_path":             "store.path",

	// Scheduler
	"workers":                "scheduler.workers",
	"rate_per_second":        "scheduler.rate_per_second",
	"burst":                  "scheduler.burst",
	"job_timeout":            "scheduler.job_timeout",
	"max_retries":            "scheduler.max_retries",
	"retry_initial_interval": "scheduler.retry_initial_interval",
	"retry_max_interval":     "scheduler.retry_max_interval",
	"retry_multiplier":       "scheduler.retry_multiplier",
	"queue_buffer":           "scheduler.queue_buffer",
	"retention":              "scheduler.retention",
	"event_buffer":           "scheduler.event_buffer",
	"close_timeout":          "scheduler.close_timeout",
	"batch_interval":         "scheduler.batch.interval",
	"batch_activity_window":  "scheduler.batch.activity_window",
	"batch_limit":            "scheduler.batch.limit",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps one environment variable name to its config path.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
