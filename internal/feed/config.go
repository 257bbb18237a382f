// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

import (
	"fmt"
	"math"
)

// Config contains all configuration for the ranking core.
type Config struct {
	// Weights defines the contribution of each scoring signal.
	// Must sum to 1.0; validated at startup.
	Weights SignalWeights `json:"weights" koanf:"weights"`

	// DecayPerHour is the exponential decay constant for the recency
	// signal. Default: 0.1.
	DecayPerHour float64 `json:"decay_per_hour" koanf:"decay_per_hour"`

	// Relevance contains the affinity boost parameters.
	Relevance RelevanceConfig `json:"relevance" koanf:"relevance"`

	// Limits contains operational limits for the assembler.
	Limits LimitsConfig `json:"limits" koanf:"limits"`
}

// SignalWeights defines the contribution of each scoring signal.
type SignalWeights struct {
	// Engagement is the weight of the engagement signal. Default: 0.4.
	Engagement float64 `json:"engagement" koanf:"engagement"`

	// Recency is the weight of the recency signal. Default: 0.3.
	Recency float64 `json:"recency" koanf:"recency"`

	// Relevance is the weight of the relevance signal. Default: 0.3.
	Relevance float64 `json:"relevance" koanf:"relevance"`
}

// RelevanceConfig contains the affinity boost parameters for the relevance
// signal.
type RelevanceConfig struct {
	// FollowBoost is added when the viewer follows the owner. Default: 0.3.
	FollowBoost float64 `json:"follow_boost" koanf:"follow_boost"`

	// SubscribeBoost is added when the viewer subscribes to the owner.
	// Default: 0.5.
	SubscribeBoost float64 `json:"subscribe_boost" koanf:"subscribe_boost"`

	// InteractionBoost is added per prior interaction with the same owner's
	// content. Default: 0.1.
	InteractionBoost float64 `json:"interaction_boost" koanf:"interaction_boost"`

	// InteractionCap bounds the total interaction contribution so repeat
	// history cannot dominate affinity. Default: 0.2.
	InteractionCap float64 `json:"interaction_cap" koanf:"interaction_cap"`
}

// LimitsConfig contains operational limits for the assembler.
type LimitsConfig struct {
	// DefaultPageSize is the page size used when callers pass zero.
	// Default: 20.
	DefaultPageSize int `json:"default_page_size" koanf:"default_page_size"`

	// MaxPageSize is the maximum allowed page size. Default: 100.
	MaxPageSize int `json:"max_page_size" koanf:"max_page_size"`

	// ScoreConcurrency caps parallel per-item relevance fetches within one
	// assemble pass. Default: 8.
	ScoreConcurrency int `json:"score_concurrency" koanf:"score_concurrency"`

	// PrecomputePages is how many pages worth of candidates a precompute
	// run ranks, so several subsequent page requests are served from one
	// computation. Default: 3.
	PrecomputePages int `json:"precompute_pages" koanf:"precompute_pages"`
}

// DefaultConfig returns a Config with production defaults matching the
// ranking formula.
func DefaultConfig() *Config {
	return &Config{
		Weights: SignalWeights{
			Engagement: 0.4,
			Recency:    0.3,
			Relevance:  0.3,
		},
		DecayPerHour: 0.1,
		Relevance: RelevanceConfig{
			FollowBoost:      0.3,
			SubscribeBoost:   0.5,
			InteractionBoost: 0.1,
			InteractionCap:   0.2,
		},
		Limits: LimitsConfig{
			DefaultPageSize:  20,
			MaxPageSize:      100,
			ScoreConcurrency: 8,
			PrecomputePages:  3,
		},
	}
}

// weightSumTolerance absorbs float literal rounding in configured weights.
const weightSumTolerance = 1e-9

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	sum := c.Weights.Engagement + c.Weights.Recency + c.Weights.Relevance
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("signal weights must sum to 1.0, got %f", sum)
	}
	if c.Weights.Engagement < 0 || c.Weights.Recency < 0 || c.Weights.Relevance < 0 {
		return fmt.Errorf("signal weights must be non-negative")
	}
	if c.DecayPerHour <= 0 {
		return fmt.Errorf("decay_per_hour must be positive, got %f", c.DecayPerHour)
	}
	if c.Relevance.FollowBoost < 0 || c.Relevance.SubscribeBoost < 0 {
		return fmt.Errorf("affinity boosts must be non-negative")
	}
	if c.Relevance.InteractionBoost < 0 || c.Relevance.InteractionCap < 0 {
		return fmt.Errorf("interaction boost parameters must be non-negative")
	}
	if c.Limits.DefaultPageSize < 1 {
		return fmt.Errorf("limits.default_page_size must be positive, got %d", c.Limits.DefaultPageSize)
	}
	if c.Limits.MaxPageSize < c.Limits.DefaultPageSize {
		return fmt.Errorf("limits.max_page_size must be >= limits.default_page_size, got %d < %d",
			c.Limits.MaxPageSize, c.Limits.DefaultPageSize)
	}
	if c.Limits.ScoreConcurrency < 1 {
		return fmt.Errorf("limits.score_concurrency must be positive, got %d", c.Limits.ScoreConcurrency)
	}
	if c.Limits.PrecomputePages < 1 {
		return fmt.Errorf("limits.precompute_pages must be positive, got %d", c.Limits.PrecomputePages)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// All nested structs contain only value types.
	cp := *c
	return &cp
}
