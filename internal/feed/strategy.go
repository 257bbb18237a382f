// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

// Strategy is the serving decision for one feed request.
type Strategy int

const (
	// StrategyCached serves the precomputed ranking from the cache.
	StrategyCached Strategy = iota
	// StrategyComputeSync computes the ranking on the request path.
	StrategyComputeSync
	// StrategyDegradedRecency serves a best-effort recency-ordered page,
	// preserving availability over ranking quality.
	StrategyDegradedRecency
)

// String returns a human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyCached:
		return "cached"
	case StrategyComputeSync:
		return "compute_sync"
	case StrategyDegradedRecency:
		return "degraded_recency"
	default:
		return "unknown"
	}
}

// ChooseFeedStrategy is the explicit degraded-path policy: fresh cache entry
// wins, then synchronous computation, then the recency-only fallback. Each
// branch is independently testable instead of living in nested request-path
// conditionals.
func ChooseFeedStrategy(cacheHit, canComputeSync bool) Strategy {
	switch {
	case cacheHit:
		return StrategyCached
	case canComputeSync:
		return StrategyComputeSync
	default:
		return StrategyDegradedRecency
	}
}
