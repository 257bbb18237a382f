// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the ranking and precompute pipeline:
// - Assembler latency and per-item exclusions
// - Recommendation cache efficiency
// - Scheduler queue depth, job outcomes, retries and dedup drops

var (
	// Assembler Metrics
	AssembleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_assemble_duration_seconds",
			Help:    "Duration of feed assembly passes in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"}, // "home", "profile", "precompute"
	)

	ItemsExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_excluded_total",
			Help: "Total candidates excluded from feed pages",
		},
		[]string{"reason"}, // "invalid", "visibility_data", "scoring_input"
	)

	// Recommendation Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcache_hits_total",
			Help: "Total recommendation cache hits",
		},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcache_misses_total",
			Help: "Total recommendation cache misses",
		},
		[]string{"reason"}, // "absent", "expired", "unavailable"
	)

	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcache_writes_total",
			Help: "Total recommendation cache writes",
		},
	)

	// Scheduler Metrics
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_total",
			Help: "Total recommendation jobs by priority and terminal result",
		},
		[]string{"priority", "result"}, // result: "completed", "failed"
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_queue_depth",
			Help: "Current scheduler queue depth by state",
		},
		[]string{"state"}, // "waiting", "active"
	)

	JobRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_job_retries_total",
			Help: "Total recommendation job retry attempts",
		},
	)

	DedupDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_dedup_dropped_total",
			Help: "Total enqueue requests dropped by viewer deduplication",
		},
	)

	BatchEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_batch_enqueued_total",
			Help: "Total jobs enqueued by the periodic batch trigger",
		},
	)
)

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	CacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter for the given reason.
func RecordCacheMiss(reason string) {
	CacheMisses.WithLabelValues(reason).Inc()
}
