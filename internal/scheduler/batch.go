// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/feedrank/internal/feed"
	"github.com/tomtom215/feedrank/internal/feedcache"
	"github.com/tomtom215/feedrank/internal/metrics"
)

// BatchTrigger periodically enqueues low-priority recompute jobs for
// recently active users so their caches stay warm. Users whose cache
// entry is still fresh are skipped. Runs as a suture service.
type BatchTrigger struct {
	config    BatchConfig
	scheduler *Scheduler
	cache     *feedcache.Cache
	activity  feed.ActivityStore
	logger    zerolog.Logger
	now       func() time.Time
}

// NewBatchTrigger creates the periodic warm-cache trigger.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBatchTrigger(cfg BatchConfig, sched *Scheduler, cache *feedcache.Cache, activity feed.ActivityStore, logger zerolog.Logger) *BatchTrigger {
	return &BatchTrigger{
		config:    cfg,
		scheduler: sched,
		cache:     cache,
		activity:  activity,
		logger:    logger.With().Str("component", "batch-trigger").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the trigger's clock. Intended for tests.
func (b *BatchTrigger) SetClock(now func() time.Time) {
	b.now = now
}

// Serve runs the trigger loop until the context is cancelled. Implements
// suture.Service.
func (b *BatchTrigger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single trigger pass: find recently active users,
// skip the ones whose cache is fresh, enqueue the rest at low priority.
// A failure for one user never aborts the pass.
func (b *BatchTrigger) RunOnce(ctx context.Context) {
	since := b.now().Add(-b.config.ActivityWindow)

	users, err := b.activity.RecentlyActiveUsers(ctx, since, b.config.Limit)
	if err != nil {
		b.logger.Error().Err(err).Msg("listing recently active users failed, skipping pass")
		return
	}

	var enqueued, skipped int
	for _, viewerID := range users {
		if ctx.Err() != nil {
			return
		}
		if b.cache.IsFresh(ctx, viewerID) {
			skipped++
			continue
		}
		if _, err := b.scheduler.Enqueue(ctx, viewerID, PriorityLow); err != nil {
			b.logger.Warn().Err(err).Str("viewer_id", viewerID).Msg("batch enqueue failed")
			continue
		}
		enqueued++
		metrics.BatchEnqueued.Inc()
	}

	b.logger.Info().
		Int("candidates", len(users)).
		Int("enqueued", enqueued).
		Int("fresh_skipped", skipped).
		Msg("batch trigger pass finished")
}

// String names the service in supervisor logs.
func (b *BatchTrigger) String() string {
	return "batch-trigger"
}
