// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

// Command server runs the feed ranking precompute engine as a supervised
// process: configuration, logging, the cache store, the scheduler queue,
// and the periodic batch trigger, shut down together on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/feedrank/internal/config"
	"github.com/tomtom215/feedrank/internal/feed"
	"github.com/tomtom215/feedrank/internal/feedcache"
	"github.com/tomtom215/feedrank/internal/logging"
	"github.com/tomtom215/feedrank/internal/scheduler"
	"github.com/tomtom215/feedrank/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_backend", cfg.Store.Backend).
		Int("workers", cfg.Scheduler.Workers).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("starting feedrank")

	var store feedcache.Store
	switch cfg.Store.Backend {
	case "badger":
		store, err = feedcache.OpenBadgerStore(cfg.Store.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open cache store")
		}
	default:
		store = feedcache.NewMemoryStore()
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing cache store")
		}
	}()

	cache := feedcache.New(store, cfg.Cache, logging.Logger())

	// The content, relationship, and activity stores are collaborators the
	// embedding application provides. Standalone, the binary runs against
	// seeded in-memory stores so the pipeline is fully exercisable.
	stores := newSeedStores(time.Now())

	assembler, err := feed.NewAssembler(&cfg.Feed, stores, stores, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build assembler")
	}

	sched, err := scheduler.New(&cfg.Scheduler, assembler, cache, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build scheduler")
	}
	trigger := scheduler.NewBatchTrigger(cfg.Scheduler.Batch, sched, cache, stores, logging.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddWorker(sched)
	tree.AddWorker(trigger)

	go logJobEvents(ctx, sched)

	logging.Info().Msg("supervision tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervision tree exited with error")
	}

	stats := sched.Stats()
	logging.Info().
		Int64("completed", stats.Completed).
		Int64("failed", stats.Failed).
		Msg("shutdown complete")
}

// logJobEvents surfaces terminal job outcomes from the scheduler's event
// stream into the process log.
func logJobEvents(ctx context.Context, sched *scheduler.Scheduler) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sched.Events():
			switch evt.Kind {
			case scheduler.EventCompleted:
				logging.Debug().
					Str("job_id", evt.Job.ID).
					Str("viewer_id", evt.Job.ViewerID).
					Str("priority", string(evt.Job.Priority)).
					Msg("recompute job completed")
			case scheduler.EventFailedFinal:
				logging.Error().
					Str("job_id", evt.Job.ID).
					Str("viewer_id", evt.Job.ViewerID).
					Str("reason", evt.Err).
					Msg("recompute job failed permanently")
			}
		}
	}
}
