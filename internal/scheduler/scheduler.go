// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/feedrank/internal/feed"
	"github.com/tomtom215/feedrank/internal/feedcache"
	"github.com/tomtom215/feedrank/internal/metrics"
)

// poisonTopic receives jobs whose retries are exhausted.
const poisonTopic = "feed.recompute.poison"

// metaDequeued marks a message whose first attempt has started. The retry
// middleware re-invokes the handler on the same message, so the flag
// distinguishes first attempts from retries.
const metaDequeued = "dequeued"

// Scheduler is the durable, prioritized recommendation job queue. It owns
// the worker pool that pulls jobs, invokes the feed assembler, and writes
// results to the recommendation cache. Safe for concurrent use; runs as a
// suture service.
type Scheduler struct {
	config    *Config
	assembler *feed.Assembler
	cache     *feedcache.Cache
	logger    zerolog.Logger

	pubSub *gochannel.GoChannel
	router *message.Router

	limiter *rate.Limiter
	sem     chan struct{}

	mu      sync.Mutex
	live    map[string]int     // viewerID -> live (queued|running) job count
	records map[string]*Record // jobID -> record

	waiting   atomic.Int64
	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	events chan JobEvent
	now    func() time.Time
}

// New creates a scheduler wired to the given assembler and cache.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg *Config, assembler *feed.Assembler, cache *feedcache.Cache, logger zerolog.Logger) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	compLogger := logger.With().Str("component", "scheduler").Logger()
	wmLogger := newWatermillLogger(logger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.QueueBuffer),
	}, wmLogger)

	s := &Scheduler{
		config:    cfg,
		assembler: assembler,
		cache:     cache,
		logger:    compLogger,
		pubSub:    pubSub,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		sem:       make(chan struct{}, cfg.Workers),
		live:      make(map[string]int),
		records:   make(map[string]*Record),
		events:    make(chan JobEvent, cfg.EventBuffer),
		now:       time.Now,
	}

	router, err := s.buildRouter(wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router

	return s, nil
}

// buildRouter assembles the watermill router with the middleware stack and
// one consumer per priority topic.
func (s *Scheduler) buildRouter(wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: s.config.CloseTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	// Outermost: route messages that failed all retries to the poison
	// topic, where they are marked failed-final.
	poisonQueue, err := middleware.PoisonQueue(s.pubSub, poisonTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	router.AddMiddleware(poisonQueue)

	// Exponential backoff for transient failures, bounded attempts.
	retryMiddleware := middleware.Retry{
		MaxRetries:      s.config.MaxRetries,
		InitialInterval: s.config.RetryInitialInterval,
		MaxInterval:     s.config.RetryMaxInterval,
		Multiplier:      s.config.RetryMultiplier,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retryMiddleware.Middleware)

	// Innermost: convert handler panics to errors so retry sees them.
	router.AddMiddleware(middleware.Recoverer)

	for _, p := range []Priority{PriorityHigh, PriorityNormal, PriorityLow} {
		router.AddConsumerHandler(
			"recompute-"+string(p),
			p.topic(),
			s.pubSub,
			s.handleJob,
		)
	}

	router.AddConsumerHandler(
		"recompute-poison",
		poisonTopic,
		s.pubSub,
		s.handlePoison,
	)

	return router, nil
}

// SetClock overrides the scheduler's clock. Intended for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Enqueue submits a recompute job for a viewer.
//
// The viewer identity is the deduplication key: while a job for the viewer
// is queued or running, a new low- or normal-priority request is dropped
// (the live job will satisfy it) and Enqueue returns an empty job ID. A
// high-priority request is always submitted; it may race harmlessly with
// the in-flight job, and the last cache write wins.
func (s *Scheduler) Enqueue(ctx context.Context, viewerID string, priority Priority) (string, error) {
	if viewerID == "" {
		return "", fmt.Errorf("viewer id is required")
	}
	if !priority.valid() {
		return "", fmt.Errorf("unknown priority %q", priority)
	}

	s.mu.Lock()
	if s.live[viewerID] > 0 && priority != PriorityHigh {
		s.mu.Unlock()
		metrics.DedupDropped.Inc()
		s.logger.Debug().Str("viewer_id", viewerID).Str("priority", string(priority)).
			Msg("dropped duplicate job for viewer")
		return "", nil
	}

	job := Job{
		ID:         uuid.NewString(),
		ViewerID:   viewerID,
		Priority:   priority,
		EnqueuedAt: s.now(),
	}
	s.live[viewerID]++
	s.records[job.ID] = &Record{Job: job, State: StateQueued}
	s.mu.Unlock()

	payload, err := json.Marshal(job)
	if err != nil {
		s.dropJob(job)
		return "", fmt.Errorf("marshal job: %w", err)
	}

	msg := message.NewMessage(job.ID, payload)
	msg.Metadata.Set("viewer_id", viewerID)

	// Counted before publish: a consumer may pick the message up and
	// decrement immediately, and the gauge must never go negative.
	s.waiting.Add(1)
	metrics.QueueDepth.WithLabelValues("waiting").Inc()

	if err := s.pubSub.Publish(priority.topic(), msg); err != nil {
		s.waiting.Add(-1)
		metrics.QueueDepth.WithLabelValues("waiting").Dec()
		s.dropJob(job)
		return "", fmt.Errorf("publish job: %w", err)
	}

	s.logger.Debug().Str("job_id", job.ID).Str("viewer_id", viewerID).
		Str("priority", string(priority)).Msg("enqueued recompute job")

	return job.ID, nil
}

// dropJob rolls back bookkeeping for a job that never made it onto the
// queue.
func (s *Scheduler) dropJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decrementLiveLocked(job.ViewerID)
	delete(s.records, job.ID)
}

// ComputeImmediately bypasses the queue entirely and recomputes the
// viewer's ranking on the calling goroutine, for explicit user-triggered
// refresh actions. The result is written through to the cache so
// subsequent scheduled jobs see a fresh baseline.
func (s *Scheduler) ComputeImmediately(ctx context.Context, viewerID string) (*feed.CachedFeed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	cf, err := s.assembler.Precompute(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("compute for viewer %s: %w", viewerID, err)
	}
	if err := s.cache.Put(ctx, viewerID, cf, 0); err != nil {
		// The ranking is still valid for the caller even if the cache
		// write-through fails.
		s.logger.Warn().Err(err).Str("viewer_id", viewerID).Msg("cache write-through failed")
	}
	return cf, nil
}

// handleJob runs one job attempt. Returning an error hands the message to
// the retry middleware; exhausted retries land on the poison topic.
func (s *Scheduler) handleJob(msg *message.Message) error {
	var job Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		// A payload this scheduler cannot parse will never parse on
		// retry; ack and drop it loudly.
		s.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed job payload")
		return nil
	}

	if msg.Metadata.Get(metaDequeued) == "" {
		msg.Metadata.Set(metaDequeued, "1")
		s.waiting.Add(-1)
		metrics.QueueDepth.WithLabelValues("waiting").Dec()
		s.markRunning(job.ID)
	} else {
		metrics.JobRetries.Inc()
	}
	s.recordAttempt(job.ID)

	// Token bucket gates job starts; the semaphore caps concurrent
	// computations independently of queue depth.
	if err := s.limiter.Wait(msg.Context()); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrJobExecution, err)
	}
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.active.Add(1)
	metrics.QueueDepth.WithLabelValues("active").Inc()
	defer func() {
		s.active.Add(-1)
		metrics.QueueDepth.WithLabelValues("active").Dec()
	}()

	ctx, cancel := context.WithTimeout(msg.Context(), s.config.JobTimeout)
	defer cancel()

	cf, err := s.assembler.Precompute(ctx, job.ViewerID)
	if err != nil {
		return fmt.Errorf("%w: viewer %s: %w", ErrJobExecution, job.ViewerID, err)
	}
	if err := s.cache.Put(ctx, job.ViewerID, cf, 0); err != nil {
		return fmt.Errorf("%w: cache write for viewer %s: %w", ErrJobExecution, job.ViewerID, err)
	}

	s.complete(job)
	return nil
}

// handlePoison marks a job failed-final. Never returns an error: a poison
// message must not be re-poisoned.
func (s *Scheduler) handlePoison(msg *message.Message) error {
	var job Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		s.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("malformed poison payload")
		return nil
	}

	reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey)
	s.failFinal(job, reason)
	return nil
}

// markRunning transitions a job's record to running.
func (s *Scheduler) markRunning(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[jobID]; ok {
		rec.State = StateRunning
		rec.StartedAt = s.now()
	}
}

// recordAttempt increments a job's attempt count.
func (s *Scheduler) recordAttempt(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[jobID]; ok {
		rec.Attempts++
	}
}

// complete finalizes a successful job.
func (s *Scheduler) complete(job Job) {
	s.mu.Lock()
	if rec, ok := s.records[job.ID]; ok {
		rec.State = StateCompleted
		rec.FinishedAt = s.now()
	}
	s.decrementLiveLocked(job.ViewerID)
	s.mu.Unlock()

	s.completed.Add(1)
	metrics.JobsTotal.WithLabelValues(string(job.Priority), "completed").Inc()
	s.emit(JobEvent{Kind: EventCompleted, Job: job, At: s.now()})

	s.logger.Debug().Str("job_id", job.ID).Str("viewer_id", job.ViewerID).
		Msg("recompute job completed")
}

// failFinal finalizes a job whose retries are exhausted.
func (s *Scheduler) failFinal(job Job, reason string) {
	s.mu.Lock()
	if rec, ok := s.records[job.ID]; ok {
		rec.State = StateFailedFinal
		rec.FinishedAt = s.now()
		rec.Error = reason
	}
	s.decrementLiveLocked(job.ViewerID)
	s.mu.Unlock()

	s.failed.Add(1)
	metrics.JobsTotal.WithLabelValues(string(job.Priority), "failed").Inc()
	s.emit(JobEvent{Kind: EventFailedFinal, Job: job, Err: reason, At: s.now()})

	s.logger.Error().Str("job_id", job.ID).Str("viewer_id", job.ViewerID).
		Str("reason", reason).Msg("recompute job failed after all retries")
}

// decrementLiveLocked releases the viewer's dedup slot. Must be called
// with mu held.
func (s *Scheduler) decrementLiveLocked(viewerID string) {
	if s.live[viewerID] <= 1 {
		delete(s.live, viewerID)
		return
	}
	s.live[viewerID]--
}

// emit publishes a job event without blocking. When no consumer keeps up
// the event is dropped; the job record and metrics remain authoritative.
func (s *Scheduler) emit(evt JobEvent) {
	select {
	case s.events <- evt:
	default:
		s.logger.Debug().Str("job_id", evt.Job.ID).Msg("event stream full, dropping event")
	}
}

// Events returns the typed completion event stream.
func (s *Scheduler) Events() <-chan JobEvent {
	return s.events
}

// Stats returns the current queue depth snapshot without mutating state.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Waiting:   s.waiting.Load(),
		Active:    s.active.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
	}
}

// JobRecord returns a copy of the record for a job, if still retained.
func (s *Scheduler) JobRecord(jobID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[jobID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Serve runs the queue router and the record purge loop until the context
// is cancelled. Implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	purgeDone := make(chan struct{})
	go func() {
		defer close(purgeDone)
		s.purgeLoop(ctx)
	}()

	err := s.router.Run(ctx)
	<-purgeDone
	return err
}

// Running returns a channel that closes once the router is consuming.
func (s *Scheduler) Running() <-chan struct{} {
	return s.router.Running()
}

// Close shuts the queue down, waiting up to CloseTimeout for in-flight
// jobs. Running jobs are never force-cancelled mid-computation.
func (s *Scheduler) Close() error {
	if err := s.router.Close(); err != nil {
		return fmt.Errorf("close router: %w", err)
	}
	return s.pubSub.Close()
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "recommendation-scheduler"
}

// purgeInterval is how often terminal records are swept.
const purgeInterval = time.Minute

// purgeLoop drops terminal job records older than the retention window.
func (s *Scheduler) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeRecords()
		}
	}
}

// purgeRecords removes terminal records past retention.
func (s *Scheduler) purgeRecords() {
	cutoff := s.now().Add(-s.config.Retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.State != StateCompleted && rec.State != StateFailedFinal {
			continue
		}
		if rec.FinishedAt.Before(cutoff) {
			delete(s.records, id)
		}
	}
}
