// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package scheduler

import (
	"errors"
	"time"
)

// ErrJobExecution wraps failures inside a job attempt. Retried per the
// backoff policy; exhausted retries are surfaced as failed-final, never
// silently dropped.
var ErrJobExecution = errors.New("job execution failed")

// Priority is a job's priority class.
type Priority string

const (
	// PriorityHigh jobs are user-facing refreshes; never dropped by dedup.
	PriorityHigh Priority = "high"
	// PriorityNormal jobs come from the request path on cache misses.
	PriorityNormal Priority = "normal"
	// PriorityLow jobs come from the periodic batch trigger.
	PriorityLow Priority = "low"
)

// valid reports whether p is a recognized priority class.
func (p Priority) valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// topic returns the queue topic carrying this priority class.
func (p Priority) topic() string {
	return "feed.recompute." + string(p)
}

// State is a job's lifecycle state.
type State string

const (
	// StateQueued means the job is waiting for a worker.
	StateQueued State = "queued"
	// StateRunning means a worker attempt is in flight (including backoff
	// between retries).
	StateRunning State = "running"
	// StateCompleted means the ranking was computed and cached.
	StateCompleted State = "completed"
	// StateFailedFinal means retries are exhausted.
	StateFailedFinal State = "failed-final"
)

// Job is the unit of scheduled work: recompute one viewer's ranking.
// The viewer identity doubles as the deduplication key.
type Job struct {
	// ID is the unique job identifier.
	ID string `json:"id"`

	// ViewerID is the viewer whose ranking is recomputed.
	ViewerID string `json:"viewer_id"`

	// Priority is the job's priority class.
	Priority Priority `json:"priority"`

	// EnqueuedAt is when the job was accepted.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Record is the observable history of one job. Terminal records are
// retained for the configured retention window, then purged.
type Record struct {
	// Job is the job this record describes.
	Job Job `json:"job"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Attempts is how many worker attempts have run.
	Attempts int `json:"attempts"`

	// StartedAt is when the first attempt began.
	StartedAt time.Time `json:"started_at,omitzero"`

	// FinishedAt is when the job reached a terminal state.
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Error is the final error for failed-final jobs.
	Error string `json:"error,omitempty"`
}

// Stats is the scheduler's queue-depth snapshot. Reading it never mutates
// state.
type Stats struct {
	// Waiting is the number of jobs accepted but not yet picked up.
	Waiting int64 `json:"waiting"`

	// Active is the number of jobs with an attempt in flight.
	Active int64 `json:"active"`

	// Completed is the total number of completed jobs.
	Completed int64 `json:"completed"`

	// Failed is the total number of failed-final jobs.
	Failed int64 `json:"failed"`
}

// EventKind classifies a job event.
type EventKind string

const (
	// EventCompleted is emitted when a job completes and its result is
	// written to the cache.
	EventCompleted EventKind = "completed"
	// EventFailedFinal is emitted when a job exhausts its retries.
	EventFailedFinal EventKind = "failed-final"
)

// JobEvent is one entry of the typed completion stream. Observability
// consumers subscribe to the stream instead of registering callbacks.
type JobEvent struct {
	// Kind is the event classification.
	Kind EventKind `json:"kind"`

	// Job is the job the event describes.
	Job Job `json:"job"`

	// Err is the final error for failed-final events.
	Err string `json:"err,omitempty"`

	// At is when the event occurred.
	At time.Time `json:"at"`
}
