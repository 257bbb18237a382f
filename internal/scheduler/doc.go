// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

// Package scheduler runs the asynchronous recommendation precompute queue.
//
// Jobs target one viewer each and move through a small state machine:
//
//	queued -> running -> completed
//	                  -> failed (retried with exponential backoff)
//	                  -> failed-final (retries exhausted, routed to the
//	                     poison topic, surfaced to observability)
//
// The queue is built on Watermill: a gochannel Pub/Sub carries one topic
// per priority class, and a Router applies retry and poison-queue
// middleware. On top of that the Scheduler adds what the transport does not
// provide: viewer-keyed deduplication (one live job per viewer; a
// high-priority enqueue is never dropped), a semaphore bounding concurrent
// computations independently of queue depth, a token bucket limiting job
// starts per second to protect the content and relationship stores from
// burst load, per-attempt wall-clock timeouts, job records with a bounded
// retention window, and a typed completion event stream.
//
// The Scheduler and the periodic BatchTrigger both implement
// suture.Service and are run under the process supervision tree.
//
// Priority is topic-level, not preemptive: all three classes share the
// same worker budget, but a high-priority job never waits behind a
// low-priority backlog because each class has its own subscription.
package scheduler
