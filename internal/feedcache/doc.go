// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

// Package feedcache stores precomputed per-viewer rankings with explicit
// staleness semantics.
//
// Entries are whole-value replacements keyed by viewer identity: readers
// never observe a half-written entry because the underlying store's set is
// atomic for a single key. An entry older than its TTL is treated as absent;
// it is not deleted on read, just ignored and overwritten by the next
// successful computation.
//
// Two Store backends are provided: BadgerStore for durable production use
// (BadgerDB with native key TTLs) and MemoryStore for tests. The cache
// wraps its store in a circuit breaker; a tripped breaker or failing store
// is reported as ErrCacheUnavailable, which the request path treats as a
// forced miss rather than an error response.
package feedcache
