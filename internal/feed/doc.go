// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

// Package feed implements the home-feed ranking core: audience visibility
// filtering, multi-signal scoring, and page assembly.
//
// The package is deliberately free of storage and transport concerns. All
// data access goes through the ContentStore and RelationshipStore interfaces,
// which are implemented by external collaborators and injected at
// construction time. This keeps the ranking pass a pure function of its
// input snapshot and makes every component testable with in-memory doubles.
//
// # Components
//
//   - VisibilityFilter: decides whether a viewer may see an item based on
//     its visibility class (public, followers, subscribers) and moderation
//     state. Unknown classes fail closed.
//   - Scorer: computes a composite score per item from three signals:
//     engagement (weighted counter average), recency (exponential decay),
//     and relevance (viewer affinity to the item's owner).
//   - Assembler: orchestrates filter and scorer over a recency-ordered
//     candidate window and produces a deterministic, ordered FeedPage.
//
// # Scoring
//
// The composite score is a weighted sum:
//
//	score = w_e*E + w_r*R + w_v*V
//
// with weights validated at startup to sum to 1.0. For fixed inputs the
// score is a pure function; the Scorer takes an injectable clock so tests
// can pin the recency signal.
//
// # Error semantics
//
// A failed relationship or history lookup is never folded into a neutral
// score. It surfaces as ErrVisibilityData or ErrScoringInput for that item,
// and the Assembler excludes the item from the page rather than mis-ranking
// it with falsely neutral data.
package feed
