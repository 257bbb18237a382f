// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

import "errors"

var (
	// ErrVisibilityData indicates a relationship lookup needed for a
	// visibility decision failed. Callers must not default to hidden or
	// visible; the affected item is excluded and counted.
	ErrVisibilityData = errors.New("visibility data unavailable")

	// ErrScoringInput indicates a data fetch needed for scoring one item
	// failed. The item is excluded from the page; the request is not fatal.
	ErrScoringInput = errors.New("scoring input unavailable")
)
