// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/feedrank/internal/metrics"
)

// Assembler orchestrates the visibility filter and scorer over a paginated
// candidate window and produces ordered, deterministic feed pages.
// It is safe for concurrent use.
type Assembler struct {
	config  *Config
	content ContentStore
	filter  *VisibilityFilter
	scorer  *Scorer
	logger  zerolog.Logger
	now     func() time.Time
}

// CachedFeed is a precomputed, ranked candidate set destined for the
// recommendation cache. One precompute serves several subsequent page
// requests.
type CachedFeed struct {
	// ViewerID is the viewer the ranking was computed for.
	ViewerID string `json:"viewer_id"`

	// Items is the full ranked item list, highest score first.
	Items []ScoredItem `json:"items"`

	// PageSize is the page size the ranking was computed against.
	PageSize int `json:"page_size"`

	// ComputedAt is when the ranking pass finished.
	ComputedAt time.Time `json:"computed_at"`
}

// PageAt slices a page out of the cached ranking. Page numbers are 1-based.
// HasMore reports whether the cached set extends past the requested page.
func (cf *CachedFeed) PageAt(page, pageSize int) *FeedPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = cf.PageSize
	}

	start := (page - 1) * pageSize
	if start >= len(cf.Items) {
		return &FeedPage{Items: []ScoredItem{}, Page: page, PageSize: pageSize, HasMore: false}
	}
	end := start + pageSize
	if end > len(cf.Items) {
		end = len(cf.Items)
	}

	return &FeedPage{
		Items:    cf.Items[start:end],
		Page:     page,
		PageSize: pageSize,
		HasMore:  end < len(cf.Items),
	}
}

// NewAssembler creates an assembler with its filter and scorer wired to the
// given collaborators.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAssembler(cfg *Config, content ContentStore, rel RelationshipStore, logger zerolog.Logger) (*Assembler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	scorer, err := NewScorer(cfg, rel, logger)
	if err != nil {
		return nil, err
	}

	return &Assembler{
		config:  cfg,
		content: content,
		filter:  NewVisibilityFilter(rel),
		scorer:  scorer,
		logger:  logger.With().Str("component", "assembler").Logger(),
		now:     time.Now,
	}, nil
}

// SetClock overrides the assembler's and scorer's clock. Intended for tests.
func (a *Assembler) SetClock(now func() time.Time) {
	a.now = now
	a.scorer.SetClock(now)
}

// Assemble produces the ranked home-feed page for a viewer.
//
// The candidate window is fetched newest-first with the standard
// skip = (page-1)*pageSize offset, filtered by moderation state and
// visibility, scored with bounded concurrency, and sorted descending by
// score with ties broken by newer creation time, then item ID ascending.
// HasMore is true iff the candidate window came back exactly full.
//
// Per-item failures (visibility data or scoring input unavailable) exclude
// the affected item, are counted and logged, and never fail the page. A
// failure fetching the viewer's interaction history poisons every relevance
// score in the pass and is returned as an error instead; callers degrade
// explicitly through AssembleDegraded.
func (a *Assembler) Assemble(ctx context.Context, viewerID string, page, pageSize int) (*FeedPage, error) {
	start := a.now()
	page, pageSize = a.clampPaging(page, pageSize)

	candidates, err := a.content.CandidatesByRecency(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	visible := a.filterCandidates(ctx, candidates, viewerID)
	scored, err := a.scoreCandidates(ctx, visible, viewerID)
	if err != nil {
		return nil, err
	}
	sortScored(scored)

	metrics.AssembleDuration.WithLabelValues("home").Observe(a.now().Sub(start).Seconds())

	return &FeedPage{
		Items:    scored,
		Page:     page,
		PageSize: pageSize,
		HasMore:  len(candidates) == pageSize,
	}, nil
}

// AssembleProfile produces one owner's posts for a viewer in pure recency
// order. This is the deliberately cheaper path for "view someone's posts":
// the audience gate is keyed on the single owner (two lookups for the whole
// page) and no relevance scoring runs.
func (a *Assembler) AssembleProfile(ctx context.Context, viewerID, ownerID string, page, pageSize int) (*FeedPage, error) {
	start := a.now()
	page, pageSize = a.clampPaging(page, pageSize)

	candidates, err := a.content.CandidatesByOwner(ctx, ownerID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch owner candidates: %w", err)
	}

	gate, err := a.ownerAudienceGate(ctx, viewerID, ownerID)
	if err != nil {
		return nil, err
	}

	items := make([]ScoredItem, 0, len(candidates))
	for i := range candidates {
		item := &candidates[i]
		if err := item.Validate(); err != nil {
			a.excludeItem(item.ID, "invalid", err)
			continue
		}
		if !item.Approved || item.Hidden || !gate(item.Visibility) {
			continue
		}
		items = append(items, ScoredItem{Item: *item})
	}

	metrics.AssembleDuration.WithLabelValues("profile").Observe(a.now().Sub(start).Seconds())

	return &FeedPage{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasMore:  len(candidates) == pageSize,
	}, nil
}

// AssembleDegraded produces a best-effort recency-ordered page when neither
// a fresh cache entry nor a synchronous ranked computation is available.
// Only approved public items are included: with relationship data possibly
// unreachable, the gate fails closed to the public tier.
func (a *Assembler) AssembleDegraded(ctx context.Context, viewerID string, page, pageSize int) (*FeedPage, error) {
	page, pageSize = a.clampPaging(page, pageSize)

	candidates, err := a.content.CandidatesByRecency(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	items := make([]ScoredItem, 0, len(candidates))
	for i := range candidates {
		item := &candidates[i]
		if err := item.Validate(); err != nil {
			a.excludeItem(item.ID, "invalid", err)
			continue
		}
		if !item.Approved || item.Hidden || item.Visibility != VisibilityPublic {
			continue
		}
		items = append(items, ScoredItem{Item: *item})
	}

	return &FeedPage{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasMore:  len(candidates) == pageSize,
	}, nil
}

// Precompute ranks a larger candidate window for the cache, so several
// subsequent page requests are served from one computation.
func (a *Assembler) Precompute(ctx context.Context, viewerID string) (*CachedFeed, error) {
	start := a.now()
	pageSize := a.config.Limits.DefaultPageSize
	window := pageSize * a.config.Limits.PrecomputePages

	candidates, err := a.content.CandidatesByRecency(ctx, 1, window)
	if err != nil {
		return nil, fmt.Errorf("fetch precompute window: %w", err)
	}

	visible := a.filterCandidates(ctx, candidates, viewerID)
	scored, err := a.scoreCandidates(ctx, visible, viewerID)
	if err != nil {
		return nil, err
	}
	sortScored(scored)

	metrics.AssembleDuration.WithLabelValues("precompute").Observe(a.now().Sub(start).Seconds())

	return &CachedFeed{
		ViewerID:   viewerID,
		Items:      scored,
		PageSize:   pageSize,
		ComputedAt: a.now(),
	}, nil
}

// clampPaging applies defaults and bounds to caller-supplied paging.
func (a *Assembler) clampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = a.config.Limits.DefaultPageSize
	}
	if pageSize > a.config.Limits.MaxPageSize {
		pageSize = a.config.Limits.MaxPageSize
	}
	return page, pageSize
}

// filterCandidates validates ingested records and applies the visibility
// filter. Items whose visibility data is unavailable are excluded and
// counted, not defaulted.
func (a *Assembler) filterCandidates(ctx context.Context, candidates []ContentItem, viewerID string) []ContentItem {
	visible := make([]ContentItem, 0, len(candidates))
	for i := range candidates {
		item := &candidates[i]
		if err := item.Validate(); err != nil {
			a.excludeItem(item.ID, "invalid", err)
			continue
		}

		ok, err := a.filter.Visible(ctx, item, viewerID)
		if err != nil {
			a.excludeItem(item.ID, "visibility_data", err)
			continue
		}
		if ok {
			visible = append(visible, *item)
		}
	}
	return visible
}

// scoredResult holds one slot of the scoring fan-out.
type scoredResult struct {
	item ScoredItem
	err  error
}

// scoreCandidates scores every visible candidate with bounded concurrency.
// The fan-out joins completely before results are collected; partial
// orderings are never visible to callers. Items whose scoring inputs are
// unavailable are excluded and counted.
func (a *Assembler) scoreCandidates(ctx context.Context, candidates []ContentItem, viewerID string) ([]ScoredItem, error) {
	if len(candidates) == 0 {
		return []ScoredItem{}, nil
	}

	ownerCounts, err := a.scorer.OwnerInteractionCounts(ctx, viewerID)
	if err != nil {
		// History is a shared input for the whole pass. Without it every
		// relevance score would be falsely neutral, so the pass fails and
		// callers fall back to the explicit degraded path.
		return nil, fmt.Errorf("score pass for viewer %s: %w", viewerID, err)
	}

	results := make([]scoredResult, len(candidates))
	sem := make(chan struct{}, a.config.Limits.ScoreConcurrency)
	var wg sync.WaitGroup

	for i := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			item, err := a.scorer.ScoreWithHistory(ctx, &candidates[idx], viewerID, ownerCounts)
			results[idx] = scoredResult{item: item, err: err}
		}(i)
	}
	wg.Wait()

	scored := make([]ScoredItem, 0, len(results))
	for i, res := range results {
		if res.err != nil {
			a.excludeItem(candidates[i].ID, "scoring_input", res.err)
			continue
		}
		scored = append(scored, res.item)
	}
	return scored, nil
}

// ownerAudienceGate resolves the viewer's standing with one owner and
// returns a per-class gate for that owner's items.
func (a *Assembler) ownerAudienceGate(ctx context.Context, viewerID, ownerID string) (func(Visibility) bool, error) {
	follows, err := a.filter.rel.IsFollowing(ctx, viewerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: follow check for owner %s: %w", ErrVisibilityData, ownerID, err)
	}
	subscribed, err := a.filter.rel.IsSubscribed(ctx, viewerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: subscription check for owner %s: %w", ErrVisibilityData, ownerID, err)
	}

	return func(v Visibility) bool {
		switch v {
		case VisibilityPublic:
			return true
		case VisibilityFollowers:
			return follows
		case VisibilitySubscribers:
			return subscribed
		default:
			return false
		}
	}, nil
}

// excludeItem records one excluded candidate.
func (a *Assembler) excludeItem(itemID, reason string, err error) {
	metrics.ItemsExcluded.WithLabelValues(reason).Inc()
	a.logger.Warn().Str("item_id", itemID).Str("reason", reason).Err(err).Msg("excluded candidate from page")
}

// sortScored orders items descending by score, ties broken by newer
// creation time, then by item ID ascending. Deterministic for identical
// input snapshots.
func sortScored(items []ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if !items[i].Item.CreatedAt.Equal(items[j].Item.CreatedAt) {
			return items[i].Item.CreatedAt.After(items[j].Item.CreatedAt)
		}
		return items[i].Item.ID < items[j].Item.ID
	})
}
