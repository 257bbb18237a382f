// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Scorer computes composite rank scores. For fixed inputs (counters,
// timestamps, relationship edges, interaction history) the score is a pure
// function; the clock is injectable so tests can pin the recency signal.
// It is safe for concurrent use.
type Scorer struct {
	config *Config
	rel    RelationshipStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewScorer creates a scorer. The config must already be validated.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewScorer(cfg *Config, rel RelationshipStore, logger zerolog.Logger) (*Scorer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Scorer{
		config: cfg,
		rel:    rel,
		logger: logger.With().Str("component", "scorer").Logger(),
		now:    time.Now,
	}, nil
}

// SetClock overrides the scorer's clock. Intended for tests.
func (s *Scorer) SetClock(now func() time.Time) {
	s.now = now
}

// Score computes the composite score for one item, fetching the viewer's
// interaction history itself. The assembler prefers ScoreWithHistory to
// fetch the history once per pass.
func (s *Scorer) Score(ctx context.Context, item *ContentItem, viewerID string) (ScoredItem, error) {
	counts, err := s.OwnerInteractionCounts(ctx, viewerID)
	if err != nil {
		return ScoredItem{}, err
	}
	return s.ScoreWithHistory(ctx, item, viewerID, counts)
}

// ScoreWithHistory computes the composite score for one item given the
// viewer's per-owner interaction counts. Any relationship lookup failure
// returns ErrScoringInput wrapped with the cause rather than a falsely
// neutral score.
func (s *Scorer) ScoreWithHistory(ctx context.Context, item *ContentItem, viewerID string, ownerCounts map[string]int) (ScoredItem, error) {
	relevance, err := s.relevanceScore(ctx, item.OwnerID, viewerID, ownerCounts[item.OwnerID])
	if err != nil {
		return ScoredItem{}, err
	}

	sig := Signals{
		Engagement: s.engagementScore(item),
		Recency:    s.recencyScore(item.CreatedAt),
		Relevance:  relevance,
	}

	w := s.config.Weights
	return ScoredItem{
		Item:    *item,
		Score:   w.Engagement*sig.Engagement + w.Recency*sig.Recency + w.Relevance*sig.Relevance,
		Signals: sig,
	}, nil
}

// OwnerInteractionCounts fetches the viewer's recent interactions and
// aggregates them per owner for the relevance signal.
func (s *Scorer) OwnerInteractionCounts(ctx context.Context, viewerID string) (map[string]int, error) {
	interactions, err := s.rel.RecentInteractions(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("%w: interaction history for viewer %s: %w", ErrScoringInput, viewerID, err)
	}

	counts := make(map[string]int, len(interactions))
	for i := range interactions {
		rec := &interactions[i]
		if err := rec.Validate(); err != nil {
			s.logger.Warn().Err(err).Msg("dropping malformed interaction record")
			continue
		}
		counts[rec.OwnerID]++
	}
	return counts, nil
}

// engagementScore is a weighted counter average bounded to roughly [0, 2].
// Comments and reposts weigh above raw likes: they are costlier actions and
// better relevance signals.
func (s *Scorer) engagementScore(item *ContentItem) float64 {
	total := item.Likes + item.Comments + item.Reposts
	weighted := float64(item.Likes) + 1.5*float64(item.Comments) + 2.0*float64(item.Reposts)
	return weighted / math.Max(1, float64(total))
}

// recencyScore decays exponentially with age: exp(-lambda * ageHours),
// 1 at the creation instant, approaching 0 as content ages. Smooth and
// monotonic rather than bucketed.
func (s *Scorer) recencyScore(createdAt time.Time) float64 {
	ageHours := s.now().Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-s.config.DecayPerHour * ageHours)
}

// relevanceScore rewards viewer affinity to the owner plus capped
// repeat-interaction history, clamped to [0, 1].
func (s *Scorer) relevanceScore(ctx context.Context, ownerID, viewerID string, interactionCount int) (float64, error) {
	v := 0.0

	follows, err := s.rel.IsFollowing(ctx, viewerID, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: follow check for owner %s: %w", ErrScoringInput, ownerID, err)
	}
	if follows {
		v += s.config.Relevance.FollowBoost
	}

	subscribed, err := s.rel.IsSubscribed(ctx, viewerID, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: subscription check for owner %s: %w", ErrScoringInput, ownerID, err)
	}
	if subscribed {
		v += s.config.Relevance.SubscribeBoost
	}

	v += math.Min(s.config.Relevance.InteractionCap,
		s.config.Relevance.InteractionBoost*float64(interactionCount))

	return clamp01(v), nil
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
