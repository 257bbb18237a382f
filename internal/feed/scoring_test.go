// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockRelStore is a canned relationship store. Edge keys are
// "viewer|owner".
type mockRelStore struct {
	follows      map[string]bool
	subs         map[string]bool
	interactions map[string][]Interaction

	followErr  error
	subErr     error
	historyErr error
}

func edgeKey(viewerID, ownerID string) string {
	return viewerID + "|" + ownerID
}

func (m *mockRelStore) IsFollowing(ctx context.Context, viewerID, ownerID string) (bool, error) {
	if m.followErr != nil {
		return false, m.followErr
	}
	return m.follows[edgeKey(viewerID, ownerID)], nil
}

func (m *mockRelStore) IsSubscribed(ctx context.Context, viewerID, ownerID string) (bool, error) {
	if m.subErr != nil {
		return false, m.subErr
	}
	return m.subs[edgeKey(viewerID, ownerID)], nil
}

func (m *mockRelStore) RecentInteractions(ctx context.Context, viewerID string) ([]Interaction, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.interactions[viewerID], nil
}

func newTestScorer(t *testing.T, rel RelationshipStore, at time.Time) *Scorer {
	t.Helper()
	scorer, err := NewScorer(nil, rel, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScorer() error = %v", err)
	}
	scorer.SetClock(func() time.Time { return at })
	return scorer
}

func TestEngagementScore(t *testing.T) {
	t.Parallel()

	scorer := newTestScorer(t, &mockRelStore{}, time.Now())

	tests := []struct {
		name                     string
		likes, comments, reposts int
		want                     float64
	}{
		{"no engagement", 0, 0, 0, 0},
		{"likes only", 10, 0, 0, 1.0},
		{"mixed counters", 10, 4, 2, 20.0 / 16.0},
		{"reposts only hits upper bound", 0, 0, 7, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			item := &ContentItem{Likes: tt.likes, Comments: tt.comments, Reposts: tt.reposts}
			if got := scorer.engagementScore(item); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("engagementScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecencyScoreDecaysMonotonically(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	scorer := newTestScorer(t, &mockRelStore{}, now)

	if got := scorer.recencyScore(now); got != 1.0 {
		t.Errorf("recencyScore(now) = %v, want 1.0", got)
	}

	// Clock skew: content timestamped ahead of the scorer clock scores as
	// brand new, never above 1.
	if got := scorer.recencyScore(now.Add(time.Hour)); got != 1.0 {
		t.Errorf("recencyScore(future) = %v, want 1.0", got)
	}

	prev := 1.0
	for _, age := range []time.Duration{time.Hour, 2 * time.Hour, 24 * time.Hour, 30 * 24 * time.Hour} {
		got := scorer.recencyScore(now.Add(-age))
		if got >= prev {
			t.Errorf("recencyScore(age=%v) = %v, want < %v", age, got, prev)
		}
		if got <= 0 {
			t.Errorf("recencyScore(age=%v) = %v, want > 0", age, got)
		}
		prev = got
	}
}

func TestScoreCompositeExample(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name                     string
		likes, comments, reposts int
		interactions             int
		wantEngagement           float64
		wantRelevance            float64
	}{
		{
			// E = (10 + 1.5*4 + 2*2) / 16 = 1.25
			// V = 0.3 (follow) + 0.1 (one interaction) = 0.4
			name:  "follow with one interaction",
			likes: 10, comments: 4, reposts: 2,
			interactions:   1,
			wantEngagement: 1.25,
			wantRelevance:  0.4,
		},
		{
			// E = (10 + 1.5*2 + 2*1) / 13 = 15/13
			// V = 0.3 (follow) + min(0.2, 3*0.1) = 0.5; the cap bites.
			// Composite lands at roughly 0.858.
			name:  "follow with capped history",
			likes: 10, comments: 2, reposts: 1,
			interactions:   3,
			wantEngagement: 15.0 / 13.0,
			wantRelevance:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			history := make([]Interaction, 0, tt.interactions)
			for i := 0; i < tt.interactions; i++ {
				history = append(history, Interaction{ViewerID: "viewer-1", OwnerID: "owner-1", ItemID: "earlier"})
			}
			rel := &mockRelStore{
				follows:      map[string]bool{edgeKey("viewer-1", "owner-1"): true},
				interactions: map[string][]Interaction{"viewer-1": history},
			}
			scorer := newTestScorer(t, rel, now)

			item := &ContentItem{
				ID:         "item-1",
				OwnerID:    "owner-1",
				Visibility: VisibilityPublic,
				Approved:   true,
				CreatedAt:  now.Add(-2 * time.Hour),
				Likes:      tt.likes,
				Comments:   tt.comments,
				Reposts:    tt.reposts,
			}

			got, err := scorer.Score(context.Background(), item, "viewer-1")
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}

			wantRecency := math.Exp(-0.2)
			want := 0.4*tt.wantEngagement + 0.3*wantRecency + 0.3*tt.wantRelevance

			if math.Abs(got.Score-want) > 1e-9 {
				t.Errorf("Score = %v, want %v", got.Score, want)
			}
			if math.Abs(got.Signals.Engagement-tt.wantEngagement) > 1e-9 {
				t.Errorf("Signals.Engagement = %v, want %v", got.Signals.Engagement, tt.wantEngagement)
			}
			if math.Abs(got.Signals.Recency-wantRecency) > 1e-9 {
				t.Errorf("Signals.Recency = %v, want %v", got.Signals.Recency, wantRecency)
			}
			if math.Abs(got.Signals.Relevance-tt.wantRelevance) > 1e-9 {
				t.Errorf("Signals.Relevance = %v, want %v", got.Signals.Relevance, tt.wantRelevance)
			}
		})
	}
}

func TestRelevanceScoreClampsAndCaps(t *testing.T) {
	t.Parallel()

	rel := &mockRelStore{
		follows: map[string]bool{edgeKey("viewer-1", "owner-1"): true},
		subs:    map[string]bool{edgeKey("viewer-1", "owner-1"): true},
	}
	scorer := newTestScorer(t, rel, time.Now())

	// Follow + subscribe + heavy history: 0.3 + 0.5 + cap(0.2) = 1.0 exactly.
	got, err := scorer.relevanceScore(context.Background(), "owner-1", "viewer-1", 50)
	if err != nil {
		t.Fatalf("relevanceScore() error = %v", err)
	}
	if got != 1.0 {
		t.Errorf("relevanceScore() = %v, want 1.0", got)
	}

	// No edges, no history.
	got, err = scorer.relevanceScore(context.Background(), "owner-2", "viewer-1", 0)
	if err != nil {
		t.Fatalf("relevanceScore() error = %v", err)
	}
	if got != 0.0 {
		t.Errorf("relevanceScore() = %v, want 0.0", got)
	}
}

func TestScoreSurfacesInputFailures(t *testing.T) {
	t.Parallel()

	item := &ContentItem{ID: "item-1", OwnerID: "owner-1", Visibility: VisibilityPublic, Approved: true, CreatedAt: time.Now()}

	t.Run("history unavailable", func(t *testing.T) {
		t.Parallel()
		scorer := newTestScorer(t, &mockRelStore{historyErr: errors.New("graph down")}, time.Now())
		_, err := scorer.Score(context.Background(), item, "viewer-1")
		if !errors.Is(err, ErrScoringInput) {
			t.Errorf("Score() error = %v, want ErrScoringInput", err)
		}
	})

	t.Run("follow check unavailable", func(t *testing.T) {
		t.Parallel()
		scorer := newTestScorer(t, &mockRelStore{followErr: errors.New("graph down")}, time.Now())
		_, err := scorer.ScoreWithHistory(context.Background(), item, "viewer-1", map[string]int{})
		if !errors.Is(err, ErrScoringInput) {
			t.Errorf("ScoreWithHistory() error = %v, want ErrScoringInput", err)
		}
	})
}

func TestOwnerInteractionCountsDropsMalformedRecords(t *testing.T) {
	t.Parallel()

	rel := &mockRelStore{
		interactions: map[string][]Interaction{
			"viewer-1": {
				{ViewerID: "viewer-1", OwnerID: "owner-1"},
				{ViewerID: "viewer-1", OwnerID: "owner-1"},
				{ViewerID: "viewer-1", OwnerID: ""}, // malformed, dropped
				{ViewerID: "viewer-1", OwnerID: "owner-2"},
			},
		},
	}
	scorer := newTestScorer(t, rel, time.Now())

	counts, err := scorer.OwnerInteractionCounts(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("OwnerInteractionCounts() error = %v", err)
	}
	if counts["owner-1"] != 2 {
		t.Errorf("counts[owner-1] = %d, want 2", counts["owner-1"])
	}
	if counts["owner-2"] != 1 {
		t.Errorf("counts[owner-2] = %d, want 1", counts["owner-2"])
	}
	if len(counts) != 2 {
		t.Errorf("len(counts) = %d, want 2", len(counts))
	}
}
