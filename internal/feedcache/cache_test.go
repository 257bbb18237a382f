// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/feedrank/internal/feed"
)

// failingStore fails every operation, for breaker and unavailability tests.
type failingStore struct {
	err error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, s.err }
func (s *failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.err
}
func (s *failingStore) Exists(ctx context.Context, key string) (bool, error) { return false, s.err }
func (s *failingStore) Close() error                                         { return nil }

func testFeed(viewerID string, items int, computedAt time.Time) *feed.CachedFeed {
	scored := make([]feed.ScoredItem, 0, items)
	for i := 0; i < items; i++ {
		scored = append(scored, feed.ScoredItem{
			Item: feed.ContentItem{
				ID:         "item-" + string(rune('a'+i)),
				OwnerID:    "owner-1",
				Visibility: feed.VisibilityPublic,
				Approved:   true,
				CreatedAt:  computedAt.Add(-time.Duration(i) * time.Minute),
			},
			Score: 1.0 - float64(i)*0.1,
		})
	}
	return &feed.CachedFeed{ViewerID: viewerID, Items: scored, PageSize: 2, ComputedAt: computedAt}
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := New(NewMemoryStore(), DefaultConfig(), zerolog.Nop())
	cache.SetClock(func() time.Time { return now })

	if _, err := cache.Get(context.Background(), "viewer-1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() before Put error = %v, want ErrCacheMiss", err)
	}
	if cache.IsFresh(context.Background(), "viewer-1") {
		t.Error("IsFresh() = true before Put")
	}

	if err := cache.Put(context.Background(), "viewer-1", testFeed("viewer-1", 3, now), 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := cache.Get(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ViewerID != "viewer-1" {
		t.Errorf("ViewerID = %q, want %q", got.ViewerID, "viewer-1")
	}
	if len(got.Items) != 3 {
		t.Errorf("items = %d, want 3", len(got.Items))
	}
	if !cache.IsFresh(context.Background(), "viewer-1") {
		t.Error("IsFresh() = false after Put")
	}

	// Entries are per viewer.
	if _, err := cache.Get(context.Background(), "viewer-2"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() for other viewer error = %v, want ErrCacheMiss", err)
	}
}

func TestCacheExpiresByTTL(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := base
	cache := New(NewMemoryStore(), DefaultConfig(), zerolog.Nop())
	cache.SetClock(func() time.Time { return now })

	if err := cache.Put(context.Background(), "viewer-1", testFeed("viewer-1", 1, base), 10*time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	now = base.Add(9 * time.Minute)
	if _, err := cache.Get(context.Background(), "viewer-1"); err != nil {
		t.Fatalf("Get() within TTL error = %v", err)
	}

	now = base.Add(10 * time.Minute)
	if _, err := cache.Get(context.Background(), "viewer-1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() at TTL boundary error = %v, want ErrCacheMiss", err)
	}
	if cache.IsFresh(context.Background(), "viewer-1") {
		t.Error("IsFresh() = true past TTL")
	}
}

func TestCachePutReplacesEntryWhole(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := New(NewMemoryStore(), DefaultConfig(), zerolog.Nop())
	cache.SetClock(func() time.Time { return now })

	if err := cache.Put(context.Background(), "viewer-1", testFeed("viewer-1", 5, now), 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := cache.Put(context.Background(), "viewer-1", testFeed("viewer-1", 2, now), 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := cache.Get(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Items) != 2 {
		t.Errorf("items after replace = %d, want 2", len(got.Items))
	}
}

func TestCacheUnavailableStore(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.BreakerFailures = 2
	cache := New(&failingStore{err: errors.New("disk gone")}, cfg, zerolog.Nop())

	// Failures before and after the breaker trips surface the same
	// sentinel, so the request path degrades uniformly.
	for i := 0; i < 4; i++ {
		if _, err := cache.Get(context.Background(), "viewer-1"); !errors.Is(err, ErrCacheUnavailable) {
			t.Fatalf("Get() call %d error = %v, want ErrCacheUnavailable", i, err)
		}
	}

	if err := cache.Put(context.Background(), "viewer-1", testFeed("viewer-1", 1, time.Now()), 0); !errors.Is(err, ErrCacheUnavailable) {
		t.Errorf("Put() error = %v, want ErrCacheUnavailable", err)
	}
	if cache.IsFresh(context.Background(), "viewer-1") {
		t.Error("IsFresh() = true while store unavailable")
	}
}

func TestCacheMissesDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.BreakerFailures = 2
	cache := New(NewMemoryStore(), cfg, zerolog.Nop())
	cache.SetClock(func() time.Time { return now })

	// A cold-start sweep over many absent viewers stays a plain miss on a
	// healthy store, no matter how many misses in a row.
	for i := 0; i < 6; i++ {
		viewer := "viewer-" + string(rune('a'+i))
		if _, err := cache.Get(context.Background(), viewer); !errors.Is(err, ErrCacheMiss) {
			t.Fatalf("Get() cold read %d error = %v, want ErrCacheMiss", i, err)
		}
	}

	// The store is healthy, so writes and reads still go through.
	if err := cache.Put(context.Background(), "viewer-a", testFeed("viewer-a", 2, now), 0); err != nil {
		t.Fatalf("Put() after cold reads error = %v", err)
	}
	got, err := cache.Get(context.Background(), "viewer-a")
	if err != nil {
		t.Fatalf("Get() after Put error = %v", err)
	}
	if len(got.Items) != 2 {
		t.Errorf("items = %d, want 2", len(got.Items))
	}
}

func TestCacheCorruptEntryIsAMiss(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	cache := New(store, DefaultConfig(), zerolog.Nop())

	if err := store.Set(context.Background(), keyPrefix+"viewer-1", []byte("{not json"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, err := cache.Get(context.Background(), "viewer-1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() on corrupt entry error = %v, want ErrCacheMiss", err)
	}
}

func TestCachePageServesSlices(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := New(NewMemoryStore(), DefaultConfig(), zerolog.Nop())
	cache.SetClock(func() time.Time { return now })

	if err := cache.Put(context.Background(), "viewer-1", testFeed("viewer-1", 5, now), 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	page, err := cache.Page(context.Background(), "viewer-1", 1, 2)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page.Items) != 2 || !page.HasMore {
		t.Errorf("Page(1,2) = %d items, HasMore %v; want 2 items, HasMore true", len(page.Items), page.HasMore)
	}

	page, err = cache.Page(context.Background(), "viewer-1", 3, 2)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page.Items) != 1 || page.HasMore {
		t.Errorf("Page(3,2) = %d items, HasMore %v; want 1 item, HasMore false", len(page.Items), page.HasMore)
	}

	if _, err := cache.Page(context.Background(), "viewer-2", 1, 2); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Page() for absent viewer error = %v, want ErrCacheMiss", err)
	}
}
