// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/feedrank/internal/feed"
)

// seedStores is an in-memory implementation of the content, relationship,
// and activity collaborators, pre-populated with sample data. It backs the
// standalone binary; embedding applications supply their own stores.
type seedStores struct {
	items        []feed.ContentItem
	follows      map[string]bool
	subs         map[string]bool
	interactions map[string][]feed.Interaction
}

func edgeKey(viewerID, ownerID string) string {
	return viewerID + "|" + ownerID
}

// newSeedStores builds sample creators, viewers, and content spread across
// visibility tiers and ages, anchored at now.
func newSeedStores(now time.Time) *seedStores {
	s := &seedStores{
		follows:      make(map[string]bool),
		subs:         make(map[string]bool),
		interactions: make(map[string][]feed.Interaction),
	}

	owners := []string{"creator-ada", "creator-bram", "creator-chen"}
	tiers := []feed.Visibility{feed.VisibilityPublic, feed.VisibilityFollowers, feed.VisibilitySubscribers}

	for oi, owner := range owners {
		for n := 0; n < 12; n++ {
			s.items = append(s.items, feed.ContentItem{
				ID:         fmt.Sprintf("%s-post-%02d", owner, n),
				OwnerID:    owner,
				Visibility: tiers[n%len(tiers)],
				Approved:   true,
				CreatedAt:  now.Add(-time.Duration(oi*3+n) * time.Hour),
				Likes:      (n * 7) % 40,
				Comments:   (n * 3) % 15,
				Reposts:    n % 5,
			})
		}
	}
	sort.Slice(s.items, func(i, j int) bool {
		return s.items[i].CreatedAt.After(s.items[j].CreatedAt)
	})

	// viewer-1 follows ada, subscribes to bram, and has interaction history
	// with both. viewer-2 follows chen only. viewer-3 is a stranger.
	s.follows[edgeKey("viewer-1", "creator-ada")] = true
	s.subs[edgeKey("viewer-1", "creator-bram")] = true
	s.follows[edgeKey("viewer-2", "creator-chen")] = true

	for n := 0; n < 4; n++ {
		s.interactions["viewer-1"] = append(s.interactions["viewer-1"], feed.Interaction{
			ViewerID:   "viewer-1",
			OwnerID:    owners[n%2],
			ItemID:     fmt.Sprintf("%s-post-%02d", owners[n%2], n),
			OccurredAt: now.Add(-time.Duration(n) * time.Hour),
		})
	}
	s.interactions["viewer-2"] = []feed.Interaction{{
		ViewerID:   "viewer-2",
		OwnerID:    "creator-chen",
		ItemID:     "creator-chen-post-00",
		OccurredAt: now.Add(-30 * time.Minute),
	}}

	return s
}

func (s *seedStores) CandidatesByRecency(_ context.Context, page, pageSize int) ([]feed.ContentItem, error) {
	return pageSlice(s.items, page, pageSize), nil
}

func (s *seedStores) CandidatesByOwner(_ context.Context, ownerID string, page, pageSize int) ([]feed.ContentItem, error) {
	var owned []feed.ContentItem
	for _, item := range s.items {
		if item.OwnerID == ownerID {
			owned = append(owned, item)
		}
	}
	return pageSlice(owned, page, pageSize), nil
}

func (s *seedStores) IsFollowing(_ context.Context, viewerID, ownerID string) (bool, error) {
	return s.follows[edgeKey(viewerID, ownerID)], nil
}

func (s *seedStores) IsSubscribed(_ context.Context, viewerID, ownerID string) (bool, error) {
	return s.subs[edgeKey(viewerID, ownerID)], nil
}

func (s *seedStores) RecentInteractions(_ context.Context, viewerID string) ([]feed.Interaction, error) {
	history := s.interactions[viewerID]
	out := make([]feed.Interaction, len(history))
	copy(out, history)
	return out, nil
}

func (s *seedStores) RecentlyActiveUsers(_ context.Context, since time.Time, limit int) ([]string, error) {
	var users []string
	for viewer, history := range s.interactions {
		for _, in := range history {
			if !in.OccurredAt.Before(since) {
				users = append(users, viewer)
				break
			}
		}
	}
	sort.Strings(users)
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// pageSlice returns the 1-based page-th window of items.
func pageSlice(items []feed.ContentItem, page, pageSize int) []feed.ContentItem {
	if page < 1 || pageSize < 1 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	out := make([]feed.ContentItem, end-start)
	copy(out, items[start:end])
	return out
}
