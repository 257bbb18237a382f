// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

import (
	"context"
	"errors"
	"testing"
	"time"
)

func visItem(visibility Visibility, approved, hidden bool) *ContentItem {
	return &ContentItem{
		ID:         "item-1",
		OwnerID:    "owner-1",
		Visibility: visibility,
		Approved:   approved,
		Hidden:     hidden,
		CreatedAt:  time.Now(),
	}
}

func TestVisibilityFilter(t *testing.T) {
	t.Parallel()

	rel := &mockRelStore{
		follows: map[string]bool{edgeKey("follower", "owner-1"): true},
		subs:    map[string]bool{edgeKey("subscriber", "owner-1"): true},
	}
	filter := NewVisibilityFilter(rel)

	tests := []struct {
		name     string
		item     *ContentItem
		viewerID string
		want     bool
	}{
		{"public visible to stranger", visItem(VisibilityPublic, true, false), "stranger", true},
		{"unapproved public hidden from everyone", visItem(VisibilityPublic, false, false), "stranger", false},
		{"hidden public hidden from everyone", visItem(VisibilityPublic, true, true), "stranger", false},
		{"followers item hidden from stranger", visItem(VisibilityFollowers, true, false), "stranger", false},
		{"followers item visible to follower", visItem(VisibilityFollowers, true, false), "follower", true},
		{"followers item hidden from subscriber without follow", visItem(VisibilityFollowers, true, false), "subscriber", false},
		{"subscribers item hidden from follower", visItem(VisibilitySubscribers, true, false), "follower", false},
		{"subscribers item visible to subscriber", visItem(VisibilitySubscribers, true, false), "subscriber", true},
		{"unknown class fails closed", visItem(Visibility("premium"), true, false), "subscriber", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := filter.Visible(context.Background(), tt.item, tt.viewerID)
			if err != nil {
				t.Fatalf("Visible() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Visible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVisibilityFilterSurfacesLookupFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rel  *mockRelStore
		item *ContentItem
	}{
		{"follow check fails", &mockRelStore{followErr: errors.New("graph down")}, visItem(VisibilityFollowers, true, false)},
		{"subscription check fails", &mockRelStore{subErr: errors.New("graph down")}, visItem(VisibilitySubscribers, true, false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			filter := NewVisibilityFilter(tt.rel)
			got, err := filter.Visible(context.Background(), tt.item, "viewer-1")
			if !errors.Is(err, ErrVisibilityData) {
				t.Errorf("Visible() error = %v, want ErrVisibilityData", err)
			}
			if got {
				t.Error("Visible() = true on lookup failure, want false")
			}
		})
	}
}

func TestVisibilityFilterModerationBeatsLookupFailure(t *testing.T) {
	t.Parallel()

	// Moderation state gates before any graph lookup: a hidden item needs
	// no relationship data to be rejected.
	filter := NewVisibilityFilter(&mockRelStore{followErr: errors.New("graph down")})
	got, err := filter.Visible(context.Background(), visItem(VisibilityFollowers, true, true), "viewer-1")
	if err != nil {
		t.Fatalf("Visible() error = %v", err)
	}
	if got {
		t.Error("Visible() = true for hidden item, want false")
	}
}

func TestVisibleToAudienceRejectsOtherOwners(t *testing.T) {
	t.Parallel()

	filter := NewVisibilityFilter(&mockRelStore{})
	item := visItem(VisibilityPublic, true, false)

	got, err := filter.VisibleToAudience(context.Background(), item, "viewer-1", "someone-else")
	if err != nil {
		t.Fatalf("VisibleToAudience() error = %v", err)
	}
	if got {
		t.Error("VisibleToAudience() = true for mismatched owner, want false")
	}
}
