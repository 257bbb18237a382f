// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

import (
	"context"
	"fmt"
)

// VisibilityFilter decides whether a viewer may see a content item.
// It is a pure predicate over the item and the social graph; it never
// mutates state.
type VisibilityFilter struct {
	rel RelationshipStore
}

// NewVisibilityFilter creates a filter backed by the given relationship store.
func NewVisibilityFilter(rel RelationshipStore) *VisibilityFilter {
	return &VisibilityFilter{rel: rel}
}

// Visible reports whether viewerID may see item.
//
// Moderation gates every class: unapproved or hidden items are invisible.
// Unknown visibility classes fail closed. A relationship lookup failure
// returns ErrVisibilityData wrapped with the cause; it is never silently
// mapped to hidden or visible.
func (f *VisibilityFilter) Visible(ctx context.Context, item *ContentItem, viewerID string) (bool, error) {
	if !item.Approved || item.Hidden {
		return false, nil
	}

	switch item.Visibility {
	case VisibilityPublic:
		return true, nil

	case VisibilityFollowers:
		ok, err := f.rel.IsFollowing(ctx, viewerID, item.OwnerID)
		if err != nil {
			return false, fmt.Errorf("%w: follow check for owner %s: %w", ErrVisibilityData, item.OwnerID, err)
		}
		return ok, nil

	case VisibilitySubscribers:
		ok, err := f.rel.IsSubscribed(ctx, viewerID, item.OwnerID)
		if err != nil {
			return false, fmt.Errorf("%w: subscription check for owner %s: %w", ErrVisibilityData, item.OwnerID, err)
		}
		return ok, nil

	default:
		// Fail closed on unrecognized classes.
		return false, nil
	}
}

// VisibleToAudience is the cheaper single-owner gate used by the profile
// feed: the caller already knows the owner, so only the class matching that
// owner's tier is checked.
func (f *VisibilityFilter) VisibleToAudience(ctx context.Context, item *ContentItem, viewerID, ownerID string) (bool, error) {
	if item.OwnerID != ownerID {
		return false, nil
	}
	return f.Visible(ctx, item, viewerID)
}
