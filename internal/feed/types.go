// Feedrank - Feed Ranking and Recommendation Precompute Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feedrank

package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Visibility is the audience tier gating who may see a content item.
type Visibility string

const (
	// VisibilityPublic items are visible to every viewer.
	VisibilityPublic Visibility = "public"
	// VisibilityFollowers items require a follow edge from viewer to owner.
	VisibilityFollowers Visibility = "followers"
	// VisibilitySubscribers items require a subscription edge from viewer to owner.
	VisibilitySubscribers Visibility = "subscribers"
)

// ContentItem is a unit of shareable content as read from the content store.
// Engagement counters are a read-only snapshot for the duration of one
// ranking pass.
type ContentItem struct {
	// ID is the unique content identifier.
	ID string `json:"id" validate:"required"`

	// OwnerID is the creator's identifier.
	OwnerID string `json:"owner_id" validate:"required"`

	// Visibility is the audience tier (public, followers, subscribers).
	Visibility Visibility `json:"visibility" validate:"required"`

	// Approved reports whether moderation has approved the item.
	Approved bool `json:"approved"`

	// Hidden reports whether the item has been hidden by its owner or a moderator.
	Hidden bool `json:"hidden"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at" validate:"required"`

	// Likes is the like count at snapshot time.
	Likes int `json:"likes" validate:"min=0"`

	// Comments is the comment count at snapshot time.
	Comments int `json:"comments" validate:"min=0"`

	// Reposts is the repost count at snapshot time.
	Reposts int `json:"reposts" validate:"min=0"`
}

// Interaction records one engagement action by a viewer, used for the
// relevance signal. The subsystem only reads these; they are produced
// elsewhere.
type Interaction struct {
	// ViewerID is who interacted.
	ViewerID string `json:"viewer_id" validate:"required"`

	// OwnerID is the creator of the content interacted with.
	OwnerID string `json:"owner_id" validate:"required"`

	// ItemID is the content item interacted with.
	ItemID string `json:"item_id"`

	// OccurredAt is when the interaction happened.
	OccurredAt time.Time `json:"occurred_at"`
}

// Signals is the per-signal breakdown of a composite score, retained for
// observability and interpretable ranking diagnostics.
type Signals struct {
	// Engagement is the weighted counter-average signal, bounded to [0, 2].
	Engagement float64 `json:"engagement"`

	// Recency is the exponential decay signal in (0, 1].
	Recency float64 `json:"recency"`

	// Relevance is the viewer-affinity signal, clamped to [0, 1].
	Relevance float64 `json:"relevance"`
}

// ScoredItem pairs a content item with its computed composite score.
// Ephemeral: created per ranking pass, discarded after response or cache
// write.
type ScoredItem struct {
	// Item is the scored content item.
	Item ContentItem `json:"item"`

	// Score is the composite score in [0, +inf).
	Score float64 `json:"score"`

	// Signals is the per-signal breakdown behind Score.
	Signals Signals `json:"signals"`
}

// FeedPage is the unit returned to callers: an ordered, scored page.
type FeedPage struct {
	// Items is the ordered sequence of scored items, highest score first.
	Items []ScoredItem `json:"items"`

	// Page is the 1-based page number.
	Page int `json:"page"`

	// PageSize is the requested page size.
	PageSize int `json:"page_size"`

	// HasMore is true iff the candidate window was exactly full. It is a
	// cheap pagination signal, not derived from a total count.
	HasMore bool `json:"has_more"`
}

// ContentStore is the external content collaborator. Implementations must
// return candidates ordered by creation time descending.
type ContentStore interface {
	// CandidatesByRecency returns the page-th window of approved-or-not
	// candidates across all owners, newest first.
	CandidatesByRecency(ctx context.Context, page, pageSize int) ([]ContentItem, error)

	// CandidatesByOwner returns the page-th window of one owner's items,
	// newest first.
	CandidatesByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]ContentItem, error)
}

// RelationshipStore is the external social-graph collaborator.
type RelationshipStore interface {
	// IsFollowing reports whether viewerID follows ownerID.
	IsFollowing(ctx context.Context, viewerID, ownerID string) (bool, error)

	// IsSubscribed reports whether viewerID is subscribed to ownerID.
	IsSubscribed(ctx context.Context, viewerID, ownerID string) (bool, error)

	// RecentInteractions returns the viewer's recent interaction history.
	RecentInteractions(ctx context.Context, viewerID string) ([]Interaction, error)
}

// ActivityStore enumerates recently active users for the batch trigger.
type ActivityStore interface {
	// RecentlyActiveUsers returns up to limit user IDs with at least one
	// interaction since the given time.
	RecentlyActiveUsers(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// validate is the shared validator instance for boundary checks.
var validate = validator.New()

// Validate checks a content item read from the content store. Items come
// from a loosely-typed source; the boundary check keeps malformed records
// out of the ranking pass.
func (c *ContentItem) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("content item %q: %w", c.ID, err)
	}
	switch c.Visibility {
	case VisibilityPublic, VisibilityFollowers, VisibilitySubscribers:
	default:
		// Unknown classes are not an ingestion error: the filter fails
		// closed on them. Only structural problems reject the record.
	}
	return nil
}

// Validate checks an interaction record read from the relationship store.
func (i *Interaction) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("interaction for viewer %q: %w", i.ViewerID, err)
	}
	return nil
}
