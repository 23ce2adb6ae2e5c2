// Package cache defines the eligibility cache: the persisted compiled
// selection per campaign plus the active-campaign index used by
// discount resolution.
package cache

import (
	"context"

	"github.com/smartcycle/discounts/internal/domain"
)

// ActiveEntry is one member of the active-campaign index.
type ActiveEntry struct {
	CampaignID string
	Priority   int
}

// Store persists compiled selections. Writers always store a complete
// record; readers never observe a partially updated set.
//
// Get returns pkg/errors.ErrNotFound when no entry exists for the
// campaign.
type Store interface {
	Get(ctx context.Context, campaignID string) (*domain.CompiledSelection, error)
	Put(ctx context.Context, campaignID string, compiled *domain.CompiledSelection) error
	Delete(ctx context.Context, campaignID string) error

	// MarkStale flags the campaign's entry so reads stop trusting it
	// until the next recompilation. Unknown campaigns are a no-op.
	MarkStale(ctx context.Context, campaignID string) error

	// MarkStaleByItem flags every entry whose compiled set contains
	// the item, returning the affected campaign ids.
	MarkStaleByItem(ctx context.Context, itemID string) ([]string, error)

	// AddActive and RemoveActive maintain the active-campaign index,
	// ordered by priority.
	AddActive(ctx context.Context, campaignID string, priority int) error
	RemoveActive(ctx context.Context, campaignID string) error

	// ActiveCampaigns lists the index in descending priority order.
	ActiveCampaigns(ctx context.Context) ([]ActiveEntry, error)
}
