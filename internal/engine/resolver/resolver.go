// Package resolver picks the single winning campaign for an item.
package resolver

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/smartcycle/discounts/internal/domain"
)

// Resolution describes the winning campaign for an item, if any.
type Resolution struct {
	CampaignID   string          `json:"campaign_id"`
	Priority     int             `json:"priority"`
	DiscountSpec json.RawMessage `json:"discount_spec,omitempty"`
}

// Resolver selects at most one campaign per item. Discounts never
// stack.
type Resolver struct {
	logger *slog.Logger
}

// New creates a priority resolver.
func New(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve returns the winning campaign among candidates for the given
// item at the given instant, or nil when no campaign covers it.
//
// A candidate survives only when it is active, its window contains
// now, and its compiled set was built from the campaign's current
// version and contains the item. Among survivors the highest priority
// wins; ties break to the lowest campaign id so repeated calls over
// the same data are stable.
func (r *Resolver) Resolve(itemID string, now time.Time, candidates []*domain.Campaign) *Resolution {
	var winner *domain.Campaign

	for _, c := range candidates {
		if !Covers(c, itemID, now) {
			continue
		}
		if winner == nil || beats(c, winner) {
			winner = c
		}
	}

	if winner == nil {
		return nil
	}
	return &Resolution{
		CampaignID:   winner.ID,
		Priority:     winner.Priority,
		DiscountSpec: winner.DiscountSpec,
	}
}

// Covers reports whether the campaign currently applies to the item:
// active status, window containing now, and a compiled set that is
// fresh for the campaign's version and contains the item. A stale or
// version-mismatched compiled set is never trusted.
func Covers(c *domain.Campaign, itemID string, now time.Time) bool {
	if c.Status != domain.CampaignStatusActive {
		return false
	}
	if !c.Window.Contains(now) {
		return false
	}
	if !c.Compiled.FreshFor(c.Version) {
		return false
	}
	return c.Compiled.Contains(itemID)
}

func beats(a, b *domain.Campaign) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ID < b.ID
}
