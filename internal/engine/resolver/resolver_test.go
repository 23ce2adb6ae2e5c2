package resolver

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcycle/discounts/internal/domain"
)

func newTestResolver() *Resolver {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func activeCampaign(id string, priority int, version uint64, itemIDs ...string) *domain.Campaign {
	return &domain.Campaign{
		ID:       id,
		Status:   domain.CampaignStatusActive,
		Priority: priority,
		Version:  version,
		Compiled: &domain.CompiledSelection{
			ItemIDs:       itemIDs,
			SourceVersion: version,
			CompiledAt:    time.Now().UTC(),
		},
	}
}

func TestResolve_HighestPriorityWins(t *testing.T) {
	r := newTestResolver()
	now := time.Now().UTC()

	p5 := activeCampaign("cmp-b", 5, 1, "item-x")
	p2 := activeCampaign("cmp-a", 2, 1, "item-x")

	got := r.Resolve("item-x", now, []*domain.Campaign{p2, p5})
	require.NotNil(t, got)
	assert.Equal(t, "cmp-b", got.CampaignID)
	assert.Equal(t, 5, got.Priority)
}

func TestResolve_TieBreaksToLowestID(t *testing.T) {
	r := newTestResolver()
	now := time.Now().UTC()

	first := activeCampaign("cmp-a", 3, 1, "item-x")
	second := activeCampaign("cmp-b", 3, 1, "item-x")

	got := r.Resolve("item-x", now, []*domain.Campaign{second, first})
	require.NotNil(t, got)
	assert.Equal(t, "cmp-a", got.CampaignID)

	// Candidate order must not change the outcome.
	got = r.Resolve("item-x", now, []*domain.Campaign{first, second})
	require.NotNil(t, got)
	assert.Equal(t, "cmp-a", got.CampaignID)
}

func TestResolve_NoCandidateCoversItem(t *testing.T) {
	r := newTestResolver()
	now := time.Now().UTC()

	c := activeCampaign("cmp-a", 3, 1, "item-y")
	assert.Nil(t, r.Resolve("item-x", now, []*domain.Campaign{c}))
	assert.Nil(t, r.Resolve("item-x", now, nil))
}

func TestResolve_SkipsInactiveCampaigns(t *testing.T) {
	r := newTestResolver()
	now := time.Now().UTC()

	paused := activeCampaign("cmp-a", 5, 1, "item-x")
	paused.Status = domain.CampaignStatusPaused
	draft := activeCampaign("cmp-b", 5, 1, "item-x")
	draft.Status = domain.CampaignStatusDraft
	active := activeCampaign("cmp-c", 1, 1, "item-x")

	got := r.Resolve("item-x", now, []*domain.Campaign{paused, draft, active})
	require.NotNil(t, got)
	assert.Equal(t, "cmp-c", got.CampaignID)
}

func TestResolve_SkipsCampaignsOutsideWindow(t *testing.T) {
	r := newTestResolver()
	now := time.Now().UTC()

	ended := now.Add(-time.Hour)
	expired := activeCampaign("cmp-a", 5, 1, "item-x")
	expired.Window.EndDate = &ended

	upcoming := activeCampaign("cmp-b", 5, 1, "item-x")
	upcoming.Window.StartDate = now.Add(time.Hour)

	assert.Nil(t, r.Resolve("item-x", now, []*domain.Campaign{expired, upcoming}))
}

func TestResolve_NeverTrustsStaleCompiledSet(t *testing.T) {
	r := newTestResolver()
	now := time.Now().UTC()

	stale := activeCampaign("cmp-a", 5, 1, "item-x")
	stale.Compiled.Stale = true

	outdated := activeCampaign("cmp-b", 5, 7, "item-x")
	outdated.Compiled.SourceVersion = 6

	uncompiled := activeCampaign("cmp-c", 5, 1, "item-x")
	uncompiled.Compiled = nil

	assert.Nil(t, r.Resolve("item-x", now, []*domain.Campaign{stale, outdated, uncompiled}))
}

func TestCovers(t *testing.T) {
	now := time.Now().UTC()

	c := activeCampaign("cmp-a", 3, 2, "item-x", "item-y")
	assert.True(t, Covers(c, "item-x", now))
	assert.False(t, Covers(c, "item-z", now))

	c.Status = domain.CampaignStatusExpired
	assert.False(t, Covers(c, "item-x", now))
}
