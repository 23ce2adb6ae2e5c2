package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcycle/discounts/internal/cache"
	"github.com/smartcycle/discounts/internal/domain"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

func compiled(version uint64, itemIDs ...string) *domain.CompiledSelection {
	return &domain.CompiledSelection{
		ItemIDs:       itemIDs,
		CompiledAt:    time.Now().UTC(),
		SourceVersion: version,
		Method:        domain.SelectionModeExplicitList,
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Get(ctx, "cmp-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, s.Put(ctx, "cmp-1", compiled(2, "a", "b")))

	got, err := s.Get(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.ItemIDs)
	assert.Equal(t, uint64(2), got.SourceVersion)

	require.NoError(t, s.Delete(ctx, "cmp-1"))
	_, err = s.Get(ctx, "cmp-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "cmp-1", compiled(1, "a", "b")))

	got, err := s.Get(ctx, "cmp-1")
	require.NoError(t, err)
	got.ItemIDs[0] = "mutated"
	got.Stale = true

	again, err := s.Get(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, again.ItemIDs)
	assert.False(t, again.Stale)
}

func TestStore_MarkStale(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Unknown campaigns are a no-op.
	require.NoError(t, s.MarkStale(ctx, "missing"))

	require.NoError(t, s.Put(ctx, "cmp-1", compiled(1, "a")))
	require.NoError(t, s.MarkStale(ctx, "cmp-1"))

	got, err := s.Get(ctx, "cmp-1")
	require.NoError(t, err)
	assert.True(t, got.Stale)
	assert.False(t, got.FreshFor(1))
}

func TestStore_MarkStaleByItem(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "cmp-1", compiled(1, "a", "b")))
	require.NoError(t, s.Put(ctx, "cmp-2", compiled(1, "b", "c")))
	require.NoError(t, s.Put(ctx, "cmp-3", compiled(1, "d")))

	affected, err := s.MarkStaleByItem(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"cmp-1", "cmp-2"}, affected)

	untouched, err := s.Get(ctx, "cmp-3")
	require.NoError(t, err)
	assert.False(t, untouched.Stale)

	// Already-stale entries are not reported again.
	affected, err = s.MarkStaleByItem(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, affected)
}

func TestStore_ActiveIndexOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.AddActive(ctx, "cmp-low", 1))
	require.NoError(t, s.AddActive(ctx, "cmp-high", 5))
	require.NoError(t, s.AddActive(ctx, "cmp-b", 3))
	require.NoError(t, s.AddActive(ctx, "cmp-a", 3))

	got, err := s.ActiveCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []cache.ActiveEntry{
		{CampaignID: "cmp-high", Priority: 5},
		{CampaignID: "cmp-a", Priority: 3},
		{CampaignID: "cmp-b", Priority: 3},
		{CampaignID: "cmp-low", Priority: 1},
	}, got)

	require.NoError(t, s.RemoveActive(ctx, "cmp-high"))
	got, err = s.ActiveCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cmp-a", got[0].CampaignID)
}
