package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// allowedPairs mirrors the canonical transition table. Every (from, to) pair
// not listed here must be rejected.
var allowedPairs = map[string][]string{
	CampaignStatusDraft:     {CampaignStatusActive, CampaignStatusScheduled, CampaignStatusArchived},
	CampaignStatusActive:    {CampaignStatusPaused, CampaignStatusExpired, CampaignStatusArchived},
	CampaignStatusPaused:    {CampaignStatusActive, CampaignStatusScheduled, CampaignStatusDraft, CampaignStatusExpired, CampaignStatusArchived},
	CampaignStatusScheduled: {CampaignStatusActive, CampaignStatusPaused, CampaignStatusDraft, CampaignStatusArchived},
	CampaignStatusExpired:   {CampaignStatusDraft, CampaignStatusArchived},
	CampaignStatusArchived:  {CampaignStatusDraft},
}

func TestCanTransition_FullMatrix(t *testing.T) {
	for _, from := range ValidStatuses() {
		for _, to := range ValidStatuses() {
			want := false
			for _, allowed := range allowedPairs[from] {
				if allowed == to {
					want = true
					break
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_SelfLoopsRejected(t *testing.T) {
	for _, s := range ValidStatuses() {
		assert.False(t, CanTransition(s, s), "%s -> %s must be rejected", s, s)
	}
}

func TestCanTransition_ActiveToScheduledNotAdjacent(t *testing.T) {
	// The compound move requires active -> paused -> scheduled; the direct
	// hop must be rejected.
	assert.False(t, CanTransition(CampaignStatusActive, CampaignStatusScheduled))
	assert.True(t, CanTransition(CampaignStatusActive, CampaignStatusPaused))
	assert.True(t, CanTransition(CampaignStatusPaused, CampaignStatusScheduled))
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("unknown", CampaignStatusActive))
	assert.False(t, CanTransition(CampaignStatusDraft, "unknown"))
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	first := AllowedTransitions(CampaignStatusDraft)
	first[0] = "mutated"

	assert.NotContains(t, AllowedTransitions(CampaignStatusDraft), "mutated")
}

func TestRequiresActivationGate(t *testing.T) {
	assert.True(t, RequiresActivationGate(CampaignStatusActive))
	assert.True(t, RequiresActivationGate(CampaignStatusScheduled))
	assert.False(t, RequiresActivationGate(CampaignStatusPaused))
	assert.False(t, RequiresActivationGate(CampaignStatusArchived))
}
