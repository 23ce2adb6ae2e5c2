package domain

// transitions is the single canonical status transition table. Any ordered
// pair not listed here is rejected. Compound moves (e.g. active to scheduled)
// must be sequenced by the caller through an intermediate hop; the table only
// ever validates single hops.
var transitions = map[string][]string{
	CampaignStatusDraft:     {CampaignStatusActive, CampaignStatusScheduled, CampaignStatusArchived},
	CampaignStatusActive:    {CampaignStatusPaused, CampaignStatusExpired, CampaignStatusArchived},
	CampaignStatusPaused:    {CampaignStatusActive, CampaignStatusScheduled, CampaignStatusDraft, CampaignStatusExpired, CampaignStatusArchived},
	CampaignStatusScheduled: {CampaignStatusActive, CampaignStatusPaused, CampaignStatusDraft, CampaignStatusArchived},
	CampaignStatusExpired:   {CampaignStatusDraft, CampaignStatusArchived},
	CampaignStatusArchived:  {CampaignStatusDraft},
}

// CanTransition reports whether a single hop from one status to another is
// allowed by the transition table.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable in one hop from the
// given status.
func AllowedTransitions(from string) []string {
	allowed := transitions[from]
	out := make([]string, len(allowed))
	copy(out, allowed)
	return out
}

// RequiresActivationGate reports whether entering the given status requires
// the severity validation gate (no critical issues) and a fresh compiled set.
func RequiresActivationGate(to string) bool {
	return to == CampaignStatusActive || to == CampaignStatusScheduled
}
