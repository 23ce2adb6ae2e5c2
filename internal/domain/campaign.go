package domain

import (
	"encoding/json"
	"time"
)

// Campaign status constants.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusExpired   = "expired"
	CampaignStatusArchived  = "archived"
)

// Selection mode constants.
const (
	SelectionModeAllItems          = "all_items"
	SelectionModeExplicitList      = "explicit_list"
	SelectionModeRandomN           = "random_n"
	SelectionModeConditionFiltered = "condition_filtered"
)

// Priority bounds. Priority is used only for conflict resolution between
// campaigns covering the same item, never for ordering within a campaign.
const (
	PriorityMin = 1
	PriorityMax = 5
)

// Campaign represents a time-bounded discount campaign over catalog items.
type Campaign struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`

	SelectionMode   string      `json:"selection_mode"`
	ExplicitItemIDs []string    `json:"explicit_item_ids,omitempty"`
	RandomCount     int         `json:"random_count,omitempty"`
	ConditionLogic  string      `json:"condition_logic"`
	Conditions      []Condition `json:"conditions"`

	Window Window `json:"window"`

	// DiscountSpec is opaque to the engine: it is stored and returned but
	// never interpreted here.
	DiscountSpec json.RawMessage `json:"discount_spec,omitempty"`

	// Version is the optimistic-concurrency counter. Every write that can
	// affect eligibility increments it.
	Version uint64 `json:"version"`

	// Compiled is the cached item set derived from the selection fields.
	// It is trusted only while Compiled.SourceVersion == Version.
	Compiled *CompiledSelection `json:"compiled,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Window is the temporal activity window of a campaign.
type Window struct {
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	Recurrence *RecurrenceRule `json:"recurrence,omitempty"`
}

// Recurrence frequency constants.
const (
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
)

// RecurrenceRule restricts an otherwise-open window to recurring slots:
// a daily time-of-day range, optionally limited to certain weekdays.
type RecurrenceRule struct {
	Frequency string         `json:"frequency"`
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	StartTime string         `json:"start_time,omitempty"` // "15:04"
	EndTime   string         `json:"end_time,omitempty"`   // "15:04"
}

// Contains reports whether the window covers the given instant.
func (w Window) Contains(now time.Time) bool {
	if now.Before(w.StartDate) {
		return false
	}
	if w.EndDate != nil && now.After(*w.EndDate) {
		return false
	}
	if w.Recurrence != nil {
		return w.Recurrence.contains(now)
	}
	return true
}

func (r *RecurrenceRule) contains(now time.Time) bool {
	if r.Frequency == RecurrenceWeekly && len(r.Weekdays) > 0 {
		match := false
		for _, d := range r.Weekdays {
			if now.Weekday() == d {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if r.StartTime == "" || r.EndTime == "" {
		return true
	}
	start, err := time.Parse("15:04", r.StartTime)
	if err != nil {
		return false
	}
	end, err := time.Parse("15:04", r.EndTime)
	if err != nil {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes <= endMin
	}
	// Overnight range, e.g. 22:00-02:00.
	return minutes >= startMin || minutes <= endMin
}

// CompiledSelection is the compiled, cached item-id set a campaign covers.
type CompiledSelection struct {
	ItemIDs       []string  `json:"item_ids"`
	CompiledAt    time.Time `json:"compiled_at"`
	SourceVersion uint64    `json:"source_version"`
	Method        string    `json:"method"`

	// Stale marks a set that is retained after a failed or outdated
	// recompilation. A stale set must never be trusted for eligibility;
	// it exists so a transient catalog failure does not erase the last
	// known-good selection.
	Stale bool `json:"stale,omitempty"`

	// DroppedItemCount counts explicit-list ids that no longer resolved in
	// the catalog at compile time. Informational, not an error.
	DroppedItemCount int `json:"dropped_item_count,omitempty"`
}

// FreshFor reports whether the compiled set may be trusted for eligibility
// reads against the given campaign version. A mismatch means "stale, must
// recompile", never "fall back to all items".
func (cs *CompiledSelection) FreshFor(version uint64) bool {
	return cs != nil && !cs.Stale && cs.SourceVersion == version
}

// Contains reports whether the compiled set covers the given item.
func (cs *CompiledSelection) Contains(itemID string) bool {
	if cs == nil {
		return false
	}
	for _, id := range cs.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// ValidStatuses returns the set of valid campaign statuses.
func ValidStatuses() []string {
	return []string{
		CampaignStatusDraft,
		CampaignStatusScheduled,
		CampaignStatusActive,
		CampaignStatusPaused,
		CampaignStatusExpired,
		CampaignStatusArchived,
	}
}

// IsValidStatus checks whether the given status string is a valid campaign status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidSelectionModes returns the set of valid selection modes.
func ValidSelectionModes() []string {
	return []string{
		SelectionModeAllItems,
		SelectionModeExplicitList,
		SelectionModeRandomN,
		SelectionModeConditionFiltered,
	}
}

// IsValidSelectionMode checks whether the given mode string is a valid selection mode.
func IsValidSelectionMode(mode string) bool {
	for _, m := range ValidSelectionModes() {
		if m == mode {
			return true
		}
	}
	return false
}

// IsValidPriority checks whether the given priority is within bounds.
func IsValidPriority(p int) bool {
	return p >= PriorityMin && p <= PriorityMax
}
