package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidStatuses_ContainsAll(t *testing.T) {
	expected := []string{
		CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusActive,
		CampaignStatusPaused, CampaignStatusExpired, CampaignStatusArchived,
	}
	assert.ElementsMatch(t, expected, ValidStatuses())
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range ValidStatuses() {
		assert.True(t, IsValidStatus(s), "expected %q to be valid", s)
	}
	assert.False(t, IsValidStatus("unknown"))
	assert.False(t, IsValidStatus(""))
	assert.False(t, IsValidStatus("ACTIVE"))
}

func TestIsValidSelectionMode(t *testing.T) {
	for _, m := range ValidSelectionModes() {
		assert.True(t, IsValidSelectionMode(m), "expected %q to be valid", m)
	}
	assert.False(t, IsValidSelectionMode("some_items"))
	assert.False(t, IsValidSelectionMode(""))
}

func TestIsValidPriority(t *testing.T) {
	assert.False(t, IsValidPriority(0))
	assert.True(t, IsValidPriority(1))
	assert.True(t, IsValidPriority(5))
	assert.False(t, IsValidPriority(6))
}

func TestWindow_Contains_OpenEnded(t *testing.T) {
	w := Window{StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}

	assert.False(t, w.Contains(time.Date(2026, 5, 31, 23, 59, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestWindow_Contains_Bounded(t *testing.T) {
	end := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)
	w := Window{
		StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   &end,
	}

	assert.True(t, w.Contains(time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestWindow_Contains_WeeklyRecurrence(t *testing.T) {
	w := Window{
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Recurrence: &RecurrenceRule{
			Frequency: RecurrenceWeekly,
			Weekdays:  []time.Weekday{time.Saturday, time.Sunday},
		},
	}

	saturday := time.Date(2026, 6, 6, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 6, 8, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Saturday, saturday.Weekday())
	assert.Equal(t, time.Monday, monday.Weekday())

	assert.True(t, w.Contains(saturday))
	assert.False(t, w.Contains(monday))
}

func TestWindow_Contains_DailyTimeRange(t *testing.T) {
	w := Window{
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Recurrence: &RecurrenceRule{
			Frequency: RecurrenceDaily,
			StartTime: "09:00",
			EndTime:   "17:00",
		},
	}

	assert.True(t, w.Contains(time.Date(2026, 6, 8, 12, 30, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 6, 8, 17, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 6, 8, 18, 0, 0, 0, time.UTC)))
}

func TestWindow_Contains_OvernightTimeRange(t *testing.T) {
	w := Window{
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Recurrence: &RecurrenceRule{
			Frequency: RecurrenceDaily,
			StartTime: "22:00",
			EndTime:   "02:00",
		},
	}

	assert.True(t, w.Contains(time.Date(2026, 6, 8, 23, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 6, 8, 1, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 6, 8, 12, 0, 0, 0, time.UTC)))
}

func TestCompiledSelection_FreshFor(t *testing.T) {
	cs := &CompiledSelection{SourceVersion: 3}

	assert.True(t, cs.FreshFor(3))
	assert.False(t, cs.FreshFor(4), "version mismatch means stale, must recompile")

	cs.Stale = true
	assert.False(t, cs.FreshFor(3), "stale flag overrides version match")

	var nilCS *CompiledSelection
	assert.False(t, nilCS.FreshFor(0))
}

func TestCompiledSelection_Contains(t *testing.T) {
	cs := &CompiledSelection{ItemIDs: []string{"item-1", "item-2"}}

	assert.True(t, cs.Contains("item-1"))
	assert.False(t, cs.Contains("item-3"))

	var nilCS *CompiledSelection
	assert.False(t, nilCS.Contains("item-1"))
}
