package validation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smartcycle/discounts/internal/domain"
)

func validCampaign() *domain.Campaign {
	end := time.Now().Add(24 * time.Hour)
	return &domain.Campaign{
		ID:            "cmp-1",
		Name:          "Summer Sale",
		Priority:      3,
		SelectionMode: domain.SelectionModeAllItems,
		DiscountSpec:  json.RawMessage(`{"type":"percentage","amount":10}`),
		Window:        domain.Window{EndDate: &end},
	}
}

func codes(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Code)
	}
	return out
}

func TestValidate_CleanCampaign(t *testing.T) {
	v := New(DefaultWeights())

	issues := v.Validate(validCampaign())
	assert.Empty(t, issues)
	assert.False(t, HasCritical(issues))
}

func TestValidate_MissingEssentials(t *testing.T) {
	v := New(DefaultWeights())
	c := validCampaign()
	c.Name = ""
	c.Priority = 0
	c.DiscountSpec = nil

	issues := v.Validate(c)
	assert.True(t, HasCritical(issues))
	assert.Contains(t, codes(issues), CodeMissingName)
	assert.Contains(t, codes(issues), CodeInvalidPriority)
	assert.Contains(t, codes(issues), CodeMissingDiscountSpec)
}

func TestValidate_InvertedWindow(t *testing.T) {
	v := New(DefaultWeights())
	c := validCampaign()
	start := time.Now().Add(48 * time.Hour)
	end := time.Now().Add(24 * time.Hour)
	c.Window = domain.Window{StartDate: start, EndDate: &end}

	issues := v.Validate(c)
	assert.Contains(t, codes(issues), CodeWindowInverted)
	assert.True(t, HasCritical(issues))
}

func TestValidate_PastEndDateIsWarning(t *testing.T) {
	v := New(DefaultWeights())
	c := validCampaign()
	end := time.Now().Add(-time.Hour)
	c.Window = domain.Window{EndDate: &end}

	issues := v.Validate(c)
	assert.Contains(t, codes(issues), CodeWindowEnded)
	assert.False(t, HasCritical(issues))
}

func TestValidate_OpenEndedWindowIsInfo(t *testing.T) {
	v := New(DefaultWeights())
	c := validCampaign()
	c.Window = domain.Window{}

	issues := v.Validate(c)
	assert.Equal(t, []string{CodeOpenEndedWindow}, codes(issues))
	assert.Equal(t, SeverityInfo, issues[0].Severity)
}

func TestValidate_SelectionModes(t *testing.T) {
	v := New(DefaultWeights())

	c := validCampaign()
	c.SelectionMode = domain.SelectionModeExplicitList
	assert.Contains(t, codes(v.Validate(c)), CodeEmptyExplicitList)

	c = validCampaign()
	c.SelectionMode = domain.SelectionModeRandomN
	assert.Contains(t, codes(v.Validate(c)), CodeInvalidRandomCount)

	c = validCampaign()
	c.SelectionMode = domain.SelectionModeConditionFiltered
	got := codes(v.Validate(c))
	assert.Contains(t, got, CodeNoConditions)
	assert.Contains(t, got, CodeInvalidLogic)

	c = validCampaign()
	c.SelectionMode = "everything"
	assert.Contains(t, codes(v.Validate(c)), CodeInvalidSelectionMode)
}

func TestValidate_InvalidConditionIsWarning(t *testing.T) {
	v := New(DefaultWeights())
	c := validCampaign()
	c.SelectionMode = domain.SelectionModeConditionFiltered
	c.ConditionLogic = domain.ConditionLogicAll
	c.Conditions = []domain.Condition{
		{Property: "price", Operator: domain.OpGreaterThan, Value: "10", Mode: domain.ConditionModeInclude},
		{Property: "price", Operator: domain.OpEquals, Value: "cheap", Mode: domain.ConditionModeInclude},
	}

	issues := v.Validate(c)
	assert.Contains(t, codes(issues), CodeInvalidCondition)
	assert.False(t, HasCritical(issues))
}

func TestValidate_CriticalsOrderedFirst(t *testing.T) {
	v := New(DefaultWeights())
	c := validCampaign()
	c.Name = ""
	c.Window = domain.Window{}

	issues := v.Validate(c)
	assert.Equal(t, []string{CodeMissingName, CodeOpenEndedWindow}, codes(issues))
}

func TestScore(t *testing.T) {
	v := New(Weights{Critical: 100, Warning: 10, Info: 1})

	issues := []Issue{
		{Severity: SeverityCritical},
		{Severity: SeverityWarning},
		{Severity: SeverityWarning},
		{Severity: SeverityInfo},
	}
	assert.Equal(t, 121, v.Score(issues))
	assert.Equal(t, 0, v.Score(nil))
}

func TestCriticalsAndMessages(t *testing.T) {
	issues := []Issue{
		{Code: CodeMissingName, Severity: SeverityCritical, Message: "campaign has no name"},
		{Code: CodeOpenEndedWindow, Severity: SeverityInfo, Message: "no end date"},
	}

	crit := Criticals(issues)
	assert.Len(t, crit, 1)
	assert.Equal(t, CodeMissingName, crit[0].Code)

	msgs := Messages(crit)
	assert.Equal(t, []string{"MISSING_NAME: campaign has no name"}, msgs)
}
