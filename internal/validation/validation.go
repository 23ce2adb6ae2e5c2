// Package validation inspects a campaign and reports configuration
// issues by severity. The state machine consults only the presence of
// critical issues when gating activation; warnings and infos are
// surfaced to operators without blocking anything.
package validation

import (
	"fmt"
	"time"

	"github.com/smartcycle/discounts/internal/domain"
)

// Severity classifies an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue codes.
const (
	CodeMissingName          = "MISSING_NAME"
	CodeInvalidPriority      = "INVALID_PRIORITY"
	CodeMissingDiscountSpec  = "MISSING_DISCOUNT_SPEC"
	CodeInvalidSelectionMode = "INVALID_SELECTION_MODE"
	CodeWindowInverted       = "WINDOW_INVERTED"
	CodeWindowEnded          = "WINDOW_ENDED"
	CodeEmptyExplicitList    = "EMPTY_EXPLICIT_LIST"
	CodeInvalidRandomCount   = "INVALID_RANDOM_COUNT"
	CodeNoConditions         = "NO_CONDITIONS"
	CodeInvalidCondition     = "INVALID_CONDITION"
	CodeInvalidLogic         = "INVALID_CONDITION_LOGIC"
	CodeOpenEndedWindow      = "OPEN_ENDED_WINDOW"
)

// Issue is one validation finding.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Weights convert an issue list into a single health score, higher
// meaning worse. The defaults weigh a critical issue heavier than any
// realistic number of warnings.
type Weights struct {
	Critical int
	Warning  int
	Info     int
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{Critical: 100, Warning: 10, Info: 1}
}

// Validator checks campaign configuration.
type Validator struct {
	weights Weights
	now     func() time.Time
}

// New creates a validator with the given scoring weights.
func New(weights Weights) *Validator {
	return &Validator{weights: weights, now: time.Now}
}

// Validate returns every issue found on the campaign, criticals first.
func (v *Validator) Validate(c *domain.Campaign) []Issue {
	var issues []Issue
	add := func(severity Severity, code, message string) {
		issues = append(issues, Issue{Code: code, Severity: severity, Message: message})
	}

	if c.Name == "" {
		add(SeverityCritical, CodeMissingName, "campaign has no name")
	}
	if !domain.IsValidPriority(c.Priority) {
		add(SeverityCritical, CodeInvalidPriority,
			fmt.Sprintf("priority %d is outside %d..%d", c.Priority, domain.PriorityMin, domain.PriorityMax))
	}
	if len(c.DiscountSpec) == 0 {
		add(SeverityCritical, CodeMissingDiscountSpec, "campaign has no discount configured")
	}

	issues = append(issues, v.windowIssues(c)...)
	issues = append(issues, v.selectionIssues(c)...)

	ordered := make([]Issue, 0, len(issues))
	for _, severity := range []Severity{SeverityCritical, SeverityWarning, SeverityInfo} {
		for _, issue := range issues {
			if issue.Severity == severity {
				ordered = append(ordered, issue)
			}
		}
	}
	return ordered
}

func (v *Validator) windowIssues(c *domain.Campaign) []Issue {
	var issues []Issue
	w := c.Window

	if !w.StartDate.IsZero() && w.EndDate != nil && w.EndDate.Before(w.StartDate) {
		issues = append(issues, Issue{
			Code:     CodeWindowInverted,
			Severity: SeverityCritical,
			Message:  "window end date is before its start date",
		})
	}
	if w.EndDate != nil && w.EndDate.Before(v.now()) {
		issues = append(issues, Issue{
			Code:     CodeWindowEnded,
			Severity: SeverityWarning,
			Message:  "window end date is already in the past",
		})
	}
	if w.EndDate == nil {
		issues = append(issues, Issue{
			Code:     CodeOpenEndedWindow,
			Severity: SeverityInfo,
			Message:  "campaign has no end date and will run until paused",
		})
	}
	return issues
}

func (v *Validator) selectionIssues(c *domain.Campaign) []Issue {
	var issues []Issue

	switch c.SelectionMode {
	case domain.SelectionModeAllItems:

	case domain.SelectionModeExplicitList:
		if len(c.ExplicitItemIDs) == 0 {
			issues = append(issues, Issue{
				Code:     CodeEmptyExplicitList,
				Severity: SeverityCritical,
				Message:  "explicit-list selection has no item ids",
			})
		}

	case domain.SelectionModeRandomN:
		if c.RandomCount <= 0 {
			issues = append(issues, Issue{
				Code:     CodeInvalidRandomCount,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("random selection count must be positive, got %d", c.RandomCount),
			})
		}

	case domain.SelectionModeConditionFiltered:
		if len(c.Conditions) == 0 {
			issues = append(issues, Issue{
				Code:     CodeNoConditions,
				Severity: SeverityCritical,
				Message:  "condition-filtered selection has no conditions and would match nothing",
			})
		}
		if !domain.IsValidConditionLogic(c.ConditionLogic) {
			issues = append(issues, Issue{
				Code:     CodeInvalidLogic,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("unknown condition logic %q", c.ConditionLogic),
			})
		}

	default:
		issues = append(issues, Issue{
			Code:     CodeInvalidSelectionMode,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("unknown selection mode %q", c.SelectionMode),
		})
	}

	for i, cond := range c.Conditions {
		if err := cond.Validate(); err != nil {
			issues = append(issues, Issue{
				Code:     CodeInvalidCondition,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("condition %d: %v", i+1, err),
			})
		}
	}
	return issues
}

// Score collapses an issue list into a single weighted number.
func (v *Validator) Score(issues []Issue) int {
	score := 0
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			score += v.weights.Critical
		case SeverityWarning:
			score += v.weights.Warning
		case SeverityInfo:
			score += v.weights.Info
		}
	}
	return score
}

// HasCritical reports whether any issue is critical.
func HasCritical(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Criticals returns only the critical issues.
func Criticals(issues []Issue) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			out = append(out, issue)
		}
	}
	return out
}

// Messages flattens issues to their messages, used when attaching the
// issue list to an error.
func Messages(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, fmt.Sprintf("%s: %s", issue.Code, issue.Message))
	}
	return out
}
