// Package eval implements condition evaluation over catalog items.
//
// Evaluation is fail-closed: a condition that cannot be evaluated
// against an item matches nothing, and filtering with zero conditions
// yields the empty set rather than the full candidate set.
package eval

import (
	"math"
	"strings"

	"github.com/smartcycle/discounts/internal/catalog"
	"github.com/smartcycle/discounts/internal/domain"
)

// Evaluate reports whether the item satisfies the condition, before
// the include/exclude mode is applied.
func Evaluate(item catalog.Item, cond domain.Condition) bool {
	kind, ok := domain.PropertyKindOf(cond.Property)
	if !ok {
		return false
	}

	switch kind {
	case domain.PropertyKindNumeric:
		v, ok := item.NumericAttr(cond.Property)
		if !ok {
			return false
		}
		return evalNumeric(v, cond)

	case domain.PropertyKindText:
		v, ok := item.TextAttr(cond.Property)
		if !ok {
			return false
		}
		return evalText(v, cond)

	case domain.PropertyKindBoolean:
		v, ok := item.BoolAttr(cond.Property)
		if !ok {
			return false
		}
		return evalBool(v, cond)

	case domain.PropertyKindSelect:
		v, ok := item.SelectAttr(cond.Property)
		if !ok {
			return false
		}
		return evalSelect(v, cond)
	}

	return false
}

// Matches applies the condition's include/exclude mode on top of
// Evaluate: an exclude condition matches when the raw predicate does
// not hold.
func Matches(item catalog.Item, cond domain.Condition) bool {
	matched := Evaluate(item, cond)
	if cond.Mode == domain.ConditionModeExclude {
		return !matched
	}
	return matched
}

// Filter applies the condition list to the candidate items under the
// given combination logic.
//
// With "all" logic each condition narrows the surviving set in order,
// stopping early once it is empty. With "any" logic every condition is
// evaluated against the original candidates and the per-condition
// matches are unioned, preserving first-seen candidate order.
//
// An empty condition list yields an empty result.
func Filter(candidates []catalog.Item, conditions []domain.Condition, logic string) []catalog.Item {
	if len(conditions) == 0 {
		return []catalog.Item{}
	}

	if logic == domain.ConditionLogicAny {
		return filterAny(candidates, conditions)
	}
	return filterAll(candidates, conditions)
}

func filterAll(candidates []catalog.Item, conditions []domain.Condition) []catalog.Item {
	surviving := candidates
	for _, cond := range conditions {
		next := make([]catalog.Item, 0, len(surviving))
		for _, item := range surviving {
			if Matches(item, cond) {
				next = append(next, item)
			}
		}
		surviving = next
		if len(surviving) == 0 {
			break
		}
	}

	out := make([]catalog.Item, len(surviving))
	copy(out, surviving)
	return out
}

func filterAny(candidates []catalog.Item, conditions []domain.Condition) []catalog.Item {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]catalog.Item, 0, len(candidates))

	// Union in candidate order so results are deterministic regardless
	// of which condition matched first.
	for _, item := range candidates {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		for _, cond := range conditions {
			if Matches(item, cond) {
				seen[item.ID] = struct{}{}
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func evalNumeric(v float64, cond domain.Condition) bool {
	a, b := cond.NumericValues()

	switch cond.Operator {
	case domain.OpEquals:
		return math.Abs(v-a) <= domain.NumericTolerance
	case domain.OpNotEquals:
		return math.Abs(v-a) > domain.NumericTolerance
	case domain.OpGreaterThan:
		return v > a
	case domain.OpGreaterEqual:
		return v >= a
	case domain.OpLessThan:
		return v < a
	case domain.OpLessEqual:
		return v <= a
	case domain.OpBetween:
		return v >= a && v <= b
	case domain.OpNotBetween:
		return v < a || v > b
	}
	return false
}

func evalText(v string, cond domain.Condition) bool {
	subject := strings.ToLower(strings.TrimSpace(v))
	target := strings.ToLower(strings.TrimSpace(cond.Value))

	switch cond.Operator {
	case domain.OpEquals:
		return subject == target
	case domain.OpNotEquals:
		return subject != target
	case domain.OpContains:
		return target != "" && strings.Contains(subject, target)
	case domain.OpNotContains:
		return target == "" || !strings.Contains(subject, target)
	case domain.OpStartsWith:
		return target != "" && strings.HasPrefix(subject, target)
	case domain.OpEndsWith:
		return strings.HasSuffix(subject, target)
	}
	return false
}

func evalBool(v bool, cond domain.Condition) bool {
	want := cond.BoolValue()

	switch cond.Operator {
	case domain.OpEquals:
		return v == want
	case domain.OpNotEquals:
		return v != want
	}
	return false
}

func evalSelect(v string, cond domain.Condition) bool {
	subject := strings.ToLower(strings.TrimSpace(v))

	switch cond.Operator {
	case domain.OpIn:
		for _, candidate := range cond.ListValues() {
			if subject == strings.ToLower(candidate) {
				return true
			}
		}
		return false
	case domain.OpNotIn:
		for _, candidate := range cond.ListValues() {
			if subject == strings.ToLower(candidate) {
				return false
			}
		}
		return true
	}
	return false
}
