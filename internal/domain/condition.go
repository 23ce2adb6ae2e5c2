package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// PropertyKind classifies a catalog attribute for operator selection.
type PropertyKind string

const (
	PropertyKindNumeric PropertyKind = "numeric"
	PropertyKindText    PropertyKind = "text"
	PropertyKindBoolean PropertyKind = "boolean"
	PropertyKindSelect  PropertyKind = "select"
)

// Condition operators, grouped by property kind.
const (
	OpEquals       = "equals"
	OpNotEquals    = "not_equals"
	OpGreaterThan  = "greater_than"
	OpGreaterEqual = "greater_equal"
	OpLessThan     = "less_than"
	OpLessEqual    = "less_equal"
	OpBetween      = "between"
	OpNotBetween   = "not_between"
	OpContains     = "contains"
	OpNotContains  = "not_contains"
	OpStartsWith   = "starts_with"
	OpEndsWith     = "ends_with"
	OpIn           = "in"
	OpNotIn        = "not_in"
)

// Condition modes. Exclude inverts the single condition's result before it
// is combined with its siblings.
const (
	ConditionModeInclude = "include"
	ConditionModeExclude = "exclude"
)

// Condition combination logic shared by all conditions of one campaign.
const (
	ConditionLogicAll = "all" // AND
	ConditionLogicAny = "any" // OR
)

// NumericTolerance is the absolute tolerance used for numeric equality, to
// avoid floating-point false negatives on prices.
const NumericTolerance = 0.01

// properties is the fixed catalog attribute registry. A condition may only
// reference a property listed here; anything else fails validation and
// invalidates the whole compilation.
var properties = map[string]PropertyKind{
	"price":          PropertyKindNumeric,
	"sale_price":     PropertyKindNumeric,
	"stock_quantity": PropertyKindNumeric,
	"rating":         PropertyKindNumeric,
	"name":           PropertyKindText,
	"sku":            PropertyKindText,
	"description":    PropertyKindText,
	"in_stock":       PropertyKindBoolean,
	"featured":       PropertyKindBoolean,
	"category":       PropertyKindSelect,
	"brand":          PropertyKindSelect,
	"status":         PropertyKindSelect,
}

// operatorsByKind maps each property kind to its operator family.
var operatorsByKind = map[PropertyKind][]string{
	PropertyKindNumeric: {OpEquals, OpNotEquals, OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual, OpBetween, OpNotBetween},
	PropertyKindText:    {OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith},
	PropertyKindBoolean: {OpEquals, OpNotEquals},
	PropertyKindSelect:  {OpIn, OpNotIn},
}

// Condition is a single filter predicate over one catalog-item attribute.
type Condition struct {
	Property string `json:"property"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Value2   string `json:"value2,omitempty"`
	Mode     string `json:"mode"`
}

// PropertyKindOf returns the kind of a registered property.
func PropertyKindOf(property string) (PropertyKind, bool) {
	kind, ok := properties[property]
	return kind, ok
}

// KnownProperties returns the registered property names, sorted.
func KnownProperties() []string {
	out := make([]string, 0, len(properties))
	for name := range properties {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OperatorValidFor reports whether the operator belongs to the kind's family.
func OperatorValidFor(kind PropertyKind, operator string) bool {
	for _, op := range operatorsByKind[kind] {
		if op == operator {
			return true
		}
	}
	return false
}

// Validate checks the condition against the property registry and the
// operator's value arity. A condition that does not validate never evaluates:
// the campaign's compilation is invalidated instead (fail-closed).
func (c Condition) Validate() error {
	kind, ok := properties[c.Property]
	if !ok {
		return apperrors.InvalidInput(fmt.Sprintf("unknown condition property %q (known: %s)", c.Property, strings.Join(KnownProperties(), ", ")))
	}

	if !OperatorValidFor(kind, c.Operator) {
		return apperrors.ConditionTypeMismatch(c.Property, c.Operator)
	}

	if c.Mode != ConditionModeInclude && c.Mode != ConditionModeExclude {
		return apperrors.InvalidInput(fmt.Sprintf("invalid condition mode %q", c.Mode))
	}

	switch kind {
	case PropertyKindNumeric:
		v, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
		if err != nil {
			return apperrors.InvalidInput(fmt.Sprintf("condition on %q requires a numeric value, got %q", c.Property, c.Value))
		}
		if c.Operator == OpBetween || c.Operator == OpNotBetween {
			if strings.TrimSpace(c.Value2) == "" {
				return apperrors.InvalidInput(fmt.Sprintf("operator %q requires a second value", c.Operator))
			}
			v2, err := strconv.ParseFloat(strings.TrimSpace(c.Value2), 64)
			if err != nil {
				return apperrors.InvalidInput(fmt.Sprintf("condition on %q requires a numeric second value, got %q", c.Property, c.Value2))
			}
			if v > v2 {
				return apperrors.InvalidInput(fmt.Sprintf("range lower bound %v exceeds upper bound %v", v, v2))
			}
		}

	case PropertyKindBoolean:
		if _, err := strconv.ParseBool(strings.TrimSpace(c.Value)); err != nil {
			return apperrors.InvalidInput(fmt.Sprintf("condition on %q requires a boolean value, got %q", c.Property, c.Value))
		}

	case PropertyKindSelect:
		if len(c.ListValues()) == 0 {
			return apperrors.InvalidInput(fmt.Sprintf("condition on %q requires a non-empty value list", c.Property))
		}
	}

	return nil
}

// NumericValues parses Value and Value2 as floats. Call only after Validate.
func (c Condition) NumericValues() (float64, float64) {
	v, _ := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
	v2, _ := strconv.ParseFloat(strings.TrimSpace(c.Value2), 64)
	return v, v2
}

// BoolValue parses Value as a boolean. Call only after Validate.
func (c Condition) BoolValue() bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.Value))
	return v
}

// ListValues splits the comma-delimited value list, trimming each element
// and dropping empties.
func (c Condition) ListValues() []string {
	parts := strings.Split(c.Value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IsValidConditionLogic checks whether the given logic string is valid.
func IsValidConditionLogic(logic string) bool {
	return logic == ConditionLogicAll || logic == ConditionLogicAny
}
