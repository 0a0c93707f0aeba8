package domain

import "strings"

// Comparator names for filter leaves. They mirror Notion's operator
// vocabulary so the AI layer can emit them directly; the executor maps them
// onto the store's typed filter conditions.
const (
	OpEquals         = "equals"
	OpDoesNotEqual   = "does_not_equal"
	OpContains       = "contains"
	OpDoesNotContain = "does_not_contain"
	OpStartsWith     = "starts_with"
	OpEndsWith       = "ends_with"
	OpGreaterThan    = "greater_than"
	OpLessThan       = "less_than"
	OpGreaterOrEqual = "greater_than_or_equal_to"
	OpLessOrEqual    = "less_than_or_equal_to"
	OpBefore         = "before"
	OpAfter          = "after"
	OpOnOrBefore     = "on_or_before"
	OpOnOrAfter      = "on_or_after"
)

// FilterNode is a small filter expression tree. A node is either a leaf
// (Property/Operator/Value set) or a compound (exactly one of And/Or set);
// the two forms are mutually exclusive.
type FilterNode struct {
	Property string `json:"property,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`

	And []*FilterNode `json:"and,omitempty"`
	Or  []*FilterNode `json:"or,omitempty"`
}

// IsCompound reports whether the node composes child filters.
func (f *FilterNode) IsCompound() bool {
	return len(f.And) > 0 || len(f.Or) > 0
}

// Leaves returns every leaf node in depth-first order.
func (f *FilterNode) Leaves() []*FilterNode {
	if f == nil {
		return nil
	}
	if !f.IsCompound() {
		return []*FilterNode{f}
	}
	var out []*FilterNode
	for _, child := range append(f.And, f.Or...) {
		out = append(out, child.Leaves()...)
	}
	return out
}

// NormalizeOperator lowercases and trims an operator name.
func NormalizeOperator(op string) string {
	return strings.ToLower(strings.TrimSpace(op))
}

// AndFilter builds a compound AND node.
func AndFilter(children ...*FilterNode) *FilterNode {
	return &FilterNode{And: children}
}

// Leaf builds a single-condition node.
func Leaf(property, operator string, value any) *FilterNode {
	return &FilterNode{Property: property, Operator: operator, Value: value}
}
