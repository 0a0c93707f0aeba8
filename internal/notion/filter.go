package notion

import (
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/tanvirk/ledgerbot/internal/domain"
)

// BuildFilter composes a filter expression tree into Notion's filter
// syntax, preserving AND/OR nesting. The schema decides which typed
// condition each leaf becomes. A nil tree returns a nil filter (match all).
func BuildFilter(schema domain.Schema, node *domain.FilterNode) (notionapi.Filter, error) {
	if node == nil {
		return nil, nil
	}

	if node.IsCompound() {
		if len(node.And) > 0 && len(node.Or) > 0 {
			return nil, fmt.Errorf("BuildFilter: node mixes and/or; nest them instead")
		}

		children := node.And
		isAnd := true
		if len(node.Or) > 0 {
			children = node.Or
			isAnd = false
		}

		parts := make([]notionapi.Filter, 0, len(children))
		for _, child := range children {
			part, err := BuildFilter(schema, child)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}

		if isAnd {
			return notionapi.AndCompoundFilter(parts), nil
		}
		return notionapi.OrCompoundFilter(parts), nil
	}

	return buildLeaf(schema, node)
}

func buildLeaf(schema domain.Schema, node *domain.FilterNode) (notionapi.Filter, error) {
	propType, ok := schema.Type(node.Property)
	if !ok {
		return nil, fmt.Errorf("BuildFilter: property %q not in schema", node.Property)
	}

	op := domain.NormalizeOperator(node.Operator)

	switch propType {
	case domain.PropertyTitle, domain.PropertyRichText:
		// Notion applies rich_text conditions to title properties too.
		cond, err := textCondition(op, fmt.Sprintf("%v", node.Value))
		if err != nil {
			return nil, fmt.Errorf("BuildFilter: %q: %w", node.Property, err)
		}
		return notionapi.PropertyFilter{Property: node.Property, RichText: cond}, nil

	case domain.PropertyNumber:
		n, ok := AsNumber(node.Value)
		if !ok {
			return nil, fmt.Errorf("BuildFilter: %q wants a numeric value, got %T", node.Property, node.Value)
		}
		cond, err := numberCondition(op, n)
		if err != nil {
			return nil, fmt.Errorf("BuildFilter: %q: %w", node.Property, err)
		}
		return notionapi.PropertyFilter{Property: node.Property, Number: cond}, nil

	case domain.PropertyDate:
		s, ok := node.Value.(string)
		if !ok {
			return nil, fmt.Errorf("BuildFilter: %q wants a date string, got %T", node.Property, node.Value)
		}
		t, err := ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("BuildFilter: %q: %w", node.Property, err)
		}
		cond, err := dateCondition(op, notionapi.Date(t))
		if err != nil {
			return nil, fmt.Errorf("BuildFilter: %q: %w", node.Property, err)
		}
		return notionapi.PropertyFilter{Property: node.Property, Date: cond}, nil

	case domain.PropertyCheckbox:
		b, ok := node.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("BuildFilter: %q wants a boolean, got %T", node.Property, node.Value)
		}
		cond, err := checkboxCondition(op, b)
		if err != nil {
			return nil, fmt.Errorf("BuildFilter: %q: %w", node.Property, err)
		}
		return notionapi.PropertyFilter{Property: node.Property, Checkbox: cond}, nil

	case domain.PropertySelect:
		cond, err := selectCondition(op, fmt.Sprintf("%v", node.Value))
		if err != nil {
			return nil, fmt.Errorf("BuildFilter: %q: %w", node.Property, err)
		}
		return notionapi.PropertyFilter{Property: node.Property, Select: cond}, nil

	case domain.PropertyRelation:
		id, ok := node.Value.(string)
		if !ok {
			return nil, fmt.Errorf("BuildFilter: %q wants a page ID, got %T", node.Property, node.Value)
		}
		cond, err := relationCondition(op, id)
		if err != nil {
			return nil, fmt.Errorf("BuildFilter: %q: %w", node.Property, err)
		}
		return notionapi.PropertyFilter{Property: node.Property, Relation: cond}, nil
	}

	return nil, fmt.Errorf("BuildFilter: property %q of type %q cannot be filtered", node.Property, propType)
}

func textCondition(op, value string) (*notionapi.TextFilterCondition, error) {
	switch op {
	case domain.OpEquals:
		return &notionapi.TextFilterCondition{Equals: value}, nil
	case domain.OpDoesNotEqual:
		return &notionapi.TextFilterCondition{DoesNotEqual: value}, nil
	case domain.OpContains:
		return &notionapi.TextFilterCondition{Contains: value}, nil
	case domain.OpDoesNotContain:
		return &notionapi.TextFilterCondition{DoesNotContain: value}, nil
	case domain.OpStartsWith:
		return &notionapi.TextFilterCondition{StartsWith: value}, nil
	case domain.OpEndsWith:
		return &notionapi.TextFilterCondition{EndsWith: value}, nil
	}
	return nil, fmt.Errorf("operator %q not valid for text", op)
}

func numberCondition(op string, n float64) (*notionapi.NumberFilterCondition, error) {
	switch op {
	case domain.OpEquals:
		return &notionapi.NumberFilterCondition{Equals: &n}, nil
	case domain.OpDoesNotEqual:
		return &notionapi.NumberFilterCondition{DoesNotEqual: &n}, nil
	case domain.OpGreaterThan:
		return &notionapi.NumberFilterCondition{GreaterThan: &n}, nil
	case domain.OpLessThan:
		return &notionapi.NumberFilterCondition{LessThan: &n}, nil
	case domain.OpGreaterOrEqual:
		return &notionapi.NumberFilterCondition{GreaterThanOrEqualTo: &n}, nil
	case domain.OpLessOrEqual:
		return &notionapi.NumberFilterCondition{LessThanOrEqualTo: &n}, nil
	}
	return nil, fmt.Errorf("operator %q not valid for number", op)
}

func dateCondition(op string, d notionapi.Date) (*notionapi.DateFilterCondition, error) {
	switch op {
	case domain.OpEquals:
		return &notionapi.DateFilterCondition{Equals: &d}, nil
	case domain.OpBefore:
		return &notionapi.DateFilterCondition{Before: &d}, nil
	case domain.OpAfter:
		return &notionapi.DateFilterCondition{After: &d}, nil
	case domain.OpOnOrBefore:
		return &notionapi.DateFilterCondition{OnOrBefore: &d}, nil
	case domain.OpOnOrAfter:
		return &notionapi.DateFilterCondition{OnOrAfter: &d}, nil
	}
	return nil, fmt.Errorf("operator %q not valid for date", op)
}

func checkboxCondition(op string, b bool) (*notionapi.CheckboxFilterCondition, error) {
	switch op {
	case domain.OpEquals:
		return &notionapi.CheckboxFilterCondition{Equals: b}, nil
	case domain.OpDoesNotEqual:
		return &notionapi.CheckboxFilterCondition{DoesNotEqual: b}, nil
	}
	return nil, fmt.Errorf("operator %q not valid for checkbox", op)
}

func selectCondition(op, value string) (*notionapi.SelectFilterCondition, error) {
	switch op {
	case domain.OpEquals:
		return &notionapi.SelectFilterCondition{Equals: value}, nil
	case domain.OpDoesNotEqual:
		return &notionapi.SelectFilterCondition{DoesNotEqual: value}, nil
	}
	return nil, fmt.Errorf("operator %q not valid for select", op)
}

func relationCondition(op, id string) (*notionapi.RelationFilterCondition, error) {
	switch op {
	case domain.OpContains, domain.OpEquals:
		return &notionapi.RelationFilterCondition{Contains: id}, nil
	case domain.OpDoesNotContain, domain.OpDoesNotEqual:
		return &notionapi.RelationFilterCondition{DoesNotContain: id}, nil
	}
	return nil, fmt.Errorf("operator %q not valid for relation", op)
}
