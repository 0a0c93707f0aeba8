package notion

import (
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/tanvirk/ledgerbot/internal/domain"
)

// dateLayouts are the formats accepted for date values coming from the AI
// layer. Calendar dates and RFC3339 timestamps both occur in practice.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ParseDate parses a date value in one of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("ParseDate: %q is not a calendar date", s)
}

// AsNumber coerces a decoded JSON value to float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// BuildProperties converts validated plain data into the Notion property
// payload, using the schema to pick the wire representation per property.
// Relation values must already be resolved to page IDs; unresolved names
// are a programming error at this point and are rejected.
func BuildProperties(schema domain.Schema, data map[string]any) (notionapi.Properties, error) {
	props := notionapi.Properties{}

	for key, value := range data {
		propType, ok := schema.Type(key)
		if !ok {
			return nil, fmt.Errorf("BuildProperties: property %q not in schema", key)
		}

		switch propType {
		case domain.PropertyTitle:
			props[key] = notionapi.TitleProperty{
				Title: richText(fmt.Sprintf("%v", value)),
			}
		case domain.PropertyRichText:
			props[key] = notionapi.RichTextProperty{
				RichText: richText(fmt.Sprintf("%v", value)),
			}
		case domain.PropertyNumber:
			n, ok := AsNumber(value)
			if !ok {
				return nil, fmt.Errorf("BuildProperties: property %q wants a number, got %T", key, value)
			}
			props[key] = notionapi.NumberProperty{Number: n}
		case domain.PropertyDate:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("BuildProperties: property %q wants a date string, got %T", key, value)
			}
			t, err := ParseDate(s)
			if err != nil {
				return nil, fmt.Errorf("BuildProperties: property %q: %w", key, err)
			}
			d := notionapi.Date(t)
			props[key] = notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: &d},
			}
		case domain.PropertyCheckbox:
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("BuildProperties: property %q wants a boolean, got %T", key, value)
			}
			props[key] = notionapi.CheckboxProperty{Checkbox: b}
		case domain.PropertySelect:
			props[key] = notionapi.SelectProperty{
				Select: notionapi.Option{Name: fmt.Sprintf("%v", value)},
			}
		case domain.PropertyRelation:
			ids, err := relationIDs(key, value)
			if err != nil {
				return nil, err
			}
			props[key] = notionapi.RelationProperty{Relation: ids}
		case domain.PropertyFormula, domain.PropertyRollup:
			return nil, fmt.Errorf("BuildProperties: property %q is computed and cannot be written", key)
		default:
			return nil, fmt.Errorf("BuildProperties: property %q has unsupported type %q", key, propType)
		}
	}

	return props, nil
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func relationIDs(key string, value any) ([]notionapi.Relation, error) {
	switch v := value.(type) {
	case string:
		return []notionapi.Relation{{ID: notionapi.PageID(v)}}, nil
	case []string:
		rels := make([]notionapi.Relation, 0, len(v))
		for _, id := range v {
			rels = append(rels, notionapi.Relation{ID: notionapi.PageID(id)})
		}
		return rels, nil
	case []any:
		rels := make([]notionapi.Relation, 0, len(v))
		for _, item := range v {
			id, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("BuildProperties: relation %q wants page IDs, got %T", key, item)
			}
			rels = append(rels, notionapi.Relation{ID: notionapi.PageID(id)})
		}
		return rels, nil
	}
	return nil, fmt.Errorf("BuildProperties: relation %q wants a page ID or list, got %T", key, value)
}

// NormalizeRow flattens a Notion page into a plain record the rest of the
// engine (and the AI layer) can consume. Complex property types are reduced
// to their useful scalar: formulas and rollups to their computed value,
// relations to their reference count.
func NormalizeRow(page notionapi.Page) domain.Row {
	row := domain.Row{"id": string(page.ID)}

	for name, prop := range page.Properties {
		switch p := prop.(type) {
		case *notionapi.TitleProperty:
			if len(p.Title) > 0 {
				row[name] = p.Title[0].PlainText
			}
		case *notionapi.RichTextProperty:
			if len(p.RichText) > 0 {
				row[name] = p.RichText[0].PlainText
			}
		case *notionapi.NumberProperty:
			row[name] = p.Number
		case *notionapi.DateProperty:
			if p.Date != nil && p.Date.Start != nil {
				row[name] = time.Time(*p.Date.Start).Format("2006-01-02")
			}
		case *notionapi.CheckboxProperty:
			row[name] = p.Checkbox
		case *notionapi.SelectProperty:
			if p.Select.Name != "" {
				row[name] = p.Select.Name
			}
		case *notionapi.MultiSelectProperty:
			names := make([]string, 0, len(p.MultiSelect))
			for _, opt := range p.MultiSelect {
				names = append(names, opt.Name)
			}
			row[name] = names
		case *notionapi.RelationProperty:
			row[name] = len(p.Relation)
		case *notionapi.FormulaProperty:
			switch string(p.Formula.Type) {
			case "number":
				row[name] = p.Formula.Number
			case "string":
				row[name] = p.Formula.String
			case "boolean":
				row[name] = p.Formula.Boolean
			case "date":
				if p.Formula.Date != nil && p.Formula.Date.Start != nil {
					row[name] = time.Time(*p.Formula.Date.Start).Format("2006-01-02")
				}
			}
		case *notionapi.RollupProperty:
			switch string(p.Rollup.Type) {
			case "number":
				row[name] = p.Rollup.Number
			case "array":
				row[name] = len(p.Rollup.Array)
			}
			// Other property types (files, people, ...) carry nothing the
			// engine reports on; skip them.
		}
	}

	return row
}

// ExtractTitle returns the page's title text, regardless of what the title
// property is named in that database.
func ExtractTitle(page notionapi.Page) string {
	for _, prop := range page.Properties {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}

// ExtractNumber extracts a numeric value from a page property, unwrapping
// formula results the way plain numbers are.
func ExtractNumber(page notionapi.Page, property string) (float64, bool) {
	prop, ok := page.Properties[property]
	if !ok {
		return 0, false
	}

	switch p := prop.(type) {
	case *notionapi.NumberProperty:
		return p.Number, true
	case *notionapi.FormulaProperty:
		if string(p.Formula.Type) == "number" {
			return p.Formula.Number, true
		}
	}
	return 0, false
}

// ExtractDate extracts the start date of a date property.
func ExtractDate(page notionapi.Page, property string) (time.Time, bool) {
	prop, ok := page.Properties[property]
	if !ok {
		return time.Time{}, false
	}

	if p, ok := prop.(*notionapi.DateProperty); ok {
		if p.Date != nil && p.Date.Start != nil {
			return time.Time(*p.Date.Start), true
		}
	}
	return time.Time{}, false
}
