package domain

import "sort"

// PropertyType is the type of one property in a logical database schema,
// using the remote store's type vocabulary.
type PropertyType string

const (
	PropertyTitle       PropertyType = "title"
	PropertyRichText    PropertyType = "rich_text"
	PropertyNumber      PropertyType = "number"
	PropertyDate        PropertyType = "date"
	PropertyCheckbox    PropertyType = "checkbox"
	PropertySelect      PropertyType = "select"
	PropertyMultiSelect PropertyType = "multi_select"
	PropertyRelation    PropertyType = "relation"
	PropertyFormula     PropertyType = "formula"
	PropertyRollup      PropertyType = "rollup"
)

// Schema maps property names to their types for one logical database.
// A schema is fetched atomically: it is either a complete live snapshot or
// a complete static fallback, never a partial mix.
type Schema map[string]PropertyType

// Has reports whether the property exists.
func (s Schema) Has(property string) bool {
	_, ok := s[property]
	return ok
}

// Type returns the property's type.
func (s Schema) Type(property string) (PropertyType, bool) {
	t, ok := s[property]
	return t, ok
}

// TitleProperty returns the name of the schema's title property, or ""
// when the schema has none.
func (s Schema) TitleProperty() string {
	for name, t := range s {
		if t == PropertyTitle {
			return name
		}
	}
	return ""
}

// PropertyNames returns the property names in lexical order, for stable
// error messages and listings.
func (s Schema) PropertyNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
