// Package engine contains the operation validation and execution core:
// the validator gate, the executor, the batch processor, and the
// message-level orchestration that ties them to confirmations and
// analytics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/notion"
	"github.com/tanvirk/ledgerbot/internal/relation"
	"github.com/tanvirk/ledgerbot/internal/schema"
)

// SchemaProvider yields the (possibly fallback) schema of a logical
// database. Implemented by schema.Cache.
type SchemaProvider interface {
	Get(ctx context.Context, db domain.Database) (domain.Schema, schema.Source)
}

// Resolver maps human-readable relation names to page IDs. Implemented by
// relation.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, db domain.Database, name string) (string, error)
}

// ValidationError reports the first check an intent failed. Reason is a
// complete sentence fragment, usable verbatim in a user-facing report.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validator checks AI-proposed intents against the live schema before
// anything reaches the executor. Validation is read-only apart from
// populating the schema and relation caches.
type Validator struct {
	schemas  SchemaProvider
	resolver Resolver
}

// NewValidator creates a validator over the given schema and relation
// sources.
func NewValidator(schemas SchemaProvider, resolver Resolver) *Validator {
	return &Validator{schemas: schemas, resolver: resolver}
}

// Validate runs the ordered checks: operation kind, target database,
// property existence, relation resolvability, kind-specific required
// fields, and value types. It returns nil for a valid intent and a
// *ValidationError for the first failed check.
func (v *Validator) Validate(ctx context.Context, in *domain.Intent) error {
	if _, ok := domain.ParseKind(string(in.Kind)); !ok {
		return &ValidationError{
			Field:  "operation_type",
			Reason: fmt.Sprintf("unknown operation type %q", in.Kind),
		}
	}

	if !in.Database.IsKnown() {
		return &ValidationError{
			Field:  "database",
			Reason: fmt.Sprintf("unknown database %q", in.Database),
		}
	}

	s, _ := v.schemas.Get(ctx, in.Database)

	if err := v.checkProperties(s, in); err != nil {
		return err
	}
	if err := v.checkRelations(ctx, s, in); err != nil {
		return err
	}
	if err := v.checkRequired(s, in); err != nil {
		return err
	}
	return v.checkTypes(s, in)
}

// checkProperties verifies that every property referenced in filters or
// data exists in the target database's schema.
func (v *Validator) checkProperties(s domain.Schema, in *domain.Intent) error {
	for _, leaf := range in.Filters.Leaves() {
		if leaf.Property == "" {
			return &ValidationError{Field: "filters", Reason: "filter condition is missing its property"}
		}
		if !s.Has(leaf.Property) {
			return &ValidationError{
				Field:  "filters",
				Reason: fmt.Sprintf("property %q does not exist in %s", leaf.Property, in.Database),
			}
		}
	}

	for key := range in.Data {
		if !s.Has(key) {
			return &ValidationError{
				Field:  "data",
				Reason: fmt.Sprintf("property %q does not exist in %s", key, in.Database),
			}
		}
	}
	return nil
}

// checkRelations verifies that every relation-typed value, in data and in
// filter leaves alike, either already is a page ID or resolves to one.
func (v *Validator) checkRelations(ctx context.Context, s domain.Schema, in *domain.Intent) error {
	for key, value := range in.Data {
		if t, _ := s.Type(key); t != domain.PropertyRelation {
			continue
		}
		for _, name := range relationNames(value) {
			if err := v.checkRelationName(ctx, "data", key, name); err != nil {
				return err
			}
		}
	}

	for _, leaf := range in.Filters.Leaves() {
		if t, _ := s.Type(leaf.Property); t != domain.PropertyRelation {
			continue
		}
		name, ok := leaf.Value.(string)
		if !ok {
			continue
		}
		if err := v.checkRelationName(ctx, "filters", leaf.Property, name); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkRelationName(ctx context.Context, field, property, name string) error {
	if IsPageID(name) {
		return nil
	}
	target, ok := relation.TargetDatabase(property)
	if !ok {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("relation %q needs a page ID; %q is not one", property, name),
		}
	}
	if _, err := v.resolver.Resolve(ctx, target, name); err != nil {
		var nf *relation.NotFoundError
		if errors.As(err, &nf) && len(nf.Candidates) > 0 {
			return &ValidationError{
				Field: field,
				Reason: fmt.Sprintf("%q is ambiguous in %s: could be %s",
					name, target, strings.Join(nf.Candidates, ", ")),
			}
		}
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%q could not be resolved in %s", name, target),
		}
	}
	return nil
}

// checkRequired verifies the kind-specific required fields.
func (v *Validator) checkRequired(s domain.Schema, in *domain.Intent) error {
	switch in.Kind {
	case domain.KindCreate:
		if len(in.Data) == 0 {
			return &ValidationError{Field: "data", Reason: "create requires data"}
		}
		if title := s.TitleProperty(); title != "" {
			if _, ok := in.Data[title]; !ok {
				return &ValidationError{
					Field:  "data",
					Reason: fmt.Sprintf("create requires the %q property", title),
				}
			}
		}
	case domain.KindUpdate:
		if in.TargetID == "" {
			return &ValidationError{Field: "page_id", Reason: "update requires a target page ID"}
		}
		if len(in.Data) == 0 {
			return &ValidationError{Field: "data", Reason: "update requires data"}
		}
	case domain.KindDelete:
		if in.TargetID == "" {
			return &ValidationError{Field: "page_id", Reason: "delete requires a target page ID"}
		}
	case domain.KindAnalyze:
		if _, ok := domain.ParseAnalysisKind(string(in.Analysis)); !ok {
			return &ValidationError{
				Field:  "analysis_type",
				Reason: fmt.Sprintf("unknown analysis type %q", in.Analysis),
			}
		}
	}
	return nil
}

// checkTypes verifies that data values match the schema's declared
// property types, and that each filter leaf forms a legal condition.
func (v *Validator) checkTypes(s domain.Schema, in *domain.Intent) error {
	for key, value := range in.Data {
		t, _ := s.Type(key)
		switch t {
		case domain.PropertyNumber:
			if _, ok := notion.AsNumber(value); !ok {
				return &ValidationError{
					Field:  "data",
					Reason: fmt.Sprintf("property %q wants a number, got %v", key, value),
				}
			}
		case domain.PropertyDate:
			str, ok := value.(string)
			if !ok {
				return &ValidationError{
					Field:  "data",
					Reason: fmt.Sprintf("property %q wants a date string, got %v", key, value),
				}
			}
			if _, err := notion.ParseDate(str); err != nil {
				return &ValidationError{
					Field:  "data",
					Reason: fmt.Sprintf("property %q: %q is not a calendar date", key, str),
				}
			}
		case domain.PropertyCheckbox:
			if _, ok := value.(bool); !ok {
				return &ValidationError{
					Field:  "data",
					Reason: fmt.Sprintf("property %q wants true or false, got %v", key, value),
				}
			}
		case domain.PropertyFormula, domain.PropertyRollup:
			return &ValidationError{
				Field:  "data",
				Reason: fmt.Sprintf("property %q is computed and cannot be written", key),
			}
		}
	}

	// Filter leaves reuse the composer for operator/value checking; a tree
	// that cannot compose would fail at execution anyway, so reject it now.
	// Relation leaves were already vetted by checkRelations; the composer
	// treats any string as acceptable there.
	if in.Filters != nil {
		if _, err := notion.BuildFilter(s, in.Filters); err != nil {
			return &ValidationError{Field: "filters", Reason: err.Error()}
		}
	}
	return nil
}

// relationNames extracts the name or names held by a relation value.
func relationNames(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IsPageID reports whether the value is already a stable identifier (a
// UUID, with or without dashes) rather than a human-readable name.
func IsPageID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
