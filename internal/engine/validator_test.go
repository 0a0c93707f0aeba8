package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/relation"
)

// stubResolver resolves from a fixed name table and reports ambiguity for
// names listed with multiple candidates.
type stubResolver struct {
	known     map[string]string
	ambiguous map[string][]string
}

func (r *stubResolver) Resolve(ctx context.Context, db domain.Database, name string) (string, error) {
	if candidates, ok := r.ambiguous[name]; ok {
		return "", &relation.NotFoundError{Database: db, Name: name, Candidates: candidates}
	}
	if id, ok := r.known[name]; ok {
		return id, nil
	}
	return "", &relation.NotFoundError{Database: db, Name: name}
}

func newTestValidator() *Validator {
	return NewValidator(fakeSchemas{}, &stubResolver{
		known: map[string]string{
			"Food":      "7f9c24e5-1111-2222-3333-444455556666",
			"BRAC Bank": "7f9c24e5-aaaa-bbbb-cccc-444455556666",
		},
		ambiguous: map[string][]string{
			"bank": {"BRAC Bank", "City Bank"},
		},
	})
}

func TestValidateCreateOK(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), &domain.Intent{
		Kind:     domain.KindCreate,
		Database: domain.DatabaseExpenses,
		Data: map[string]any{
			"Name":       "Groceries",
			"Amount":     500.0,
			"Date":       "2026-03-15",
			"Categories": "Food",
		},
	})
	assert.NoError(t, err)
}

func TestValidateRejections(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name   string
		intent *domain.Intent
		field  string
		reason string
	}{
		{
			name:   "unknown operation type",
			intent: &domain.Intent{Kind: "drop", Database: domain.DatabaseExpenses},
			field:  "operation_type",
			reason: "drop",
		},
		{
			name:   "unknown database",
			intent: &domain.Intent{Kind: domain.KindQuery, Database: "crypto"},
			field:  "database",
			reason: "crypto",
		},
		{
			name: "unknown data property is named",
			intent: &domain.Intent{
				Kind:     domain.KindCreate,
				Database: domain.DatabaseExpenses,
				Data:     map[string]any{"Name": "x", "Color": "red"},
			},
			field:  "data",
			reason: `"Color" does not exist in expenses`,
		},
		{
			name: "unknown filter property is named",
			intent: &domain.Intent{
				Kind:     domain.KindQuery,
				Database: domain.DatabaseExpenses,
				Filters:  domain.Leaf("Merchant", domain.OpEquals, "Tesco"),
			},
			field:  "filters",
			reason: `"Merchant" does not exist in expenses`,
		},
		{
			name: "ambiguous relation lists candidates",
			intent: &domain.Intent{
				Kind:     domain.KindCreate,
				Database: domain.DatabaseExpenses,
				Data:     map[string]any{"Name": "x", "Accounts": "bank"},
			},
			field:  "data",
			reason: "BRAC Bank, City Bank",
		},
		{
			name: "unresolvable relation",
			intent: &domain.Intent{
				Kind:     domain.KindCreate,
				Database: domain.DatabaseExpenses,
				Data:     map[string]any{"Name": "x", "Categories": "Astrology"},
			},
			field:  "data",
			reason: "could not be resolved",
		},
		{
			name: "unresolvable relation in a filter leaf",
			intent: &domain.Intent{
				Kind:     domain.KindQuery,
				Database: domain.DatabaseExpenses,
				Filters:  domain.Leaf("Categories", domain.OpContains, "Astrology"),
			},
			field:  "filters",
			reason: "could not be resolved",
		},
		{
			name: "ambiguous relation in a filter leaf lists candidates",
			intent: &domain.Intent{
				Kind:     domain.KindQuery,
				Database: domain.DatabaseExpenses,
				Filters:  domain.Leaf("Accounts", domain.OpContains, "bank"),
			},
			field:  "filters",
			reason: "BRAC Bank, City Bank",
		},
		{
			name: "create requires title",
			intent: &domain.Intent{
				Kind:     domain.KindCreate,
				Database: domain.DatabaseExpenses,
				Data:     map[string]any{"Amount": 10.0},
			},
			field:  "data",
			reason: `"Name"`,
		},
		{
			name: "update requires target",
			intent: &domain.Intent{
				Kind:     domain.KindUpdate,
				Database: domain.DatabaseExpenses,
				Data:     map[string]any{"Amount": 10.0},
			},
			field:  "page_id",
			reason: "target page ID",
		},
		{
			name: "delete requires target",
			intent: &domain.Intent{
				Kind:     domain.KindDelete,
				Database: domain.DatabaseExpenses,
			},
			field:  "page_id",
			reason: "target page ID",
		},
		{
			name: "analyze requires a known aggregation",
			intent: &domain.Intent{
				Kind:     domain.KindAnalyze,
				Database: domain.DatabaseExpenses,
				Analysis: "median",
			},
			field:  "analysis_type",
			reason: "median",
		},
		{
			name: "number property rejects text",
			intent: &domain.Intent{
				Kind:     domain.KindCreate,
				Database: domain.DatabaseExpenses,
				Data:     map[string]any{"Name": "x", "Amount": "lots"},
			},
			field:  "data",
			reason: "wants a number",
		},
		{
			name: "computed property is not writable",
			intent: &domain.Intent{
				Kind:     domain.KindCreate,
				Database: domain.DatabaseExpenses,
				Data:     map[string]any{"Name": "x", "Monthly": 12.0},
			},
			field:  "data",
			reason: "computed",
		},
		{
			name: "filter operator must fit the type",
			intent: &domain.Intent{
				Kind:     domain.KindQuery,
				Database: domain.DatabaseExpenses,
				Filters:  domain.Leaf("Amount", domain.OpContains, 5.0),
			},
			field:  "filters",
			reason: "not valid for number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), tt.intent)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, verr.Reason, tt.reason)
		})
	}
}

func TestValidateResolvableFilterRelation(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), &domain.Intent{
		Kind:     domain.KindQuery,
		Database: domain.DatabaseExpenses,
		Filters:  domain.Leaf("Categories", domain.OpContains, "Food"),
	})
	assert.NoError(t, err)
}

func TestValidateAcceptsPageIDRelations(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), &domain.Intent{
		Kind:     domain.KindCreate,
		Database: domain.DatabaseExpenses,
		Data: map[string]any{
			"Name":       "Groceries",
			"Categories": "7f9c24e5-1111-2222-3333-444455556666",
		},
	})
	assert.NoError(t, err, "an existing page ID needs no resolution")
}
