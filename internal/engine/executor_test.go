package engine

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/notion"
)

// stubNotion scripts responses per call and records what the executor
// sent.
type stubNotion struct {
	notion.Service

	queryReqs  []*notionapi.DatabaseQueryRequest
	queryPages []notionapi.Page
	queryErrs  []error

	created     []notionapi.Properties
	createCalls int
	createErrs  []error
	archived    []string
	archiveErrs []error
}

func (s *stubNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	s.queryReqs = append(s.queryReqs, req)
	if len(s.queryErrs) > 0 {
		err := s.queryErrs[0]
		s.queryErrs = s.queryErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &notionapi.DatabaseQueryResponse{Results: s.queryPages}, nil
}

func (s *stubNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	s.createCalls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s.created = append(s.created, properties)
	return &notionapi.Page{ID: "page-new"}, nil
}

func (s *stubNotion) ArchivePage(ctx context.Context, pageID string) error {
	if len(s.archiveErrs) > 0 {
		err := s.archiveErrs[0]
		s.archiveErrs = s.archiveErrs[1:]
		if err != nil {
			return err
		}
	}
	s.archived = append(s.archived, pageID)
	return nil
}

var executorDatabases = notion.Databases{
	domain.DatabaseExpenses:   "db-expenses",
	domain.DatabaseCategories: "db-categories",
}

func newTestExecutor(svc *stubNotion) *Executor {
	return NewExecutor(svc, executorDatabases, fakeSchemas{}, &fakeResolver{}, 2*time.Second)
}

func numberPage(id string, amount float64) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Amount": &notionapi.NumberProperty{Number: amount},
		},
	}
}

func TestExecuteQueryComposesFilter(t *testing.T) {
	svc := &stubNotion{queryPages: []notionapi.Page{numberPage("p1", 500)}}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindQuery,
		Database: domain.DatabaseExpenses,
		Filters: domain.AndFilter(
			domain.Leaf("Amount", domain.OpGreaterThan, 100.0),
			domain.Leaf("Date", domain.OpOnOrAfter, "2026-03-01"),
		),
	})

	require.True(t, result.Success, result.Message)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, float64(500), result.Rows[0]["Amount"])

	require.Len(t, svc.queryReqs, 1)
	compound, ok := svc.queryReqs[0].Filter.(notionapi.AndCompoundFilter)
	require.True(t, ok, "filter should compose to an AND compound")
	require.Len(t, compound, 2)

	amount, ok := compound[0].(notionapi.PropertyFilter)
	require.True(t, ok)
	assert.Equal(t, "Amount", amount.Property)
	require.NotNil(t, amount.Number)
	require.NotNil(t, amount.Number.GreaterThan)
	assert.Equal(t, float64(100), *amount.Number.GreaterThan)

	date, ok := compound[1].(notionapi.PropertyFilter)
	require.True(t, ok)
	assert.Equal(t, "Date", date.Property)
	require.NotNil(t, date.Date)
	assert.NotNil(t, date.Date.OnOrAfter)
}

func TestExecuteQueryBadFilterIsPermanent(t *testing.T) {
	svc := &stubNotion{}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindQuery,
		Database: domain.DatabaseExpenses,
		Filters:  domain.Leaf("Nonexistent", domain.OpEquals, "x"),
	})

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrKindPermanent, result.ErrKind)
	assert.Empty(t, svc.queryReqs, "a filter that cannot compose never reaches the store")
}

func TestExecuteAnalyzeAverageNoRows(t *testing.T) {
	svc := &stubNotion{}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindAnalyze,
		Database: domain.DatabaseExpenses,
		Analysis: domain.AnalysisAverage,
	})

	require.True(t, result.Success, result.Message)
	require.NotNil(t, result.Aggregate)
	assert.Equal(t, float64(0), result.Aggregate.Value, "average of nothing is 0, not a fault")
	assert.Equal(t, 0, result.Aggregate.Count)
}

func TestExecuteAnalyzeSum(t *testing.T) {
	svc := &stubNotion{queryPages: []notionapi.Page{
		numberPage("p1", 100),
		numberPage("p2", 250),
	}}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindAnalyze,
		Database: domain.DatabaseExpenses,
		Analysis: domain.AnalysisSum,
	})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, float64(350), result.Aggregate.Value)
}

func TestExecuteRetriesRateLimit(t *testing.T) {
	svc := &stubNotion{
		queryPages: []notionapi.Page{numberPage("p1", 500)},
		queryErrs:  []error{&notionapi.Error{Status: 429}},
	}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindQuery,
		Database: domain.DatabaseExpenses,
	})

	require.True(t, result.Success, result.Message)
	assert.Len(t, svc.queryReqs, 2, "the rate-limited attempt should be retried")
}

func TestExecuteDoesNotRetryClientError(t *testing.T) {
	svc := &stubNotion{
		queryErrs: []error{&notionapi.Error{Status: 404}},
	}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindQuery,
		Database: domain.DatabaseExpenses,
	})

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrKindPermanent, result.ErrKind)
	assert.Len(t, svc.queryReqs, 1, "a client error must not be retried")
}

func TestExecuteCreateSubstitutesRelations(t *testing.T) {
	svc := &stubNotion{}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindCreate,
		Database: domain.DatabaseExpenses,
		Data: map[string]any{
			"Name":       "Groceries",
			"Amount":     500.0,
			"Categories": "Food",
		},
	})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "page-new", result.PageID)

	require.Len(t, svc.created, 1)
	rel, ok := svc.created[0]["Categories"].(notionapi.RelationProperty)
	require.True(t, ok, "relation property should be built")
	require.Len(t, rel.Relation, 1)
	assert.Equal(t, notionapi.PageID("7f9c24e5-1111-2222-3333-444455556666"), rel.Relation[0].ID)
}

func TestExecuteCreateFindsExistingBeforeRetry(t *testing.T) {
	svc := &stubNotion{
		createErrs: []error{&notionapi.Error{Status: 502}},
		queryPages: []notionapi.Page{{ID: "page-existing"}},
	}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindCreate,
		Database: domain.DatabaseExpenses,
		Data:     map[string]any{"Name": "Netflix", "Amount": 15.0},
	})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "page-existing", result.PageID)
	assert.Equal(t, 1, svc.createCalls, "the first write landed; a second create would duplicate it")
	require.Len(t, svc.queryReqs, 1, "the retry checks by title first")
}

func TestExecuteCreateRetriesWhenNothingLanded(t *testing.T) {
	svc := &stubNotion{
		createErrs: []error{&notionapi.Error{Status: 502}},
	}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindCreate,
		Database: domain.DatabaseExpenses,
		Data:     map[string]any{"Name": "Netflix", "Amount": 15.0},
	})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "page-new", result.PageID)
	assert.Equal(t, 2, svc.createCalls, "nothing landed, so the create is re-issued")
}

func TestExecuteDelete(t *testing.T) {
	svc := &stubNotion{}
	e := newTestExecutor(svc)

	result := e.Execute(context.Background(), &domain.Intent{
		Kind:     domain.KindDelete,
		Database: domain.DatabaseExpenses,
		TargetID: "page-9",
	})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, []string{"page-9"}, svc.archived)
}
