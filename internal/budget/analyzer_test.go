package budget

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/notion"
)

type stubService struct {
	notion.Service

	pages   map[string][]notionapi.Page
	updates map[string]notionapi.Properties
}

func newStubService() *stubService {
	return &stubService{
		pages:   make(map[string][]notionapi.Page),
		updates: make(map[string]notionapi.Properties),
	}
}

func (s *stubService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{Results: s.pages[databaseID]}, nil
}

func (s *stubService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	s.updates[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

var testDatabases = notion.Databases{
	domain.DatabaseExpenses:      "db-expenses",
	domain.DatabaseIncome:        "db-income",
	domain.DatabaseCategories:    "db-categories",
	domain.DatabaseSubscriptions: "db-subscriptions",
}

func titled(id, title string, extra notionapi.Properties) notionapi.Page {
	props := notionapi.Properties{
		"Name": &notionapi.TitleProperty{
			Title: []notionapi.RichText{{PlainText: title}},
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func dated(t time.Time) notionapi.Property {
	d := notionapi.Date(t)
	return &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

func testAnalyzer(svc *stubService) *Analyzer {
	a := NewAnalyzer(svc, testDatabases)
	a.now = func() time.Time {
		return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return a
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC))
	if got := start.Format("2006-01-02"); got != "2026-02-01" {
		t.Errorf("start = %s, want 2026-02-01", got)
	}
	if got := end.Format("2006-01-02"); got != "2026-02-28" {
		t.Errorf("end = %s, want 2026-02-28", got)
	}
}

func TestIsRecurring(t *testing.T) {
	tests := []struct {
		description string
		want        bool
	}{
		{"Netflix", true},
		{"netflix subscription", true},
		{"Monthly rent", true},
		{"Gym membership", true},
		{"Lunch at cafe", false},
		{"Groceries", false},
	}

	for _, tt := range tests {
		if got := IsRecurring(tt.description); got != tt.want {
			t.Errorf("IsRecurring(%q) = %v, want %v", tt.description, got, tt.want)
		}
	}
}

func TestImpact(t *testing.T) {
	svc := newStubService()
	svc.pages["db-categories"] = []notionapi.Page{
		titled("cat-food", "Food", notionapi.Properties{
			"Monthly Budget": &notionapi.NumberProperty{Number: 5000},
		}),
	}
	svc.pages["db-expenses"] = []notionapi.Page{
		titled("exp-1", "Groceries", notionapi.Properties{
			"Amount": &notionapi.NumberProperty{Number: 1000},
		}),
		titled("exp-2", "Lunch", notionapi.Properties{
			"Amount": &notionapi.NumberProperty{Number: 500},
		}),
	}

	before, after, err := testAnalyzer(svc).Impact(context.Background(), "Food", decimal.NewFromInt(5000))
	if err != nil {
		t.Fatalf("Impact returned error: %v", err)
	}

	if !before.Spent.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("before.Spent = %s, want 1500", before.Spent)
	}
	if before.Status != domain.BudgetStatusSafe {
		t.Errorf("before.Status = %s, want %s", before.Status, domain.BudgetStatusSafe)
	}

	if !after.Spent.Equal(decimal.NewFromInt(6500)) {
		t.Errorf("after.Spent = %s, want 6500", after.Spent)
	}
	if !after.Remaining.Equal(decimal.NewFromInt(-1500)) {
		t.Errorf("after.Remaining = %s, want -1500", after.Remaining)
	}
	if !after.PercentUsed.Equal(decimal.NewFromInt(130)) {
		t.Errorf("after.PercentUsed = %s, want 130", after.PercentUsed)
	}
	if after.Status != domain.BudgetStatusOver {
		t.Errorf("after.Status = %s, want %s", after.Status, domain.BudgetStatusOver)
	}
}

func TestImpactNoBudget(t *testing.T) {
	svc := newStubService()
	svc.pages["db-categories"] = []notionapi.Page{
		titled("cat-misc", "Misc", nil),
	}

	before, after, err := testAnalyzer(svc).Impact(context.Background(), "Misc", decimal.NewFromInt(200))
	if err != nil {
		t.Fatalf("Impact returned error: %v", err)
	}
	if before.Status != domain.BudgetStatusNoBudget || after.Status != domain.BudgetStatusNoBudget {
		t.Errorf("statuses = %s/%s, want no_budget for both", before.Status, after.Status)
	}
	if before.Budget != nil {
		t.Errorf("before.Budget = %v, want nil", before.Budget)
	}
}

func TestImpactUnknownCategory(t *testing.T) {
	svc := newStubService()
	if _, _, err := testAnalyzer(svc).Impact(context.Background(), "Travel", decimal.NewFromInt(100)); err == nil {
		t.Fatal("Impact for unknown category returned nil error")
	}
}

func TestCheckDuplicate(t *testing.T) {
	svc := newStubService()
	svc.pages["db-expenses"] = []notionapi.Page{
		titled("exp-1", "Netflix Subscription", notionapi.Properties{
			"Date": dated(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)),
		}),
		titled("exp-2", "Groceries", notionapi.Properties{
			"Date": dated(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)),
		}),
	}
	a := testAnalyzer(svc)

	// Shorter new description matches the longer stored title.
	dup, err := a.CheckDuplicate(context.Background(), domain.DatabaseExpenses, "netflix")
	if err != nil {
		t.Fatalf("CheckDuplicate returned error: %v", err)
	}
	if dup == nil {
		t.Fatal("CheckDuplicate returned nil, want a match")
	}
	if dup.Title != "Netflix Subscription" {
		t.Errorf("dup.Title = %q, want %q", dup.Title, "Netflix Subscription")
	}
	if got := dup.Date.Format("2006-01-02"); got != "2026-03-03" {
		t.Errorf("dup.Date = %s, want 2026-03-03", got)
	}

	// Longer new description matches the shorter stored title too.
	dup, err = a.CheckDuplicate(context.Background(), domain.DatabaseExpenses, "groceries from the corner store")
	if err != nil {
		t.Fatalf("CheckDuplicate returned error: %v", err)
	}
	if dup == nil || dup.Title != "Groceries" {
		t.Fatalf("CheckDuplicate = %+v, want Groceries match", dup)
	}

	// No overlap, no match.
	dup, err = a.CheckDuplicate(context.Background(), domain.DatabaseExpenses, "fuel")
	if err != nil {
		t.Fatalf("CheckDuplicate returned error: %v", err)
	}
	if dup != nil {
		t.Errorf("CheckDuplicate = %+v, want nil", dup)
	}
}

func TestTickSubscription(t *testing.T) {
	svc := newStubService()
	svc.pages["db-subscriptions"] = []notionapi.Page{
		titled("sub-1", "Netflix", nil),
		titled("sub-2", "Spotify", nil),
	}

	ticked, err := testAnalyzer(svc).TickSubscription(context.Background(), "netflix subscription")
	if err != nil {
		t.Fatalf("TickSubscription returned error: %v", err)
	}
	if !ticked {
		t.Fatal("TickSubscription = false, want true")
	}

	props, ok := svc.updates["sub-1"]
	if !ok {
		t.Fatal("expected an update on sub-1")
	}
	cb, ok := props["Checkbox"].(notionapi.CheckboxProperty)
	if !ok || !cb.Checkbox {
		t.Errorf("update properties = %+v, want Checkbox true", props)
	}
}

func TestTickSubscriptionNoMatch(t *testing.T) {
	svc := newStubService()
	svc.pages["db-subscriptions"] = []notionapi.Page{
		titled("sub-1", "Netflix", nil),
	}

	ticked, err := testAnalyzer(svc).TickSubscription(context.Background(), "electricity")
	if err != nil {
		t.Fatalf("TickSubscription returned error: %v", err)
	}
	if ticked {
		t.Error("TickSubscription = true, want false")
	}
	if len(svc.updates) != 0 {
		t.Errorf("updates = %v, want none", svc.updates)
	}
}

func TestSummary(t *testing.T) {
	svc := newStubService()
	svc.pages["db-categories"] = []notionapi.Page{
		titled("cat-food", "Food", notionapi.Properties{
			"Monthly Budget": &notionapi.NumberProperty{Number: 5000},
		}),
		titled("cat-transport", "Transport", notionapi.Properties{
			"Monthly Budget": &notionapi.NumberProperty{Number: 2000},
		}),
	}
	svc.pages["db-expenses"] = []notionapi.Page{
		titled("exp-1", "Groceries", notionapi.Properties{
			"Amount": &notionapi.NumberProperty{Number: 1200},
			"Categories": &notionapi.RelationProperty{
				Relation: []notionapi.Relation{{ID: "cat-food"}},
			},
		}),
		titled("exp-2", "Bus pass", notionapi.Properties{
			"Amount": &notionapi.NumberProperty{Number: 300},
			"Categories": &notionapi.RelationProperty{
				Relation: []notionapi.Relation{{ID: "cat-transport"}},
			},
		}),
	}
	svc.pages["db-income"] = []notionapi.Page{
		titled("inc-1", "Salary", notionapi.Properties{
			"Amount": &notionapi.NumberProperty{Number: 10000},
		}),
	}

	summary, err := testAnalyzer(svc).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}

	if summary.Month != "March 2026" {
		t.Errorf("Month = %q, want %q", summary.Month, "March 2026")
	}
	if !summary.TotalSpent.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("TotalSpent = %s, want 1500", summary.TotalSpent)
	}
	if !summary.TotalIncome.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("TotalIncome = %s, want 10000", summary.TotalIncome)
	}
	if !summary.Remaining.Equal(decimal.NewFromInt(8500)) {
		t.Errorf("Remaining = %s, want 8500", summary.Remaining)
	}
	if !summary.TotalBudget.Equal(decimal.NewFromInt(7000)) {
		t.Errorf("TotalBudget = %s, want 7000", summary.TotalBudget)
	}
	if len(summary.Categories) != 2 {
		t.Fatalf("Categories count = %d, want 2", len(summary.Categories))
	}

	byName := make(map[string]domain.CategorySpend)
	for _, c := range summary.Categories {
		byName[c.Name] = c
	}
	if !byName["Food"].Spent.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("Food spent = %s, want 1200", byName["Food"].Spent)
	}
	if !byName["Transport"].Spent.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Transport spent = %s, want 300", byName["Transport"].Spent)
	}
}
