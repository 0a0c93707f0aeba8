// Package budget computes spend-vs-budget advisories for the current
// calendar month: impact previews before an expense lands, duplicate
// detection for recurring charges, and the monthly summary.
package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/notion"
)

// budgetProperties are the category property names tried, in order, when
// looking for a configured monthly budget.
var budgetProperties = []string{"Budget", "Monthly Budget", "Limit", "Monthly Cost"}

// recurringKeywords mark an expense description as likely recurring.
var recurringKeywords = []string{
	"subscription", "netflix", "spotify", "youtube", "prime",
	"monthly", "recurring", "rent", "membership", "gym",
	"insurance", "internet", "utility", "phone bill", "icloud",
}

const (
	dateProperty     = "Date"
	amountProperty   = "Amount"
	categoryRelation = "Categories"
	tickProperty     = "Checkbox"
)

// Duplicate describes an existing entry that looks like the one about to
// be created.
type Duplicate struct {
	Title string
	Date  time.Time
}

// Analyzer reads spend data from the remote store and grades it against
// category budgets.
type Analyzer struct {
	svc notion.Service
	dbs notion.Databases
	now func() time.Time
}

// NewAnalyzer creates an analyzer over the given Notion service.
func NewAnalyzer(svc notion.Service, dbs notion.Databases) *Analyzer {
	return &Analyzer{svc: svc, dbs: dbs, now: time.Now}
}

// MonthBounds returns the first and last day of t's calendar month.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, -1)
	return start, end
}

// IsRecurring reports whether the description looks like a recurring
// charge, by keyword.
func IsRecurring(description string) bool {
	lower := strings.ToLower(description)
	for _, kw := range recurringKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Snapshot reads the category's current-month spend and budget.
func (a *Analyzer) Snapshot(ctx context.Context, category string) (domain.BudgetSnapshot, error) {
	snap := domain.BudgetSnapshot{Category: category, Status: domain.BudgetStatusNoBudget}

	page, err := a.categoryPage(ctx, category)
	if err != nil {
		return snap, fmt.Errorf("budget.Snapshot: %w", err)
	}

	spent, err := a.monthlySpent(ctx, string(page.ID))
	if err != nil {
		return snap, fmt.Errorf("budget.Snapshot: %w", err)
	}
	snap.Spent = spent

	budget, ok := categoryBudget(page)
	if !ok {
		return snap, nil
	}
	snap.Budget = &budget
	snap.Remaining = budget.Sub(spent)
	if !budget.IsZero() {
		snap.PercentUsed = spent.Div(budget).Mul(decimal.NewFromInt(100)).Round(1)
	}
	snap.Status = domain.Grade(spent, budget)
	return snap, nil
}

// Impact previews how an expense of the given amount would move the
// category's budget, returning the snapshot before and after.
func (a *Analyzer) Impact(ctx context.Context, category string, amount decimal.Decimal) (before, after domain.BudgetSnapshot, err error) {
	before, err = a.Snapshot(ctx, category)
	if err != nil {
		return before, after, err
	}

	after = before
	after.Spent = before.Spent.Add(amount)
	if before.Budget != nil {
		budget := *before.Budget
		after.Remaining = budget.Sub(after.Spent)
		if !budget.IsZero() {
			after.PercentUsed = after.Spent.Div(budget).Mul(decimal.NewFromInt(100)).Round(1)
		}
		after.Status = domain.Grade(after.Spent, budget)
	}
	return before, after, nil
}

// CheckDuplicate looks for an entry in the database this month whose
// title matches the description in either direction: an existing
// "Netflix subscription" flags a new "Netflix", and vice versa. Returns
// nil when nothing matches.
func (a *Analyzer) CheckDuplicate(ctx context.Context, db domain.Database, description string) (*Duplicate, error) {
	id, err := a.dbs.ID(db)
	if err != nil {
		return nil, fmt.Errorf("budget.CheckDuplicate: %w", err)
	}

	pages, err := notion.QueryAllPages(ctx, a.svc, id, a.monthFilter())
	if err != nil {
		return nil, fmt.Errorf("budget.CheckDuplicate: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(description))
	if needle == "" {
		return nil, nil
	}

	var found *Duplicate
	for _, page := range pages {
		title := notion.ExtractTitle(page)
		lower := strings.ToLower(title)
		if lower == "" {
			continue
		}
		if !strings.Contains(lower, needle) && !strings.Contains(needle, lower) {
			continue
		}
		date, _ := notion.ExtractDate(page, dateProperty)
		if found == nil || date.After(found.Date) {
			found = &Duplicate{Title: title, Date: date}
		}
	}
	return found, nil
}

// Summary aggregates the current month: total income, total spend, and
// per-category spend against budget.
func (a *Analyzer) Summary(ctx context.Context) (*domain.MonthlySummary, error) {
	start, _ := MonthBounds(a.now())
	summary := &domain.MonthlySummary{Month: start.Format("January 2006")}

	categories, err := a.categoryPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("budget.Summary: %w", err)
	}

	names := make(map[string]string, len(categories))
	budgets := make(map[string]*decimal.Decimal, len(categories))
	for _, page := range categories {
		id := string(page.ID)
		names[id] = notion.ExtractTitle(page)
		if b, ok := categoryBudget(page); ok {
			budgets[id] = &b
			summary.TotalBudget = summary.TotalBudget.Add(b)
		}
	}

	expensesID, err := a.dbs.ID(domain.DatabaseExpenses)
	if err != nil {
		return nil, fmt.Errorf("budget.Summary: %w", err)
	}
	expenses, err := notion.QueryAllPages(ctx, a.svc, expensesID, a.monthFilter())
	if err != nil {
		return nil, fmt.Errorf("budget.Summary: %w", err)
	}

	spentByCategory := make(map[string]decimal.Decimal)
	for _, page := range expenses {
		amount, ok := notion.ExtractNumber(page, amountProperty)
		if !ok {
			continue
		}
		d := decimal.NewFromFloat(amount)
		summary.TotalSpent = summary.TotalSpent.Add(d)
		for _, catID := range relationTargets(page, categoryRelation) {
			spentByCategory[catID] = spentByCategory[catID].Add(d)
		}
	}

	for _, page := range categories {
		id := string(page.ID)
		summary.Categories = append(summary.Categories, domain.CategorySpend{
			Name:   names[id],
			Spent:  spentByCategory[id],
			Budget: budgets[id],
		})
	}

	if incomeID, err := a.dbs.ID(domain.DatabaseIncome); err == nil {
		income, err := notion.QueryAllPages(ctx, a.svc, incomeID, a.monthFilter())
		if err != nil {
			return nil, fmt.Errorf("budget.Summary: %w", err)
		}
		for _, page := range income {
			if amount, ok := notion.ExtractNumber(page, amountProperty); ok {
				summary.TotalIncome = summary.TotalIncome.Add(decimal.NewFromFloat(amount))
			}
		}
	}

	summary.Remaining = summary.TotalIncome.Sub(summary.TotalSpent)
	return summary, nil
}

// TickSubscription marks the subscription whose name matches as paid for
// the month by setting its checkbox. A miss is not an error; the expense
// already landed and the tick is an extra.
func (a *Analyzer) TickSubscription(ctx context.Context, name string) (bool, error) {
	id, err := a.dbs.ID(domain.DatabaseSubscriptions)
	if err != nil {
		return false, nil
	}

	pages, err := notion.QueryAllPages(ctx, a.svc, id, nil)
	if err != nil {
		return false, fmt.Errorf("budget.TickSubscription: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	for _, page := range pages {
		title := strings.ToLower(notion.ExtractTitle(page))
		if title == "" {
			continue
		}
		if !strings.Contains(title, needle) && !strings.Contains(needle, title) {
			continue
		}
		_, err := a.svc.UpdatePage(ctx, string(page.ID), notionapi.Properties{
			tickProperty: notionapi.CheckboxProperty{Checkbox: true},
		})
		if err != nil {
			return false, fmt.Errorf("budget.TickSubscription: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (a *Analyzer) monthFilter() notionapi.Filter {
	start, end := MonthBounds(a.now())
	after := notionapi.Date(start)
	before := notionapi.Date(end)
	return notionapi.AndCompoundFilter{
		notionapi.PropertyFilter{
			Property: dateProperty,
			Date:     &notionapi.DateFilterCondition{OnOrAfter: &after},
		},
		notionapi.PropertyFilter{
			Property: dateProperty,
			Date:     &notionapi.DateFilterCondition{OnOrBefore: &before},
		},
	}
}

func (a *Analyzer) categoryPages(ctx context.Context) ([]notionapi.Page, error) {
	id, err := a.dbs.ID(domain.DatabaseCategories)
	if err != nil {
		return nil, err
	}
	return notion.QueryAllPages(ctx, a.svc, id, nil)
}

func (a *Analyzer) categoryPage(ctx context.Context, category string) (notionapi.Page, error) {
	pages, err := a.categoryPages(ctx)
	if err != nil {
		return notionapi.Page{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(category))
	for _, page := range pages {
		if strings.ToLower(notion.ExtractTitle(page)) == needle {
			return page, nil
		}
	}
	return notionapi.Page{}, fmt.Errorf("category %q not found", category)
}

// categoryBudget tries the known budget property names on a category
// page.
func categoryBudget(page notionapi.Page) (decimal.Decimal, bool) {
	for _, prop := range budgetProperties {
		if n, ok := notion.ExtractNumber(page, prop); ok {
			return decimal.NewFromFloat(n), true
		}
	}
	return decimal.Decimal{}, false
}

// monthlySpent sums this month's expense amounts related to the category
// page.
func (a *Analyzer) monthlySpent(ctx context.Context, categoryPageID string) (decimal.Decimal, error) {
	id, err := a.dbs.ID(domain.DatabaseExpenses)
	if err != nil {
		return decimal.Decimal{}, err
	}

	filter := append(a.monthFilter().(notionapi.AndCompoundFilter), notionapi.PropertyFilter{
		Property: categoryRelation,
		Relation: &notionapi.RelationFilterCondition{Contains: categoryPageID},
	})

	pages, err := notion.QueryAllPages(ctx, a.svc, id, filter)
	if err != nil {
		return decimal.Decimal{}, err
	}

	total := decimal.Decimal{}
	for _, page := range pages {
		if amount, ok := notion.ExtractNumber(page, amountProperty); ok {
			total = total.Add(decimal.NewFromFloat(amount))
		}
	}
	return total, nil
}

func relationTargets(page notionapi.Page, property string) []string {
	prop, ok := page.Properties[property]
	if !ok {
		return nil
	}
	rel, ok := prop.(*notionapi.RelationProperty)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(rel.Relation))
	for _, r := range rel.Relation {
		ids = append(ids, string(r.ID))
	}
	return ids
}
