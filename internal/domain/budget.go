package domain

import "github.com/shopspring/decimal"

// BudgetStatus grades how much of a category budget is consumed. Thresholds
// match the advisory levels surfaced to the user: approaching at 75%, close
// at 90%, over past 100%.
type BudgetStatus string

const (
	BudgetStatusSafe        BudgetStatus = "safe"
	BudgetStatusApproaching BudgetStatus = "approaching_limit"
	BudgetStatusClose       BudgetStatus = "close_to_limit"
	BudgetStatusOver        BudgetStatus = "over_budget"
	BudgetStatusNoBudget    BudgetStatus = "no_budget"
)

// BudgetSnapshot is the spend-vs-budget view of one category over the
// current calendar month. Budget is nil when the category has no configured
// budget; Remaining and PercentUsed are zero in that case.
type BudgetSnapshot struct {
	Category    string           `json:"category"`
	Spent       decimal.Decimal  `json:"spent"`
	Budget      *decimal.Decimal `json:"budget,omitempty"`
	Remaining   decimal.Decimal  `json:"remaining"`
	PercentUsed decimal.Decimal  `json:"percent_used"`
	Status      BudgetStatus     `json:"status"`
}

// Grade computes the status for a snapshot that has a budget.
func Grade(spent, budget decimal.Decimal) BudgetStatus {
	if budget.IsZero() {
		return BudgetStatusNoBudget
	}
	percent := spent.Div(budget).Mul(decimal.NewFromInt(100))
	switch {
	case spent.GreaterThan(budget):
		return BudgetStatusOver
	case percent.GreaterThanOrEqual(decimal.NewFromInt(90)):
		return BudgetStatusClose
	case percent.GreaterThanOrEqual(decimal.NewFromInt(75)):
		return BudgetStatusApproaching
	default:
		return BudgetStatusSafe
	}
}

// CategorySpend is one line of the monthly summary.
type CategorySpend struct {
	Name   string           `json:"name"`
	Spent  decimal.Decimal  `json:"spent"`
	Budget *decimal.Decimal `json:"budget,omitempty"`
}

// MonthlySummary aggregates the current month across all categories.
type MonthlySummary struct {
	Month       string          `json:"month"`
	TotalIncome decimal.Decimal `json:"total_income"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	Categories  []CategorySpend `json:"categories"`
}
