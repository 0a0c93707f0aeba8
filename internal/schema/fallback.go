package schema

import "github.com/tanvirk/ledgerbot/internal/domain"

// fallbackSchemas are the static schemas used when a live fetch fails.
// They mirror the Notion workspace layout this bot is built for, so
// validation keeps working through Notion outages.
var fallbackSchemas = map[domain.Database]domain.Schema{
	domain.DatabaseExpenses: {
		"Name":       domain.PropertyTitle,
		"Amount":     domain.PropertyNumber,
		"Date":       domain.PropertyDate,
		"Accounts":   domain.PropertyRelation,
		"Categories": domain.PropertyRelation,
		"Year":       domain.PropertyFormula,
		"Monthly":    domain.PropertyFormula,
		"Weekly":     domain.PropertyFormula,
		"Misc":       domain.PropertyFormula,
	},
	domain.DatabaseIncome: {
		"Name":     domain.PropertyTitle,
		"Amount":   domain.PropertyNumber,
		"Date":     domain.PropertyDate,
		"Accounts": domain.PropertyRelation,
		"Misc":     domain.PropertyRichText,
	},
	domain.DatabaseCategories: {
		"Name":            domain.PropertyTitle,
		"Monthly Budget":  domain.PropertyNumber,
		"Monthly Expense": domain.PropertyFormula,
		"Status Bar":      domain.PropertyFormula,
		"Expenses":        domain.PropertyRelation,
		"Status":          domain.PropertyFormula,
	},
	domain.DatabaseAccounts: {
		"Name":               domain.PropertyTitle,
		"Current Balance":    domain.PropertyFormula,
		"Initial Amount":     domain.PropertyNumber,
		"Total Income":       domain.PropertyFormula,
		"Total Expense":      domain.PropertyFormula,
		"Account Type":       domain.PropertySelect,
		"Credit Limit":       domain.PropertyNumber,
		"Credit Utilization": domain.PropertyFormula,
		"Date":               domain.PropertyDate,
		"Payment Account":    domain.PropertyRelation,
	},
	domain.DatabaseSubscriptions: {
		"Name":         domain.PropertyTitle,
		"Type":         domain.PropertySelect,
		"Amount":       domain.PropertyNumber,
		"Monthly Cost": domain.PropertyFormula,
		"Account":      domain.PropertyRelation,
		"Category":     domain.PropertyRelation,
		"Checkbox":     domain.PropertyCheckbox,
	},
	domain.DatabasePayments: {
		"Name":    domain.PropertyTitle,
		"Amount":  domain.PropertyNumber,
		"Date":    domain.PropertyDate,
		"Account": domain.PropertyRelation,
		"Paid":    domain.PropertyCheckbox,
	},
	domain.DatabaseLoans: {
		"Name":      domain.PropertyTitle,
		"Principal": domain.PropertyNumber,
		"Remaining": domain.PropertyNumber,
		"Date":      domain.PropertyDate,
		"Account":   domain.PropertyRelation,
		"Closed":    domain.PropertyCheckbox,
	},
}

// Fallback returns the static schema for a logical database. Every known
// database has one; the empty schema is returned only for unknown names.
func Fallback(db domain.Database) domain.Schema {
	return fallbackSchemas[db]
}
