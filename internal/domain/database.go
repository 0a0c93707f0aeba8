package domain

import "strings"

// Database identifies one of the fixed logical databases in the Notion
// workspace. The remote database IDs behind these names come from config.
type Database string

const (
	DatabaseExpenses      Database = "expenses"
	DatabaseIncome        Database = "income"
	DatabaseCategories    Database = "categories"
	DatabaseAccounts      Database = "accounts"
	DatabaseSubscriptions Database = "subscriptions"
	DatabasePayments      Database = "payments"
	DatabaseLoans         Database = "loans"
)

// AllDatabases lists every logical database the engine knows about.
var AllDatabases = []Database{
	DatabaseExpenses,
	DatabaseIncome,
	DatabaseCategories,
	DatabaseAccounts,
	DatabaseSubscriptions,
	DatabasePayments,
	DatabaseLoans,
}

// ParseDatabase maps a free-form database name to a logical database.
// Matching is case-insensitive; returns false for unknown names.
func ParseDatabase(s string) (Database, bool) {
	db := Database(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllDatabases {
		if db == known {
			return known, true
		}
	}
	return "", false
}

// IsKnown reports whether db is one of the fixed logical databases.
func (d Database) IsKnown() bool {
	_, ok := ParseDatabase(string(d))
	return ok
}
