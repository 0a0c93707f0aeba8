package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/tanvirk/ledgerbot/internal/domain"
)

// Config holds everything the bot needs at startup. Values come from the
// environment; a local .env file is loaded first when present.
type Config struct {
	Notion struct {
		Token           string `envconfig:"NOTION_TOKEN" required:"true"`
		ExpensesID      string `envconfig:"NOTION_EXPENSES_DB_ID"`
		IncomeID        string `envconfig:"NOTION_INCOME_DB_ID"`
		CategoriesID    string `envconfig:"NOTION_CATEGORIES_DB_ID"`
		AccountsID      string `envconfig:"NOTION_ACCOUNTS_DB_ID"`
		SubscriptionsID string `envconfig:"NOTION_SUBSCRIPTIONS_DB_ID"`
		PaymentsID      string `envconfig:"NOTION_PAYMENTS_DB_ID"`
		LoansID         string `envconfig:"NOTION_LOANS_DB_ID"`
	}

	Telegram struct {
		Token         string `envconfig:"TELEGRAM_BOT_TOKEN"`
		AllowedUserID int64  `envconfig:"ALLOWED_USER_ID"`
	}

	Gemini struct {
		APIKey string `envconfig:"GEMINI_API_KEY"`
		Model  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	}

	DB struct {
		// DSN is the Postgres connection string for pending confirmations
		// and conversation history. Empty DSN selects the in-memory stores.
		DSN string `envconfig:"DATABASE_URL"`
	}

	Sheets struct {
		// SpreadsheetID enables mirroring created expenses to a Google
		// Sheet when set.
		SpreadsheetID string `envconfig:"SHEETS_SPREADSHEET_ID"`
	}

	Engine struct {
		SchemaTTL          time.Duration `envconfig:"SCHEMA_CACHE_TTL" default:"1h"`
		ConfirmationExpiry time.Duration `envconfig:"CONFIRMATION_EXPIRY" default:"5m"`
		RetryMaxElapsed    time.Duration `envconfig:"RETRY_MAX_ELAPSED" default:"30s"`
		HistoryDepth       int           `envconfig:"HISTORY_DEPTH" default:"10"`
	}

	Server struct {
		Port            int           `envconfig:"PORT" default:"8080"`
		ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	}
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// DatabaseIDs maps each configured logical database to its Notion database
// ID. Databases without a configured ID are omitted; the engine reports
// them as unknown rather than failing at startup.
func (c *Config) DatabaseIDs() map[domain.Database]string {
	ids := map[domain.Database]string{
		domain.DatabaseExpenses:      c.Notion.ExpensesID,
		domain.DatabaseIncome:        c.Notion.IncomeID,
		domain.DatabaseCategories:    c.Notion.CategoriesID,
		domain.DatabaseAccounts:      c.Notion.AccountsID,
		domain.DatabaseSubscriptions: c.Notion.SubscriptionsID,
		domain.DatabasePayments:      c.Notion.PaymentsID,
		domain.DatabaseLoans:         c.Notion.LoansID,
	}
	for db, id := range ids {
		if id == "" {
			delete(ids, db)
		}
	}
	return ids
}
