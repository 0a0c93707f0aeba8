package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tanvirk/ledgerbot/internal/ai"
	"github.com/tanvirk/ledgerbot/internal/bot"
	"github.com/tanvirk/ledgerbot/internal/budget"
	"github.com/tanvirk/ledgerbot/internal/confirm"
	"github.com/tanvirk/ledgerbot/internal/config"
	"github.com/tanvirk/ledgerbot/internal/engine"
	"github.com/tanvirk/ledgerbot/internal/history"
	"github.com/tanvirk/ledgerbot/internal/logger"
	"github.com/tanvirk/ledgerbot/internal/notion"
	"github.com/tanvirk/ledgerbot/internal/relation"
	"github.com/tanvirk/ledgerbot/internal/schema"
	"github.com/tanvirk/ledgerbot/internal/sheets"
	"github.com/tanvirk/ledgerbot/internal/telegram"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Notion side: client, database map, schema cache, name resolver.
	notionClient := notion.NewClient(cfg.Notion.Token)
	dbs := notion.Databases(cfg.DatabaseIDs())
	if len(dbs) == 0 {
		log.Warn().Msg("No Notion database IDs configured - every operation will fail validation")
	}
	schemas := schema.NewCache(notionClient, dbs, cfg.Engine.SchemaTTL)
	resolver := relation.NewResolver(notionClient, dbs, cfg.Engine.SchemaTTL)

	// Stores: Postgres when a DSN is configured, in-memory otherwise.
	var confirmStore confirm.Store
	var turnStore history.Store
	if cfg.DB.DSN != "" {
		db, err := sql.Open("pgx", cfg.DB.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to reach database")
		}

		pgConfirm := confirm.NewPostgresStore(db)
		if err := pgConfirm.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare confirmation table")
		}
		pgHistory := history.NewPostgresStore(db, cfg.Engine.HistoryDepth)
		if err := pgHistory.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare history table")
		}
		confirmStore = pgConfirm
		turnStore = pgHistory
		log.Info().Msg("Using Postgres-backed stores")
	} else {
		confirmStore = confirm.NewMemoryStore()
		turnStore = history.NewMemoryStore(cfg.Engine.HistoryDepth)
		log.Warn().Msg("No DATABASE_URL configured - confirmations and history are in-memory")
	}

	planner, err := ai.NewGeminiPlanner(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create planner")
	}

	validator := engine.NewValidator(schemas, resolver)
	executor := engine.NewExecutor(notionClient, dbs, schemas, resolver, cfg.Engine.RetryMaxElapsed)
	batch := engine.NewBatchProcessor(validator, executor)
	confirmer := confirm.NewManager(confirmStore, cfg.Engine.ConfirmationExpiry)
	advisor := budget.NewAnalyzer(notionClient, dbs)

	opts := engine.Options{HistoryDepth: cfg.Engine.HistoryDepth}
	if cfg.Sheets.SpreadsheetID != "" {
		exporter, err := sheets.NewExporter(ctx, cfg.Sheets.SpreadsheetID)
		if err != nil {
			log.Warn().Err(err).Msg("Sheet mirroring disabled")
		} else {
			opts.Exporter = exporter
			log.Info().Str("spreadsheet_id", cfg.Sheets.SpreadsheetID).Msg("Sheet mirroring enabled")
		}
	}

	eng := engine.New(planner, batch, confirmer, turnStore, schemas, advisor, resolver, resolver, opts)

	sender := telegram.NewClient(cfg.Telegram.Token)
	handler := bot.NewWebhookHandler(eng, sender, cfg.Telegram.AllowedUserID, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting webhook server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
