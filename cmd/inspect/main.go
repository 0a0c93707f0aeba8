// Command inspect prints what the bot can see in the configured Notion
// workspace: database schemas and the resolvable names per database.
// Useful when wiring up a new workspace or debugging resolution misses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/tanvirk/ledgerbot/internal/budget"
	"github.com/tanvirk/ledgerbot/internal/config"
	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/logger"
	"github.com/tanvirk/ledgerbot/internal/notion"
	"github.com/tanvirk/ledgerbot/internal/relation"
	"github.com/tanvirk/ledgerbot/internal/schema"
)

func main() {
	var (
		dbFlag    = flag.String("db", "", "limit output to one database (expenses, income, ...)")
		namesOnly = flag.Bool("names", false, "print only resolvable names, no schemas")
		summary   = flag.Bool("summary", false, "print this month's spending summary and exit")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()
	client := notion.NewClient(cfg.Notion.Token)
	dbs := notion.Databases(cfg.DatabaseIDs())
	schemas := schema.NewCache(client, dbs, cfg.Engine.SchemaTTL)
	resolver := relation.NewResolver(client, dbs, cfg.Engine.SchemaTTL)

	if *summary {
		printSummary(ctx, budget.NewAnalyzer(client, dbs))
		return
	}

	targets := domain.AllDatabases
	if *dbFlag != "" {
		db, ok := domain.ParseDatabase(*dbFlag)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown database %q\n", *dbFlag)
			os.Exit(1)
		}
		targets = []domain.Database{db}
	}

	for _, db := range targets {
		fmt.Printf("== %s", db)
		if !dbs.Known(db) {
			fmt.Println(" (no database ID configured)")
			continue
		}
		fmt.Println()

		if !*namesOnly {
			s, source := schemas.Get(ctx, db)
			fmt.Printf("  schema (%s):\n", source)
			props := s.PropertyNames()
			sort.Strings(props)
			for _, name := range props {
				t, _ := s.Type(name)
				fmt.Printf("    %-24s %s\n", name, t)
			}
		}

		names, err := resolver.Names(ctx, db)
		if err != nil {
			fmt.Printf("  names: listing failed: %v\n", err)
			continue
		}
		sort.Strings(names)
		fmt.Printf("  names (%d):\n", len(names))
		for _, name := range names {
			fmt.Printf("    %s\n", name)
		}
	}
}

func printSummary(ctx context.Context, analyzer *budget.Analyzer) {
	s, err := analyzer.Summary(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "summary failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("== %s\n", s.Month)
	fmt.Printf("  income    %s\n", s.TotalIncome)
	fmt.Printf("  spent     %s\n", s.TotalSpent)
	fmt.Printf("  remaining %s\n", s.Remaining)
	if !s.TotalBudget.IsZero() {
		fmt.Printf("  budget    %s\n", s.TotalBudget)
	}
	for _, cat := range s.Categories {
		if cat.Budget != nil {
			fmt.Printf("  %-24s %s of %s\n", cat.Name, cat.Spent, cat.Budget)
			continue
		}
		fmt.Printf("  %-24s %s\n", cat.Name, cat.Spent)
	}
}
