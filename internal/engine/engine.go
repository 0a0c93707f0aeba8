package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tanvirk/ledgerbot/internal/ai"
	"github.com/tanvirk/ledgerbot/internal/budget"
	"github.com/tanvirk/ledgerbot/internal/confirm"
	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/history"
	"github.com/tanvirk/ledgerbot/internal/logger"
	"github.com/tanvirk/ledgerbot/internal/notion"
	"github.com/tanvirk/ledgerbot/internal/relation"
)

// maxRowsInReply caps how many query rows are rendered into a chat
// message.
const maxRowsInReply = 5

// affirmations and negations are the short messages recognized as
// answers to a pending confirmation, checked after normalization.
var affirmations = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true,
	"confirm": true, "ok": true, "okay": true, "sure": true, "do it": true,
}

var negations = map[string]bool{
	"no": true, "n": true, "nope": true, "cancel": true,
	"stop": true, "dont": true, "don't": true, "nevermind": true, "never mind": true,
}

// Advisor produces the budget advisories attached to expense replies.
// Implemented by budget.Analyzer.
type Advisor interface {
	Impact(ctx context.Context, category string, amount decimal.Decimal) (before, after domain.BudgetSnapshot, err error)
	CheckDuplicate(ctx context.Context, db domain.Database, description string) (*budget.Duplicate, error)
	TickSubscription(ctx context.Context, name string) (bool, error)
}

// NameSource lists known names per database, for prompt context.
// Implemented by relation.Resolver.
type NameSource interface {
	Names(ctx context.Context, db domain.Database) ([]string, error)
}

// fallbackCategory absorbs expense categories that do not resolve, so a
// typo'd category never blocks logging the expense itself.
const fallbackCategory = "Others"

// ExpenseExporter mirrors created expenses to an external sheet.
// Implemented by sheets.Exporter; nil disables mirroring.
type ExpenseExporter interface {
	AppendExpense(ctx context.Context, date time.Time, description string, amount float64, category string) error
}

// Engine is the message-level orchestrator: it routes confirmations and
// cancellations, plans everything else, gates destructive work, and
// renders the outcome as a chat reply.
type Engine struct {
	planner      ai.Planner
	batch        *BatchProcessor
	confirmer    *confirm.Manager
	turns        history.Store
	schemas      SchemaProvider
	advisor      Advisor
	names        NameSource
	resolver     Resolver
	exporter     ExpenseExporter
	historyDepth int
	now          func() time.Time
}

// Options carries the optional Engine collaborators.
type Options struct {
	// Exporter mirrors expense creates to a sheet when set.
	Exporter ExpenseExporter
	// HistoryDepth overrides how many turns feed the planner.
	HistoryDepth int
}

// New creates the engine. The batch processor carries the validator, so
// everything executed here passes validation first.
func New(planner ai.Planner, batch *BatchProcessor, confirmer *confirm.Manager, turns history.Store, schemas SchemaProvider, advisor Advisor, names NameSource, resolver Resolver, opts Options) *Engine {
	depth := opts.HistoryDepth
	if depth <= 0 {
		depth = history.DefaultDepth
	}
	return &Engine{
		planner:      planner,
		batch:        batch,
		confirmer:    confirmer,
		turns:        turns,
		schemas:      schemas,
		advisor:      advisor,
		names:        names,
		resolver:     resolver,
		exporter:     opts.Exporter,
		historyDepth: depth,
		now:          time.Now,
	}
}

// HandleMessage processes one chat message end to end and returns the
// reply text.
func (g *Engine) HandleMessage(ctx context.Context, userID, text string) (string, error) {
	log := logger.FromContext(ctx)

	// Snapshot the history before recording this turn, so the prompt does
	// not repeat the new message.
	recent, err := g.turns.Recent(ctx, userID, g.historyDepth)
	if err != nil {
		log.Warn().Err(err).Msg("Loading conversation history failed")
	}

	if err := g.turns.Append(ctx, userID, history.Turn{Role: history.RoleUser, Text: text, At: g.now()}); err != nil {
		log.Warn().Err(err).Msg("Recording user turn failed")
	}

	var reply string
	switch normalized := normalizeAnswer(text); {
	case affirmations[normalized]:
		reply, err = g.handleConfirm(ctx, userID)
	case negations[normalized]:
		reply, err = g.handleCancel(ctx, userID)
	default:
		reply, err = g.handlePlan(ctx, userID, text, recent)
	}
	if err != nil {
		return "", err
	}

	if err := g.turns.Append(ctx, userID, history.Turn{Role: history.RoleAssistant, Text: reply, At: g.now()}); err != nil {
		log.Warn().Err(err).Msg("Recording assistant turn failed")
	}
	return reply, nil
}

func (g *Engine) handleConfirm(ctx context.Context, userID string) (string, error) {
	items, err := g.confirmer.ConfirmLatest(ctx, userID)
	switch {
	case errors.Is(err, confirm.ErrNotFound):
		return "There is nothing waiting for confirmation.", nil
	case errors.Is(err, confirm.ErrExpired):
		return "That confirmation has expired. Ask again if you still want it.", nil
	case errors.Is(err, confirm.ErrAlreadyResolved):
		return "That request was already handled.", nil
	case err != nil:
		return "", fmt.Errorf("engine.handleConfirm: %w", err)
	}

	report := g.batch.Process(ctx, items)
	return g.renderReport(ctx, items, report, ""), nil
}

func (g *Engine) handleCancel(ctx context.Context, userID string) (string, error) {
	err := g.confirmer.CancelLatest(ctx, userID)
	switch {
	case errors.Is(err, confirm.ErrNotFound):
		return "There is nothing to cancel.", nil
	case errors.Is(err, confirm.ErrAlreadyResolved):
		return "That request was already handled.", nil
	case err != nil:
		return "", fmt.Errorf("engine.handleCancel: %w", err)
	}
	return "Cancelled. Nothing was changed.", nil
}

func (g *Engine) handlePlan(ctx context.Context, userID, text string, recent []history.Turn) (string, error) {
	req := &ai.PlanRequest{
		Message: text,
		History: recent,
		Today:   g.now(),
	}
	// Known names are prompt garnish; a failed listing is not fatal.
	req.Categories, _ = g.names.Names(ctx, domain.DatabaseCategories)
	req.Accounts, _ = g.names.Names(ctx, domain.DatabaseAccounts)

	plan, err := g.planner.Plan(ctx, req)
	if err != nil {
		return "", fmt.Errorf("engine.handlePlan: %w", err)
	}

	if len(plan.Operations) == 0 {
		if plan.Reply != "" {
			return plan.Reply, nil
		}
		return "I did not find anything to do for that. Try rephrasing?", nil
	}

	g.applyCategoryFallback(ctx, plan.Operations)

	// The duplicate check is a precondition for recurring-looking creates,
	// so it runs before anything is stored or executed, on both paths.
	warning := g.duplicateWarning(ctx, plan.Operations)

	if g.confirmer.ClassifyBatch(plan.Operations) {
		return g.requestConfirmation(ctx, userID, plan, warning)
	}

	if warning != "" {
		if _, err := g.confirmer.Request(ctx, userID, plan.Operations); err != nil {
			return "", fmt.Errorf("engine.handlePlan: %w", err)
		}
		return warning + " Reply yes to add it anyway, or no to skip.", nil
	}

	report := g.batch.Process(ctx, plan.Operations)
	return g.renderReport(ctx, plan.Operations, report, plan.Reply), nil
}

// applyCategoryFallback rewrites unresolvable expense categories to the
// fallback category. Ambiguous names are left alone so validation can
// surface the candidates.
func (g *Engine) applyCategoryFallback(ctx context.Context, items []*domain.Intent) {
	for _, op := range items {
		if op.Kind != domain.KindCreate || op.Database != domain.DatabaseExpenses {
			continue
		}
		for _, prop := range []string{"Categories", "Category"} {
			name, ok := op.Data[prop].(string)
			if !ok || name == "" || IsPageID(name) {
				continue
			}
			_, err := g.resolver.Resolve(ctx, domain.DatabaseCategories, name)
			if err == nil {
				continue
			}
			var nf *relation.NotFoundError
			if errors.As(err, &nf) && len(nf.Candidates) == 0 {
				log := logger.FromContext(ctx)
				log.Info().
					Str("category", name).
					Msg("Unknown expense category, using fallback")
				op.Data[prop] = fallbackCategory
			}
		}
	}
}

func (g *Engine) requestConfirmation(ctx context.Context, userID string, plan *ai.Plan, warning string) (string, error) {
	if _, err := g.confirmer.Request(ctx, userID, plan.Operations); err != nil {
		return "", fmt.Errorf("engine.requestConfirmation: %w", err)
	}

	var b strings.Builder
	if plan.Reply != "" {
		b.WriteString(plan.Reply)
		b.WriteString("\n\n")
	}
	b.WriteString("This will change existing data:\n")
	for _, op := range plan.Operations {
		b.WriteString("- ")
		b.WriteString(op.Describe())
		if op.Rationale != "" {
			b.WriteString(" (")
			b.WriteString(op.Rationale)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	if warning != "" {
		b.WriteString(warning)
		b.WriteString("\n")
	}
	b.WriteString("Reply yes to confirm or no to cancel. This expires in 5 minutes.")
	return b.String(), nil
}

// duplicateWarning checks recurring-looking expense creates against this
// month's entries. A hit holds the batch behind a confirmation instead of
// silently double-charging.
func (g *Engine) duplicateWarning(ctx context.Context, items []*domain.Intent) string {
	for _, op := range items {
		if op.Kind != domain.KindCreate {
			continue
		}
		if op.Database != domain.DatabaseExpenses && op.Database != domain.DatabaseSubscriptions {
			continue
		}
		title := g.titleOf(ctx, op)
		if title == "" || !budget.IsRecurring(title) {
			continue
		}
		dup, err := g.advisor.CheckDuplicate(ctx, op.Database, title)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Duplicate check failed")
			continue
		}
		if dup == nil {
			continue
		}
		when := "this month"
		if !dup.Date.IsZero() {
			when = "on " + dup.Date.Format("2 January")
		}
		return fmt.Sprintf("%q looks like a duplicate: %q was already logged %s.",
			title, dup.Title, when)
	}
	return ""
}

// renderReport turns a batch report into the reply text, appending budget
// advisories for expense creates and firing the side effects (subscription
// tick, sheet mirror) that ride along with them.
func (g *Engine) renderReport(ctx context.Context, items []*domain.Intent, report *domain.BatchReport, lead string) string {
	var b strings.Builder
	if lead != "" {
		b.WriteString(lead)
	}

	for _, item := range report.Succeeded {
		line := g.renderSuccess(items[item.Index], item.Result)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
	}
	for _, failure := range report.Failed {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("Could not %s: %s", items[failure.Index].Describe(), failure.Reason))
	}

	for _, item := range report.Succeeded {
		op := items[item.Index]
		if op.Kind != domain.KindCreate || op.Database != domain.DatabaseExpenses {
			continue
		}
		if advisory := g.expenseAdvisory(ctx, op); advisory != "" {
			b.WriteString("\n")
			b.WriteString(advisory)
		}
		g.expenseSideEffects(ctx, op)
	}

	if b.Len() == 0 {
		return "Done."
	}
	return b.String()
}

func (g *Engine) renderSuccess(op *domain.Intent, result *domain.ExecutionResult) string {
	switch op.Kind {
	case domain.KindQuery:
		return renderRows(result.Rows)
	case domain.KindAnalyze:
		if result.Aggregate != nil {
			return fmt.Sprintf("%s: %s", op.Describe(), renderAggregate(result.Aggregate))
		}
		return result.Message
	default:
		return fmt.Sprintf("Done: %s.", op.Describe())
	}
}

// expenseAdvisory grades the category budget around a just-created
// expense. The expense is already stored, so the before snapshot excludes
// it by subtracting the amount back out of the impact call.
func (g *Engine) expenseAdvisory(ctx context.Context, op *domain.Intent) string {
	category := g.relationName(op, "Categories", "Category")
	_, ok := notion.AsNumber(op.Data["Amount"])
	if category == "" || !ok {
		return ""
	}

	// The stored spend already includes this expense; a zero-amount impact
	// reads the current state.
	_, after, err := g.advisor.Impact(ctx, category, decimal.Zero)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("category", category).Msg("Budget advisory failed")
		return ""
	}

	switch after.Status {
	case domain.BudgetStatusOver:
		return fmt.Sprintf("Heads up: %s is over budget. Spent %s of %s (%s%%).",
			category, after.Spent, after.Budget, after.PercentUsed)
	case domain.BudgetStatusClose:
		return fmt.Sprintf("%s is close to its limit: %s of %s used (%s%%).",
			category, after.Spent, after.Budget, after.PercentUsed)
	case domain.BudgetStatusApproaching:
		return fmt.Sprintf("%s is approaching its limit: %s of %s used (%s%%).",
			category, after.Spent, after.Budget, after.PercentUsed)
	case domain.BudgetStatusSafe:
		return fmt.Sprintf("%s: %s of %s used, %s remaining.",
			category, after.Spent, after.Budget, after.Remaining)
	}
	return ""
}

// expenseSideEffects runs the best-effort extras for a created expense:
// ticking the matching subscription and mirroring the row to the sheet.
// Failures are logged, never surfaced; the expense itself already landed.
func (g *Engine) expenseSideEffects(ctx context.Context, op *domain.Intent) {
	log := logger.FromContext(ctx)
	title := g.titleOf(ctx, op)

	if title != "" && budget.IsRecurring(title) {
		if _, err := g.advisor.TickSubscription(ctx, title); err != nil {
			log.Warn().Err(err).Str("title", title).Msg("Subscription tick failed")
		}
	}

	if g.exporter == nil {
		return
	}
	amount, ok := notion.AsNumber(op.Data["Amount"])
	if !ok {
		return
	}
	date := g.now()
	if s, ok := op.Data["Date"].(string); ok {
		if parsed, err := notion.ParseDate(s); err == nil {
			date = parsed
		}
	}
	category := g.relationName(op, "Categories", "Category")
	if err := g.exporter.AppendExpense(ctx, date, title, amount, category); err != nil {
		log.Warn().Err(err).Str("title", title).Msg("Sheet mirror failed")
	}
}

// titleOf reads the intent's title value using the database's schema.
func (g *Engine) titleOf(ctx context.Context, op *domain.Intent) string {
	s, _ := g.schemas.Get(ctx, op.Database)
	title := s.TitleProperty()
	if title == "" {
		return ""
	}
	v, ok := op.Data[title].(string)
	if !ok {
		return ""
	}
	return v
}

// relationName reads the first human-readable name among the given
// relation properties. Page IDs are skipped; an advisory keyed on a raw
// UUID helps nobody.
func (g *Engine) relationName(op *domain.Intent, properties ...string) string {
	for _, prop := range properties {
		for _, name := range relationNames(op.Data[prop]) {
			if !IsPageID(name) {
				return name
			}
		}
	}
	return ""
}

func renderRows(rows []domain.Row) string {
	if len(rows) == 0 {
		return "No matching entries."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Found %d entries:", len(rows)))
	for i, row := range rows {
		if i == maxRowsInReply {
			b.WriteString(fmt.Sprintf("\n… and %d more.", len(rows)-maxRowsInReply))
			break
		}
		b.WriteString("\n- ")
		b.WriteString(renderRow(row))
	}
	return b.String()
}

func renderRow(row domain.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		if k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, row[k]))
	}
	return strings.Join(parts, ", ")
}

func renderAggregate(agg *domain.Aggregate) string {
	switch agg.Kind {
	case domain.AnalysisCount:
		return fmt.Sprintf("%d entries", agg.Count)
	default:
		return fmt.Sprintf("%s is %g over %d entries", agg.Kind, agg.Value, agg.Count)
	}
}

// normalizeAnswer reduces a short reply to its comparable form.
func normalizeAnswer(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(s, ".!?, ")
}
