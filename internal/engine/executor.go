package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jomei/notionapi"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/logger"
	"github.com/tanvirk/ledgerbot/internal/notion"
	"github.com/tanvirk/ledgerbot/internal/relation"
)

// DefaultRetryElapsed caps how long one operation may spend retrying
// transient store failures.
const DefaultRetryElapsed = 30 * time.Second

// Executor performs validated operations against the remote store. All
// calls go through one shared notion.Service, so repeated operations reuse
// a single session.
type Executor struct {
	svc        notion.Service
	dbs        notion.Databases
	schemas    SchemaProvider
	resolver   Resolver
	maxElapsed time.Duration
}

// NewExecutor creates an executor.
func NewExecutor(svc notion.Service, dbs notion.Databases, schemas SchemaProvider, resolver Resolver, maxElapsed time.Duration) *Executor {
	if maxElapsed <= 0 {
		maxElapsed = DefaultRetryElapsed
	}
	return &Executor{
		svc:        svc,
		dbs:        dbs,
		schemas:    schemas,
		resolver:   resolver,
		maxElapsed: maxElapsed,
	}
}

// Execute runs one intent and normalizes the outcome into a uniform
// result envelope. Transient store failures are retried with exponential
// backoff; permanent ones surface immediately.
func (e *Executor) Execute(ctx context.Context, in *domain.Intent) *domain.ExecutionResult {
	log := logger.FromContext(ctx)

	prepared, err := e.substituteRelations(ctx, in)
	if err != nil {
		var nf *relation.NotFoundError
		if errors.As(err, &nf) {
			return domain.Failure(domain.ErrKindRelationNotFound, nf.Error())
		}
		return domain.Failure(domain.ErrKindPermanent, err.Error())
	}

	var result *domain.ExecutionResult
	switch prepared.Kind {
	case domain.KindQuery:
		result = e.executeQuery(ctx, prepared)
	case domain.KindCreate:
		result = e.executeCreate(ctx, prepared)
	case domain.KindUpdate:
		result = e.executeUpdate(ctx, prepared)
	case domain.KindDelete:
		result = e.executeDelete(ctx, prepared)
	case domain.KindAnalyze:
		result = e.executeAnalyze(ctx, prepared)
	default:
		result = domain.Failure(domain.ErrKindValidation,
			fmt.Sprintf("unknown operation type %q", prepared.Kind))
	}

	if !result.Success {
		log.Warn().
			Str("kind", string(prepared.Kind)).
			Str("database", string(prepared.Database)).
			Str("error_kind", string(result.ErrKind)).
			Str("reason", result.Message).
			Msg("Operation failed")
	}
	return result
}

// substituteRelations returns a copy of the intent with every relation
// human name in data and filters replaced by its resolved page ID. The
// validator has already vetted these; re-resolving here is defense in
// depth for intents that arrive via other paths (e.g. confirmations).
func (e *Executor) substituteRelations(ctx context.Context, in *domain.Intent) (*domain.Intent, error) {
	s, _ := e.schemas.Get(ctx, in.Database)

	out := *in
	if len(in.Data) > 0 {
		out.Data = make(map[string]any, len(in.Data))
		for key, value := range in.Data {
			t, _ := s.Type(key)
			if t != domain.PropertyRelation {
				out.Data[key] = value
				continue
			}
			resolved, err := e.resolveRelationValue(ctx, key, value)
			if err != nil {
				return nil, err
			}
			out.Data[key] = resolved
		}
	}

	if in.Filters != nil {
		filters, err := e.resolveFilterRelations(ctx, s, in.Filters)
		if err != nil {
			return nil, err
		}
		out.Filters = filters
	}

	return &out, nil
}

func (e *Executor) resolveRelationValue(ctx context.Context, property string, value any) (any, error) {
	names := relationNames(value)
	if names == nil {
		return value, nil
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if IsPageID(name) {
			ids = append(ids, name)
			continue
		}
		target, ok := relation.TargetDatabase(property)
		if !ok {
			return nil, fmt.Errorf("relation %q needs a page ID; %q is not one", property, name)
		}
		id, err := e.resolver.Resolve(ctx, target, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if _, single := value.(string); single {
		return ids[0], nil
	}
	return ids, nil
}

func (e *Executor) resolveFilterRelations(ctx context.Context, s domain.Schema, node *domain.FilterNode) (*domain.FilterNode, error) {
	if node == nil {
		return nil, nil
	}
	out := &domain.FilterNode{
		Property: node.Property,
		Operator: node.Operator,
		Value:    node.Value,
	}

	if !node.IsCompound() {
		if t, _ := s.Type(node.Property); t == domain.PropertyRelation {
			if name, ok := node.Value.(string); ok && !IsPageID(name) {
				target, ok := relation.TargetDatabase(node.Property)
				if !ok {
					return nil, fmt.Errorf("relation %q needs a page ID; %q is not one", node.Property, name)
				}
				id, err := e.resolver.Resolve(ctx, target, name)
				if err != nil {
					return nil, err
				}
				out.Value = id
			}
		}
		return out, nil
	}

	for _, child := range node.And {
		resolved, err := e.resolveFilterRelations(ctx, s, child)
		if err != nil {
			return nil, err
		}
		out.And = append(out.And, resolved)
	}
	for _, child := range node.Or {
		resolved, err := e.resolveFilterRelations(ctx, s, child)
		if err != nil {
			return nil, err
		}
		out.Or = append(out.Or, resolved)
	}
	return out, nil
}

func (e *Executor) executeQuery(ctx context.Context, in *domain.Intent) *domain.ExecutionResult {
	rows, err := e.queryRows(ctx, in)
	if err != nil {
		return storeFailure(err)
	}
	return &domain.ExecutionResult{
		Success: true,
		Rows:    rows,
		Message: fmt.Sprintf("found %d results", len(rows)),
	}
}

func (e *Executor) queryRows(ctx context.Context, in *domain.Intent) ([]domain.Row, error) {
	id, err := e.dbs.ID(in.Database)
	if err != nil {
		return nil, permanent(err)
	}

	s, _ := e.schemas.Get(ctx, in.Database)
	filter, err := notion.BuildFilter(s, in.Filters)
	if err != nil {
		return nil, permanent(err)
	}

	var pages []notionapi.Page
	err = e.withRetry(ctx, func() error {
		var qerr error
		pages, qerr = notion.QueryAllPages(ctx, e.svc, id, filter)
		return qerr
	})
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Row, 0, len(pages))
	for _, page := range pages {
		rows = append(rows, notion.NormalizeRow(page))
	}
	return rows, nil
}

func (e *Executor) executeCreate(ctx context.Context, in *domain.Intent) *domain.ExecutionResult {
	id, err := e.dbs.ID(in.Database)
	if err != nil {
		return domain.Failure(domain.ErrKindPermanent, err.Error())
	}

	s, _ := e.schemas.Get(ctx, in.Database)
	props, err := notion.BuildProperties(s, in.Data)
	if err != nil {
		return domain.Failure(domain.ErrKindValidation, err.Error())
	}
	title, _ := in.Data[s.TitleProperty()].(string)

	var page *notionapi.Page
	attempted := false
	err = e.withRetry(ctx, func() error {
		// A transient failure may have landed the write anyway. Check by
		// title before re-issuing the create, so a timeout after commit
		// does not double-create.
		if attempted {
			if existing := e.findExisting(ctx, id, s, title); existing != nil {
				page = existing
				return nil
			}
		}
		attempted = true
		var cerr error
		page, cerr = e.svc.CreatePage(ctx, id, props)
		return cerr
	})
	if err != nil {
		return storeFailure(err)
	}

	return &domain.ExecutionResult{
		Success: true,
		PageID:  string(page.ID),
		Message: "created",
	}
}

// findExisting looks up a page by its exact title. A nil return means
// unknown; the caller falls through to creating.
func (e *Executor) findExisting(ctx context.Context, databaseID string, s domain.Schema, title string) *notionapi.Page {
	titleProp := s.TitleProperty()
	if titleProp == "" || title == "" {
		return nil
	}
	filter, err := notion.BuildFilter(s, domain.Leaf(titleProp, domain.OpEquals, title))
	if err != nil {
		return nil
	}
	pages, err := notion.QueryAllPages(ctx, e.svc, databaseID, filter)
	if err != nil || len(pages) == 0 {
		return nil
	}
	return &pages[0]
}

func (e *Executor) executeUpdate(ctx context.Context, in *domain.Intent) *domain.ExecutionResult {
	s, _ := e.schemas.Get(ctx, in.Database)
	props, err := notion.BuildProperties(s, in.Data)
	if err != nil {
		return domain.Failure(domain.ErrKindValidation, err.Error())
	}

	var page *notionapi.Page
	err = e.withRetry(ctx, func() error {
		var uerr error
		page, uerr = e.svc.UpdatePage(ctx, in.TargetID, props)
		return uerr
	})
	if err != nil {
		return storeFailure(err)
	}

	return &domain.ExecutionResult{
		Success: true,
		PageID:  string(page.ID),
		Message: "updated",
	}
}

func (e *Executor) executeDelete(ctx context.Context, in *domain.Intent) *domain.ExecutionResult {
	err := e.withRetry(ctx, func() error {
		return e.svc.ArchivePage(ctx, in.TargetID)
	})
	if err != nil {
		return storeFailure(err)
	}
	return &domain.ExecutionResult{Success: true, PageID: in.TargetID, Message: "deleted"}
}

func (e *Executor) executeAnalyze(ctx context.Context, in *domain.Intent) *domain.ExecutionResult {
	rows, err := e.queryRows(ctx, in)
	if err != nil {
		return storeFailure(err)
	}

	property := in.AnalysisProperty
	if property == "" {
		property = "Amount"
	}

	agg := &domain.Aggregate{Kind: in.Analysis, Count: len(rows)}

	var sum float64
	var matched int
	for _, row := range rows {
		if n, ok := notion.AsNumber(row[property]); ok {
			sum += n
			matched++
		}
	}

	switch in.Analysis {
	case domain.AnalysisSum:
		agg.Value = sum
	case domain.AnalysisAverage:
		// Zero matching rows average to 0, never a division fault.
		if matched > 0 {
			agg.Value = sum / float64(matched)
		}
	case domain.AnalysisCount:
		agg.Value = float64(len(rows))
	default:
		return domain.Failure(domain.ErrKindValidation,
			fmt.Sprintf("unknown analysis type %q", in.Analysis))
	}

	return &domain.ExecutionResult{
		Success:   true,
		Aggregate: agg,
		Message:   fmt.Sprintf("%s of %s over %d rows: %g", in.Analysis, property, len(rows), agg.Value),
	}
}

// withRetry retries transient store failures with exponential backoff,
// capped by the executor's elapsed-time budget. Permanent failures stop
// the retry loop immediately.
func (e *Executor) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = e.maxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// permanentError marks a failure that must never be retried or reported
// as transient, regardless of its underlying cause.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// isTransient reports whether the failure is worth retrying: rate limits,
// server-side errors, and transport failures are; schema mismatches and
// missing targets are not.
func isTransient(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	// Anything that never reached the store (network-class error) may
	// succeed on a later attempt.
	return true
}

func storeFailure(err error) *domain.ExecutionResult {
	if isTransient(err) {
		return domain.Failure(domain.ErrKindTransient, err.Error())
	}
	return domain.Failure(domain.ErrKindPermanent, err.Error())
}
