package engine

import (
	"context"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/logger"
)

// IntentExecutor runs one validated intent. Implemented by Executor;
// narrowed to an interface so batch tests can spy on execution.
type IntentExecutor interface {
	Execute(ctx context.Context, in *domain.Intent) *domain.ExecutionResult
}

// BatchProcessor runs a list of intents with validate-all /
// execute-valid semantics. The atomicity unit is the individual item:
// invalid items never execute, and one item's execution failure never
// blocks or rolls back its siblings.
type BatchProcessor struct {
	validator *Validator
	executor  IntentExecutor
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(validator *Validator, executor IntentExecutor) *BatchProcessor {
	return &BatchProcessor{validator: validator, executor: executor}
}

// Process validates every item first, then executes only the valid ones
// in original order. The report covers every original index exactly once.
func (p *BatchProcessor) Process(ctx context.Context, items []*domain.Intent) *domain.BatchReport {
	log := logger.FromContext(ctx)
	report := &domain.BatchReport{}

	// Phase 1: validate everything. No writes happen here.
	valid := make([]bool, len(items))
	reasons := make([]string, len(items))
	for i, item := range items {
		if err := p.validator.Validate(ctx, item); err != nil {
			reasons[i] = err.Error()
			continue
		}
		valid[i] = true
	}

	// Phase 2: execute the valid items in original order.
	results := make([]*domain.ExecutionResult, len(items))
	for i, item := range items {
		if !valid[i] {
			continue
		}
		result := p.executor.Execute(ctx, item)
		if result.Success {
			results[i] = result
		} else {
			reasons[i] = result.Message
		}
	}

	// Assemble the report in original input order.
	for i := range items {
		switch {
		case results[i] != nil:
			report.Succeeded = append(report.Succeeded, domain.BatchItemResult{
				Index:  i,
				Result: results[i],
			})
		default:
			report.Failed = append(report.Failed, domain.BatchFailure{
				Index:  i,
				Reason: reasons[i],
			})
		}
	}

	log.Info().
		Int("total", len(items)).
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Msg("Batch processed")

	return report
}
