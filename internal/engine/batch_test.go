package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanvirk/ledgerbot/internal/domain"
)

// scriptedExecutor returns queued results in call order.
type scriptedExecutor struct {
	results  []*domain.ExecutionResult
	executed []*domain.Intent
}

func (s *scriptedExecutor) Execute(ctx context.Context, in *domain.Intent) *domain.ExecutionResult {
	s.executed = append(s.executed, in)
	if len(s.results) == 0 {
		return &domain.ExecutionResult{Success: true, Message: "ok"}
	}
	result := s.results[0]
	s.results = s.results[1:]
	return result
}

func validCreate(title string) *domain.Intent {
	return &domain.Intent{
		Kind:     domain.KindCreate,
		Database: domain.DatabaseExpenses,
		Data:     map[string]any{"Name": title, "Amount": 10.0},
	}
}

func TestProcessSkipsInvalidItems(t *testing.T) {
	executor := &scriptedExecutor{}
	p := NewBatchProcessor(newTestValidator(), executor)

	items := []*domain.Intent{
		validCreate("first"),
		{Kind: domain.KindCreate, Database: domain.DatabaseExpenses,
			Data: map[string]any{"Name": "bad", "Color": "red"}},
		validCreate("third"),
	}

	report := p.Process(context.Background(), items)

	require.Len(t, report.Succeeded, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 0, report.Succeeded[0].Index)
	assert.Equal(t, 2, report.Succeeded[1].Index)
	assert.Equal(t, 1, report.Failed[0].Index)
	assert.Contains(t, report.Failed[0].Reason, "Color")

	// The invalid item never reached the executor.
	require.Len(t, executor.executed, 2)
	assert.Equal(t, "first", executor.executed[0].Data["Name"])
	assert.Equal(t, "third", executor.executed[1].Data["Name"])
}

func TestProcessExecutionFailureDoesNotBlockSiblings(t *testing.T) {
	executor := &scriptedExecutor{
		results: []*domain.ExecutionResult{
			domain.Failure(domain.ErrKindTransient, "store unavailable"),
			{Success: true, Message: "ok"},
		},
	}
	p := NewBatchProcessor(newTestValidator(), executor)

	items := []*domain.Intent{validCreate("first"), validCreate("second")}
	report := p.Process(context.Background(), items)

	require.Len(t, executor.executed, 2, "a failed item must not block the next one")
	require.Len(t, report.Succeeded, 1)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Succeeded[0].Index)
	assert.Equal(t, 0, report.Failed[0].Index)
	assert.Contains(t, report.Failed[0].Reason, "store unavailable")
}

func TestProcessCoversEveryIndexOnce(t *testing.T) {
	executor := &scriptedExecutor{}
	p := NewBatchProcessor(newTestValidator(), executor)

	items := []*domain.Intent{
		validCreate("a"),
		{Kind: "explode", Database: domain.DatabaseExpenses},
		validCreate("c"),
		{Kind: domain.KindDelete, Database: domain.DatabaseExpenses},
		validCreate("e"),
	}

	report := p.Process(context.Background(), items)

	seen := make(map[int]int)
	for _, item := range report.Succeeded {
		seen[item.Index]++
	}
	for _, failure := range report.Failed {
		seen[failure.Index]++
	}
	require.Len(t, seen, len(items))
	for i := range items {
		assert.Equal(t, 1, seen[i], "index %d must appear exactly once", i)
	}
	assert.Equal(t, len(items), report.Total())
}

func TestProcessEmptyBatch(t *testing.T) {
	p := NewBatchProcessor(newTestValidator(), &scriptedExecutor{})
	report := p.Process(context.Background(), nil)
	assert.Equal(t, 0, report.Total())
	assert.True(t, report.AllSucceeded())
}
