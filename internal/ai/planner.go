// Package ai turns free-form chat messages into structured operations
// using Gemini. The model proposes; the engine's validator decides.
package ai

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/tanvirk/ledgerbot/internal/history"
	"github.com/tanvirk/ledgerbot/internal/logger"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// PlanRequest carries everything the planner needs for one message.
type PlanRequest struct {
	Message    string
	History    []history.Turn
	Categories []string
	Accounts   []string
	Today      time.Time
}

// Planner proposes operations for a user message.
type Planner interface {
	Plan(ctx context.Context, req *PlanRequest) (*Plan, error)
}

// GeminiPlanner is the production Planner backed by Gemini.
type GeminiPlanner struct {
	client *genai.Client
	model  string
}

// NewGeminiPlanner creates a planner with its own Gemini client.
func NewGeminiPlanner(ctx context.Context, apiKey, model string) (*GeminiPlanner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiPlanner: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiPlanner{client: client, model: model}, nil
}

// Plan implements Planner.
func (p *GeminiPlanner) Plan(ctx context.Context, req *PlanRequest) (*Plan, error) {
	if req.Today.IsZero() {
		req.Today = time.Now()
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(req)},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("GeminiPlanner.Plan: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("GeminiPlanner.Plan: empty response from model")
	}

	plan, err := DecodePlan(rawText)
	if err != nil {
		return nil, fmt.Errorf("GeminiPlanner.Plan: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int("operations", len(plan.Operations)).
		Msg("Planned operations from model response")

	return plan, nil
}

// Ensure GeminiPlanner implements Planner.
var _ Planner = (*GeminiPlanner)(nil)
