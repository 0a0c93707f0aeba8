package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tanvirk/ledgerbot/internal/domain"
)

// Plan is the model's decoded answer: a conversational reply plus zero or
// more operations for the engine.
type Plan struct {
	Reply      string
	Operations []*domain.Intent
}

// planEnvelope is the raw JSON shape the model is prompted to emit.
type planEnvelope struct {
	Reply      string            `json:"reply"`
	Operations []json.RawMessage `json:"operations"`
}

// DecodePlan parses the model's raw text into a Plan. The text is cleaned
// first; models occasionally ignore the no-Markdown instruction.
func DecodePlan(raw string) (*Plan, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("DecodePlan: empty response from model")
	}

	var env planEnvelope
	if err := json.Unmarshal([]byte(clean), &env); err != nil {
		return nil, fmt.Errorf("DecodePlan: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	plan := &Plan{Reply: env.Reply}
	for i, op := range env.Operations {
		in, err := domain.DecodeIntent(op)
		if err != nil {
			return nil, fmt.Errorf("DecodePlan: operation %d: %w", i, err)
		}
		plan.Operations = append(plan.Operations, in)
	}
	return plan, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk, keeping the
// outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// If there is still junk around the JSON object, keep only from the
	// first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
