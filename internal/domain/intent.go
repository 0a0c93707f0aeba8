package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the closed set of operation kinds the engine executes.
type Kind string

const (
	KindQuery   Kind = "query"
	KindCreate  Kind = "create"
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
	KindAnalyze Kind = "analyze"
)

// ParseKind maps a free-form operation type to a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindQuery, KindCreate, KindUpdate, KindDelete, KindAnalyze:
		return k, true
	}
	return "", false
}

// AnalysisKind selects the aggregation applied by an analyze operation.
type AnalysisKind string

const (
	AnalysisSum     AnalysisKind = "sum"
	AnalysisAverage AnalysisKind = "average"
	AnalysisCount   AnalysisKind = "count"
)

// ParseAnalysisKind maps a free-form analysis type to an AnalysisKind.
func ParseAnalysisKind(s string) (AnalysisKind, bool) {
	k := AnalysisKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case AnalysisSum, AnalysisAverage, AnalysisCount:
		return k, true
	}
	return "", false
}

// Intent is one structured operation proposed by the AI layer. It is
// untrusted input: the JSON tags match the shape the model is prompted to
// emit, and every field is re-checked by the validator before execution.
//
// Only the fields relevant to Kind are required; the rest are ignored but
// preserved (Raw keeps the original message for auditing and confirmation
// round-trips).
type Intent struct {
	Kind     Kind           `json:"operation_type"`
	Database Database       `json:"database"`
	Filters  *FilterNode    `json:"filters,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	TargetID string         `json:"page_id,omitempty"`

	// Analysis selects the aggregation for analyze operations.
	// AnalysisProperty names the numeric property to reduce; the executor
	// defaults it to "Amount" when empty.
	Analysis         AnalysisKind `json:"analysis_type,omitempty"`
	AnalysisProperty string       `json:"analysis_property,omitempty"`

	// Rationale is the model's free-text reasoning. Non-authoritative;
	// surfaced to the user in confirmation prompts, never acted upon.
	Rationale string `json:"reasoning,omitempty"`

	// Raw is the intent as originally decoded, before any normalization.
	Raw json.RawMessage `json:"-"`
}

// DecodeIntent decodes a single intent defensively, preserving the raw
// message. Unknown fields are tolerated; missing ones are caught later by
// the validator.
func DecodeIntent(raw json.RawMessage) (*Intent, error) {
	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("DecodeIntent: %w", err)
	}
	in.Raw = append(json.RawMessage(nil), raw...)
	return &in, nil
}

// IsMutation reports whether executing the intent writes to the store.
func (in *Intent) IsMutation() bool {
	switch in.Kind {
	case KindCreate, KindUpdate, KindDelete:
		return true
	}
	return false
}

// Describe renders a short human-readable label for confirmation prompts,
// e.g. `delete in expenses`.
func (in *Intent) Describe() string {
	return fmt.Sprintf("%s in %s", in.Kind, in.Database)
}
