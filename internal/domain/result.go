package domain

// ErrorKind classifies failures so callers can decide between retry,
// re-prompt, and plain reporting. Kinds correspond one-to-one with the
// failure paths surfaced to the user.
type ErrorKind string

const (
	ErrKindSchemaFetch      ErrorKind = "schema_fetch"
	ErrKindRelationNotFound ErrorKind = "relation_not_found"
	ErrKindValidation       ErrorKind = "validation"
	ErrKindConfirmation     ErrorKind = "confirmation"
	ErrKindTransient        ErrorKind = "transient_store"
	ErrKindPermanent        ErrorKind = "permanent_store"
	ErrKindDuplicate        ErrorKind = "duplicate"
)

// Row is one normalized record returned by a query: property name to a
// plain Go value (string, float64, bool, nil). Relation properties collapse
// to their reference count; formula and rollup results are unwrapped.
type Row map[string]any

// Aggregate is the reduction produced by an analyze operation.
type Aggregate struct {
	Kind  AnalysisKind `json:"kind"`
	Value float64      `json:"value"`
	Count int          `json:"count"`
}

// ExecutionResult is the uniform envelope produced by the executor for
// every operation kind.
type ExecutionResult struct {
	Success bool `json:"success"`

	// PageID is set for create and update operations.
	PageID string `json:"page_id,omitempty"`

	// Rows is set for query operations.
	Rows []Row `json:"rows,omitempty"`

	// Aggregate is set for analyze operations.
	Aggregate *Aggregate `json:"aggregate,omitempty"`

	ErrKind ErrorKind `json:"error_kind,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Failure builds a failed result with a classified reason.
func Failure(kind ErrorKind, message string) *ExecutionResult {
	return &ExecutionResult{ErrKind: kind, Message: message}
}

// BatchItemResult pairs an execution result with the item's position in
// the original batch.
type BatchItemResult struct {
	Index  int              `json:"index"`
	Result *ExecutionResult `json:"result"`
}

// BatchFailure records why one batch item was rejected or failed.
type BatchFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchReport is the partial-success report for a batch. Succeeded and
// Failed together cover every original index exactly once, in input order.
type BatchReport struct {
	Succeeded []BatchItemResult `json:"succeeded"`
	Failed    []BatchFailure    `json:"failed"`
}

// Total returns the number of items the report covers.
func (r *BatchReport) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// AllSucceeded reports whether no item failed.
func (r *BatchReport) AllSucceeded() bool {
	return len(r.Failed) == 0
}
