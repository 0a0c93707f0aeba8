// Package confirm manages the pending-confirmation lifecycle for
// destructive operations. A pending record is the only state bridging the
// proposal request and the later "yes" request, so it lives in a store any
// worker can reach.
package confirm

import (
	"context"
	"errors"
	"time"

	"github.com/tanvirk/ledgerbot/internal/domain"
)

// Status is the lifecycle state of a pending confirmation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Sentinel outcomes of a confirmation lookup.
var (
	ErrNotFound        = errors.New("confirmation not found")
	ErrExpired         = errors.New("confirmation expired")
	ErrAlreadyResolved = errors.New("confirmation already resolved")
)

// Pending is one stored confirmation record. Intents holds the whole
// proposed batch, so a confirmed batch executes exactly as proposed.
type Pending struct {
	ID          string
	UserID      string
	Intents     []*domain.Intent
	RequestedAt time.Time
	ExpiresAt   time.Time
	Status      Status
}

// Store persists pending confirmations. Implementations must make
// Transition atomic: of two concurrent "yes" messages for the same ID,
// exactly one observes the pending-to-confirmed edge.
type Store interface {
	// Save persists a new record.
	Save(ctx context.Context, p *Pending) error

	// Get retrieves a record by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Pending, error)

	// Transition atomically moves a record from one status to another.
	// It reports false when the record was not in the from status.
	Transition(ctx context.Context, id string, from, to Status) (bool, error)

	// LatestPending returns the user's most recently requested record
	// still in pending status, or ErrNotFound.
	LatestPending(ctx context.Context, userID string) (*Pending, error)
}
