package confirm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tanvirk/ledgerbot/internal/domain"
	"github.com/tanvirk/ledgerbot/internal/logger"
)

// DefaultExpiry is how long a pending confirmation stays actionable.
const DefaultExpiry = 5 * time.Minute

// Manager gates destructive operations behind explicit confirmation.
type Manager struct {
	store  Store
	expiry time.Duration
	now    func() time.Time
}

// NewManager creates a confirmation manager over the given store.
func NewManager(store Store, expiry time.Duration) *Manager {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Manager{store: store, expiry: expiry, now: time.Now}
}

// Classify reports whether a single intent is destructive: updates and
// deletes are, creates and reads are not.
func (m *Manager) Classify(in *domain.Intent) bool {
	return in.Kind == domain.KindUpdate || in.Kind == domain.KindDelete
}

// ClassifyBatch reports whether a batch is destructive: any update or
// delete makes it so, and so does more than one mutating item.
func (m *Manager) ClassifyBatch(items []*domain.Intent) bool {
	mutations := 0
	for _, in := range items {
		if m.Classify(in) {
			return true
		}
		if in.IsMutation() {
			mutations++
		}
	}
	return mutations > 1
}

// Request persists the intents as a pending confirmation and returns its
// ID. The record expires after the manager's expiry window.
func (m *Manager) Request(ctx context.Context, userID string, items []*domain.Intent) (string, error) {
	now := m.now()
	p := &Pending{
		ID:          uuid.New().String(),
		UserID:      userID,
		Intents:     items,
		RequestedAt: now,
		ExpiresAt:   now.Add(m.expiry),
		Status:      StatusPending,
	}

	if err := m.store.Save(ctx, p); err != nil {
		return "", fmt.Errorf("confirm.Request: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("confirmation_id", p.ID).
		Str("user_id", userID).
		Time("expires_at", p.ExpiresAt).
		Msg("Stored pending confirmation")

	return p.ID, nil
}

// Confirm releases the original intents for execution. Expiry is observed
// lazily here: an overdue record transitions to expired and returns
// ErrExpired without executing anything. Re-confirming a resolved record
// returns ErrAlreadyResolved, so a duplicate "yes" never re-executes.
func (m *Manager) Confirm(ctx context.Context, id string) ([]*domain.Intent, error) {
	p, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if m.now().After(p.ExpiresAt) {
		// Best effort; the record is dead either way.
		_, _ = m.store.Transition(ctx, id, StatusPending, StatusExpired)
		return nil, ErrExpired
	}

	ok, err := m.store.Transition(ctx, id, StatusPending, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm.Confirm: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyResolved
	}

	return p.Intents, nil
}

// ConfirmLatest confirms the user's most recent pending record; used when
// the confirming message carries no explicit ID.
func (m *Manager) ConfirmLatest(ctx context.Context, userID string) ([]*domain.Intent, error) {
	p, err := m.store.LatestPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.Confirm(ctx, p.ID)
}

// Cancel explicitly marks a pending record cancelled.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	ok, err := m.store.Transition(ctx, id, StatusPending, StatusCancelled)
	if err != nil {
		return fmt.Errorf("confirm.Cancel: %w", err)
	}
	if !ok {
		return ErrAlreadyResolved
	}
	return nil
}

// CancelLatest cancels the user's most recent pending record.
func (m *Manager) CancelLatest(ctx context.Context, userID string) error {
	p, err := m.store.LatestPending(ctx, userID)
	if err != nil {
		return err
	}
	return m.Cancel(ctx, p.ID)
}
