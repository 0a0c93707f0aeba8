package confirm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tanvirk/ledgerbot/internal/domain"
)

// PostgresStore is a durable Store backed by Postgres. Transition relies
// on a conditional UPDATE, so the pending-to-confirmed edge is atomic across
// processes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the confirmations table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS pending_confirmations (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			intent       JSONB NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL,
			expires_at   TIMESTAMPTZ NOT NULL,
			status       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pending_confirmations_user
			ON pending_confirmations (user_id, requested_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("confirm.EnsureSchema: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, p *Pending) error {
	blob, err := json.Marshal(p.Intents)
	if err != nil {
		return fmt.Errorf("confirm.Save: encoding intents: %w", err)
	}

	const query = `
		INSERT INTO pending_confirmations (id, user_id, intent, requested_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		p.ID, p.UserID, blob, p.RequestedAt, p.ExpiresAt, string(p.Status),
	); err != nil {
		return fmt.Errorf("confirm.Save: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Pending, error) {
	const query = `
		SELECT id, user_id, intent, requested_at, expires_at, status
		FROM pending_confirmations
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// Transition implements Store. The WHERE clause carries the expected
// status, so of two racing confirmations exactly one sees a row updated.
func (s *PostgresStore) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	const query = `
		UPDATE pending_confirmations
		SET status = $1
		WHERE id = $2 AND status = $3
	`
	res, err := s.db.ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("confirm.Transition: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("confirm.Transition: %w", err)
	}
	if affected == 0 {
		// Distinguish "wrong status" from "no such record".
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// LatestPending implements Store.
func (s *PostgresStore) LatestPending(ctx context.Context, userID string) (*Pending, error) {
	const query = `
		SELECT id, user_id, intent, requested_at, expires_at, status
		FROM pending_confirmations
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY requested_at DESC
		LIMIT 1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, userID))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Pending, error) {
	var p Pending
	var blob []byte
	var status string

	if err := row.Scan(&p.ID, &p.UserID, &blob, &p.RequestedAt, &p.ExpiresAt, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("confirm: scanning record: %w", err)
	}

	var intents []*domain.Intent
	if err := json.Unmarshal(blob, &intents); err != nil {
		return nil, fmt.Errorf("confirm: decoding intents: %w", err)
	}
	p.Intents = intents
	p.Status = Status(status)

	return &p, nil
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
