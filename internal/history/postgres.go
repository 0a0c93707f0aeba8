package history

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore is a durable Store backed by Postgres. Eviction runs on
// every append so the table stays bounded per user.
type PostgresStore struct {
	db    *sql.DB
	depth int
}

// NewPostgresStore creates a store over an open database handle,
// retaining at most depth turns per user.
func NewPostgresStore(db *sql.DB, depth int) *PostgresStore {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &PostgresStore{db: db, depth: depth}
}

// EnsureSchema creates the conversation table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS conversation_turns (
			id      BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			role    TEXT NOT NULL,
			text    TEXT NOT NULL,
			at      TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversation_turns_user
			ON conversation_turns (user_id, id DESC);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("history.EnsureSchema: %w", err)
	}
	return nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, userID string, turn Turn) error {
	const insert = `
		INSERT INTO conversation_turns (user_id, role, text, at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, insert, userID, string(turn.Role), turn.Text, turn.At); err != nil {
		return fmt.Errorf("history.Append: %w", err)
	}

	const evict = `
		DELETE FROM conversation_turns
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM conversation_turns
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		)
	`
	if _, err := s.db.ExecContext(ctx, evict, userID, s.depth); err != nil {
		return fmt.Errorf("history.Append: evicting old turns: %w", err)
	}
	return nil
}

// Recent implements Store.
func (s *PostgresStore) Recent(ctx context.Context, userID string, depth int) ([]Turn, error) {
	if depth <= 0 || depth > s.depth {
		depth = s.depth
	}

	const query = `
		SELECT role, text, at
		FROM conversation_turns
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, depth)
	if err != nil {
		return nil, fmt.Errorf("history.Recent: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var role string
		if err := rows.Scan(&role, &t.Text, &t.At); err != nil {
			return nil, fmt.Errorf("history.Recent: scanning turn: %w", err)
		}
		t.Role = Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history.Recent: %w", err)
	}

	// Rows come back newest first; callers want chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
