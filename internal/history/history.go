// Package history keeps the recent conversation turns used as context
// for intent planning. Retention is bounded per user; only the newest
// turns survive.
package history

import (
	"context"
	"time"
)

// DefaultDepth is how many turns are kept and replayed per user.
const DefaultDepth = 10

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// Store persists conversation turns per user.
type Store interface {
	// Append records a turn, evicting the oldest beyond the retention
	// depth.
	Append(ctx context.Context, userID string, turn Turn) error

	// Recent returns up to depth newest turns in chronological order.
	Recent(ctx context.Context, userID string, depth int) ([]Turn, error)
}
