package history

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store bounded to a fixed number of turns
// per user. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	depth int
	turns map[string][]Turn
}

// NewMemoryStore creates a store retaining at most depth turns per user.
func NewMemoryStore(depth int) *MemoryStore {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &MemoryStore{depth: depth, turns: make(map[string][]Turn)}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, userID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.turns[userID], turn)
	if len(turns) > s.depth {
		turns = turns[len(turns)-s.depth:]
	}
	s.turns[userID] = turns
	return nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(ctx context.Context, userID string, depth int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.turns[userID]
	if depth > 0 && len(turns) > depth {
		turns = turns[len(turns)-depth:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
