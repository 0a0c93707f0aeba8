package confirm

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. Safe for concurrent use. Records are
// lost on restart; use the Postgres store when durability matters.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Pending
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Pending)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, p *Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to keep callers from mutating shared state.
	rec := *p
	s.records[p.ID] = &rec
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec := *p
	return &rec, nil
}

// Transition implements Store. The check-and-set happens under one lock,
// so concurrent confirmations of the same ID serialize here.
func (s *MemoryStore) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

// LatestPending implements Store.
func (s *MemoryStore) LatestPending(ctx context.Context, userID string) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *Pending
	for _, p := range s.records {
		if p.UserID != userID || p.Status != StatusPending {
			continue
		}
		if latest == nil || p.RequestedAt.After(latest.RequestedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	rec := *latest
	return &rec, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
