// Package handshake provides stores for short-lived OAuth handshake states.
package handshake

import (
	"context"
	"sync"
	"time"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

// MemoryStore keeps handshake states in process memory. Suitable for a
// single instance; multi-instance deployments use RedisStore so any instance
// can complete a callback.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*domain.AuthHandshakeState
	now    func() time.Time
}

var _ ports.HandshakeStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory handshake store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*domain.AuthHandshakeState),
		now:    time.Now,
	}
}

// Put stores a handshake state under its id.
func (s *MemoryStore) Put(_ context.Context, state *domain.AuthHandshakeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = state
	return nil
}

// Get returns the state for id, or (nil, nil) when missing or expired.
// Expired states are removed on lookup.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.AuthHandshakeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[id]
	if !ok {
		return nil, nil
	}
	if state.Expired(s.now()) {
		delete(s.states, id)
		return nil, nil
	}
	return state, nil
}

// Delete removes a state. Deleting an absent id is a no-op.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

// Sweep drops every expired state and returns how many were removed.
// Callers run it on a ticker so abandoned handshakes do not accumulate.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, state := range s.states {
		if state.Expired(now) {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored states, expired included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
