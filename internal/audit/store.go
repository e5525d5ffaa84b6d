package audit

import (
	"context"
	"sync"
)

// Sink persists or forwards audit events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// MemoryStore keeps events in memory for tests and single-node development.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByUser returns the recorded events for a user in append order.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []Event
	for _, event := range s.events {
		if event.UserID == userID {
			matches = append(matches, event)
		}
	}
	return matches, nil
}

// ListByAction returns the recorded events matching an action in append order.
func (s *MemoryStore) ListByAction(_ context.Context, action string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []Event
	for _, event := range s.events {
		if event.Action == action {
			matches = append(matches, event)
		}
	}
	return matches, nil
}
