package memory

import (
	"context"
	"sync"

	audit "twubi/pkg/platform/audit"
)

// InMemoryStore is an audit.Store for tests and local runs. Snapshot and
// Restore let an in-memory transaction runner roll back appends.
type InMemoryStore struct {
	mu      sync.RWMutex
	events  []audit.Event
	cursors map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cursors: make(map[string]int64)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.cursors = make(map[string]int64)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = int64(len(s.events)) + 1
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListAfter(_ context.Context, afterID int64, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.events {
		if e.ID <= afterID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListAll returns every event in insertion order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}

func (s *InMemoryStore) LoadCursor(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[name], nil
}

func (s *InMemoryStore) SaveCursor(_ context.Context, name string, lastID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lastID > s.cursors[name] {
		s.cursors[name] = lastID
	}
	return nil
}

// Snapshot returns a function that restores the log to its current length.
func (s *InMemoryStore) Snapshot() (restore func()) {
	s.mu.RLock()
	n := len(s.events)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.events) > n {
			s.events = s.events[:n]
		}
	}
}
