package session

import (
	"context"
	"fmt"
	"sync"
)

// Key addresses one visit's answer state.
type Key struct {
	SessionID string
	FormID    string
	VisitID   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SessionID, k.FormID, k.VisitID)
}

// Store persists per-visit answer state. Merges are shallow: each top-level
// key in the update replaces the stored value for that key whole, including
// nested section maps and iteration lists. Requests for one visit are
// assumed serialized by the caller; the store only guards its own structures.
type Store interface {
	GetState(ctx context.Context, key Key) (map[string]any, error)
	MergeState(ctx context.Context, key Key, update map[string]any) (map[string]any, error)
	ClearState(ctx context.Context, key Key) error
}

// MemoryStore is the in-process Store used by the server by default and by
// tests.
type MemoryStore struct {
	mu    sync.RWMutex
	state map[string]map[string]any
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: make(map[string]map[string]any)}
}

// GetState returns a copy of the stored state, empty when absent.
func (s *MemoryStore) GetState(_ context.Context, key Key) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.state[key.String()]
	if !ok {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(stored))
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

// MergeState applies a shallow top-level merge and returns the merged state.
func (s *MemoryStore) MergeState(_ context.Context, key Key, update map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.state[key.String()]
	if !ok {
		stored = make(map[string]any, len(update))
		s.state[key.String()] = stored
	}
	for k, v := range update {
		stored[k] = v
	}

	out := make(map[string]any, len(stored))
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

// ClearState drops the visit's state.
func (s *MemoryStore) ClearState(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, key.String())
	return nil
}
