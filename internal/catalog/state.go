package catalog

import (
	"maps"
	"slices"
	"sync"
)

// State is the in-memory application state that declared strategies write
// to. It is safe for concurrent use.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewState creates a state seeded with a copy of initial.
func NewState(initial map[string]any) *State {
	values := make(map[string]any, len(initial))
	maps.Copy(values, initial)
	return &State{values: values}
}

// Set stores value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Snapshot returns a copy of all values.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Keys returns the stored keys in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}
