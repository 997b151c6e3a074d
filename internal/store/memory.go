package store

import (
	"sync"

	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// MemoryStore keeps state for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: State{Theme: ThemeSystem}}
}

func (s *MemoryStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Connections = append([]telemetry.Record(nil), s.state.Connections...)
	return st, nil
}

func (s *MemoryStore) SaveConnections(records []telemetry.Record, counter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Connections = append([]telemetry.Record(nil), records...)
	s.state.Counter = counter
	return nil
}

func (s *MemoryStore) SaveTheme(theme Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Theme = normalizeTheme(theme)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
