package testutil

import (
	"sync"

	"permaudit/internal/audit"
)

// MemoryStateStore keeps the active-audit record in memory.
type MemoryStateStore struct {
	mu    sync.Mutex
	state *audit.AuditState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

var _ audit.StateStore = (*MemoryStateStore)(nil)

func (s *MemoryStateStore) ActiveAudit() (*audit.AuditState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	copy := *s.state
	return &copy, nil
}

func (s *MemoryStateStore) SetActiveAudit(state *audit.AuditState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *state
	s.state = &copy
	return nil
}

func (s *MemoryStateStore) ClearActiveAudit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}
