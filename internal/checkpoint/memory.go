package checkpoint

import (
	"permaudit/internal/audit"
)

// MemoryStore is an in-memory implementation of audit.CheckpointStore.
// It does not survive process restarts; useful for tests and dry runs.
type MemoryStore struct {
	entries []*audit.QueueEntry
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ audit.CheckpointStore = (*MemoryStore)(nil)

func (m *MemoryStore) Initialize() error {
	m.entries = nil
	return nil
}

func (m *MemoryStore) Enqueue(e *audit.QueueEntry) error {
	copied := *e
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *MemoryStore) EnqueueBatch(entries []*audit.QueueEntry) error {
	for _, e := range entries {
		if err := m.Enqueue(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) PeekFront() (*audit.QueueEntry, error) {
	if len(m.entries) == 0 {
		return nil, nil
	}
	copied := *m.entries[0]
	return &copied, nil
}

func (m *MemoryStore) PopFront() (*audit.QueueEntry, error) {
	if len(m.entries) == 0 {
		return nil, nil
	}
	front := m.entries[0]
	m.entries = m.entries[1:]
	return front, nil
}

func (m *MemoryStore) IsEmpty() (bool, error) {
	return len(m.entries) == 0, nil
}

func (m *MemoryStore) Len() (int, error) {
	return len(m.entries), nil
}
