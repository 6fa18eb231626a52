package report

import (
	"fmt"
	"sync"

	"permaudit/internal/audit"
)

// MemoryPageStore is an in-memory implementation of audit.PageStore.
// It keeps every page as a slice of rows, making it useful for tests.
// This implementation is safe for concurrent use.
type MemoryPageStore struct {
	mu    sync.Mutex
	pages map[string][][]string // pageID -> rows, header included
	parts map[string]int        // label -> highest part created
}

// NewMemoryPageStore creates a new in-memory page store.
func NewMemoryPageStore() *MemoryPageStore {
	return &MemoryPageStore{
		pages: make(map[string][][]string),
		parts: make(map[string]int),
	}
}

var _ audit.PageStore = (*MemoryPageStore)(nil)

func (m *MemoryPageStore) CreatePage(label string, part int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("%s/part-%03d", label, part)
	if _, exists := m.pages[id]; exists {
		return "", fmt.Errorf("page already exists: %s", id)
	}
	header := make([]string, len(audit.ReportHeader))
	copy(header, audit.ReportHeader)
	m.pages[id] = [][]string{header}
	if part > m.parts[label] {
		m.parts[label] = part
	}
	return id, nil
}

func (m *MemoryPageStore) AppendRow(pageID string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.pages[pageID]
	if !ok {
		return fmt.Errorf("page not found: %s", pageID)
	}
	copied := make([]string, len(row))
	copy(copied, row)
	m.pages[pageID] = append(rows, copied)
	return nil
}

func (m *MemoryPageStore) Latest(label string) (string, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	part := m.parts[label]
	if part == 0 {
		return "", 0, 0, nil
	}
	id := fmt.Sprintf("%s/part-%03d", label, part)
	return id, part, len(m.pages[id]) - 1, nil
}

// Rows returns a copy of a page's rows, header included. Test helper.
func (m *MemoryPageStore) Rows(pageID string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.pages[pageID]
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// PageCount returns the number of pages created for a label. Test helper.
func (m *MemoryPageStore) PageCount(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parts[label]
}
