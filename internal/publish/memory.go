package publish

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// MemoryPublisher is an in-memory archive, useful for testing. It is safe
// for concurrent use.
type MemoryPublisher struct {
	name            string
	pages           map[string][]byte // key -> page data
	snapshots       map[string][]byte // hostID -> snapshot data
	snapshotVersion map[string]int64  // hostID -> version
	mu              sync.RWMutex
}

// NewMemoryPublisher creates a new in-memory archive with the given name.
func NewMemoryPublisher(name string) *MemoryPublisher {
	return &MemoryPublisher{
		name:            name,
		pages:           make(map[string][]byte),
		snapshots:       make(map[string][]byte),
		snapshotVersion: make(map[string]int64),
	}
}

var _ Publisher = (*MemoryPublisher)(nil)

func (m *MemoryPublisher) PutPage(key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[key] = data
	return nil
}

func (m *MemoryPublisher) GetPage(key string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.pages[key]
	if !ok {
		return fmt.Errorf("page not found: %s", key)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

func (m *MemoryPublisher) PutSnapshot(hostID string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[hostID] = data
	m.snapshotVersion[hostID] = version
	return nil
}

func (m *MemoryPublisher) GetSnapshot(hostID string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[hostID]
	if !ok {
		return fmt.Errorf("snapshot not found for host: %s", hostID)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns 0 if no snapshot has been stored for this host.
func (m *MemoryPublisher) SnapshotVersion(hostID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotVersion[hostID], nil
}

// ValidateSetup always succeeds for the in-memory archive.
func (m *MemoryPublisher) ValidateSetup() error {
	return nil
}

// PageKeys returns the keys of all archived pages; a test helper.
func (m *MemoryPublisher) PageKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.pages))
	for k := range m.pages {
		keys = append(keys, k)
	}
	return keys
}
