package checkpoint

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"permaudit/internal/audit"
)

// SQLiteStore implements audit.CheckpointStore on a queue_entries table.
// Insertion order is the autoincrement seq column; the inherited permission
// snapshot is stored as a self-contained JSON document in one column, so no
// entry ever depends on a previously dequeued row still existing.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing database connection. The caller owns the
// connection and its schema (see internal/database).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var _ audit.CheckpointStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) Initialize() error {
	if _, err := s.db.Exec("DELETE FROM queue_entries"); err != nil {
		return fmt.Errorf("clearing queue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Enqueue(e *audit.QueueEntry) error {
	return s.EnqueueBatch([]*audit.QueueEntry{e})
}

// EnqueueBatch appends entries in one transaction: either all of a
// container's children are recorded or none are.
func (s *SQLiteStore) EnqueueBatch(entries []*audit.QueueEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		inherited, err := json.Marshal(e.Inherited)
		if err != nil {
			return fmt.Errorf("encoding inherited permissions: %w", err)
		}
		_, err = tx.Exec(
			"INSERT INTO queue_entries (node_id, path, url, inherited, is_root) VALUES (?, ?, ?, ?, ?)",
			e.NodeID, e.Path, e.URL, string(inherited), e.IsRoot,
		)
		if err != nil {
			return fmt.Errorf("inserting queue entry for %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PeekFront() (*audit.QueueEntry, error) {
	row := s.db.QueryRow(
		"SELECT node_id, path, url, inherited, is_root FROM queue_entries ORDER BY seq LIMIT 1")
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// PopFront removes the front entry. A payload that cannot be decoded is
// removed anyway and reported as audit.ErrCorruptEntry: corrupt entries are
// dropped permanently, never retried.
func (s *SQLiteStore) PopFront() (*audit.QueueEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		seq       int64
		nodeID    string
		path      string
		url       string
		inherited string
		isRoot    bool
	)
	err = tx.QueryRow(
		"SELECT seq, node_id, path, url, inherited, is_root FROM queue_entries ORDER BY seq LIMIT 1").
		Scan(&seq, &nodeID, &path, &url, &inherited, &isRoot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading front entry: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM queue_entries WHERE seq = ?", seq); err != nil {
		return nil, fmt.Errorf("deleting front entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pop: %w", err)
	}

	var set audit.PermissionSet
	if err := json.Unmarshal([]byte(inherited), &set); err != nil {
		return nil, fmt.Errorf("decoding entry %d: %v: %w", seq, err, audit.ErrCorruptEntry)
	}
	return &audit.QueueEntry{
		NodeID:    nodeID,
		Path:      path,
		URL:       url,
		Inherited: set,
		IsRoot:    isRoot,
	}, nil
}

func (s *SQLiteStore) IsEmpty() (bool, error) {
	n, err := s.Len()
	return n == 0, err
}

func (s *SQLiteStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM queue_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting queue entries: %w", err)
	}
	return n, nil
}

func scanEntry(row *sql.Row) (*audit.QueueEntry, error) {
	var (
		nodeID    string
		path      string
		url       string
		inherited string
		isRoot    bool
	)
	if err := row.Scan(&nodeID, &path, &url, &inherited, &isRoot); err != nil {
		return nil, err
	}
	var set audit.PermissionSet
	if err := json.Unmarshal([]byte(inherited), &set); err != nil {
		return nil, fmt.Errorf("decoding entry: %v: %w", err, audit.ErrCorruptEntry)
	}
	return &audit.QueueEntry{
		NodeID:    nodeID,
		Path:      path,
		URL:       url,
		Inherited: set,
		IsRoot:    isRoot,
	}, nil
}
