package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"permaudit/internal/audit"
	"permaudit/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// AuditSession records one mutating CLI invocation (start, resume, clear).
type AuditSession struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "success" or "error"
}

// SQLiteDatabase is the metadata database: the checkpoint queue table, the
// active-audit record and the session history all live here.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens a SQLite database at path, which can be a file
// path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a raw configured handle.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys default to OFF in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// DB exposes the underlying connection for components sharing this database
// (the sqlite checkpoint store).
func (s *SQLiteDatabase) DB() *sql.DB { return s.db }

// Active-audit record (audit.StateStore)

func (s *SQLiteDatabase) ActiveAudit() (*audit.AuditState, error) {
	var state audit.AuditState
	err := s.db.QueryRow("SELECT root_id, label, started_at FROM audit_state WHERE id = 1").
		Scan(&state.RootID, &state.Label, &state.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading audit state: %w", err)
	}
	return &state, nil
}

func (s *SQLiteDatabase) SetActiveAudit(state *audit.AuditState) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO audit_state (id, root_id, label, started_at) VALUES (1, ?, ?, ?)",
		state.RootID, state.Label, state.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("writing audit state: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ClearActiveAudit() error {
	if _, err := s.db.Exec("DELETE FROM audit_state"); err != nil {
		return fmt.Errorf("clearing audit state: %w", err)
	}
	return nil
}

var _ audit.StateStore = (*SQLiteDatabase)(nil)

// Session history

func (s *SQLiteDatabase) CreateAuditSession(operation, parameters string) (*AuditSession, error) {
	started := time.Now()
	res, err := s.db.Exec(
		"INSERT INTO audit_sessions (operation, parameters, started_at, status) VALUES (?, ?, ?, 'running')",
		operation, parameters, started,
	)
	if err != nil {
		return nil, fmt.Errorf("creating audit session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading session id: %w", err)
	}
	return &AuditSession{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  started,
		Status:     "running",
	}, nil
}

func (s *SQLiteDatabase) FinishAuditSession(id int64, status string) error {
	_, err := s.db.Exec(
		"UPDATE audit_sessions SET finished_at = ?, status = ? WHERE id = ?",
		time.Now(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing audit session: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListAuditSessions(limit int) ([]*AuditSession, error) {
	rows, err := s.db.Query(
		"SELECT id, operation, parameters, started_at, finished_at, status FROM audit_sessions ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*AuditSession
	for rows.Next() {
		var sess AuditSession
		if err := rows.Scan(&sess.ID, &sess.Operation, &sess.Parameters, &sess.StartedAt, &sess.FinishedAt, &sess.Status); err != nil {
			return nil, fmt.Errorf("scanning audit session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit sessions: %w", err)
	}
	return sessions, nil
}

// MaxAuditSessionID returns the highest session ID, or 0 for a fresh
// database. Used as the local state version when comparing against a
// published snapshot.
func (s *SQLiteDatabase) MaxAuditSessionID() (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM audit_sessions").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading max session id: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string { return s.path }

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Check(s.db)
}

// MigrateUp brings the schema to the latest version.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
