package database

// Schema is the flattened current schema, kept in sync with the embedded
// migration files. Tests use it to build throwaway databases without
// running the migration machinery.
const Schema = `
CREATE TABLE queue_entries (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id TEXT NOT NULL,
    path TEXT NOT NULL,
    url TEXT NOT NULL,
    inherited TEXT NOT NULL,
    is_root INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE audit_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    root_id TEXT NOT NULL,
    label TEXT NOT NULL,
    started_at TEXT NOT NULL
);

CREATE TABLE audit_sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation TEXT NOT NULL,
    parameters TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    status TEXT NOT NULL DEFAULT 'running'
);
`
