package audit

import "errors"

// ErrCorruptEntry is returned by PopFront when the stored payload cannot be
// decoded. The store removes the entry anyway: corrupt entries are
// permanently dropped, never retried.
var ErrCorruptEntry = errors.New("corrupt queue entry")

// CheckpointStore is the durable FIFO queue of pending traversal work.
// It survives process restarts, which is what makes the walk resumable:
// all continuation state is serialized data, never captured control flow.
type CheckpointStore interface {
	// Initialize discards any previous queue contents.
	Initialize() error

	// Enqueue appends one entry to the tail.
	Enqueue(e *QueueEntry) error

	// EnqueueBatch appends entries to the tail atomically: a container's
	// children are recorded all together or not at all.
	EnqueueBatch(entries []*QueueEntry) error

	// PeekFront returns the oldest pending entry without removing it,
	// or nil when the queue is empty.
	PeekFront() (*QueueEntry, error)

	// PopFront removes and returns the oldest pending entry, or nil when
	// the queue is empty. If the payload cannot be decoded the entry is
	// still removed and ErrCorruptEntry is returned.
	PopFront() (*QueueEntry, error)

	// IsEmpty reports whether any work is pending.
	IsEmpty() (bool, error)

	// Len returns the number of pending entries.
	Len() (int, error)
}

// AuditState is the persisted record of an active audit.
type AuditState struct {
	RootID    string
	Label     string // per-audit report label, also the results container name
	StartedAt string // RFC 3339; informational only
}

// StateStore persists whether an audit is active. At most one audit may be
// active at a time, enforced by the single persisted record.
type StateStore interface {
	// ActiveAudit returns the active audit, or nil when none is active.
	ActiveAudit() (*AuditState, error)

	// SetActiveAudit records state as the active audit, replacing any
	// previous record.
	SetActiveAudit(state *AuditState) error

	// ClearActiveAudit removes the active-audit record.
	ClearActiveAudit() error
}
