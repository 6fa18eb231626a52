package audit

import (
	"errors"
	"fmt"
)

// Error taxonomy for tree store operations. AccessDenied on a single
// permission facet degrades that facet and continues; NotFound on a queued
// node produces an error-kind finding; the root-validation errors abort a
// start before any queue is built.
var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrForbidden    = errors.New("forbidden")
	ErrAPIDisabled  = errors.New("access API not enabled")
)

// TreeStore is the external hierarchical storage being audited. Permission
// facets (editors, viewers, link sharing) are separate calls so that each
// can fail and degrade independently.
type TreeStore interface {
	// Resolve returns the node for an ID, or ErrNotFound.
	Resolve(id string) (*Node, error)

	// Children lists the direct children of a container, containers and
	// leaves intermixed, in a stable order.
	Children(id string) ([]*Node, error)

	// Editors lists identities with a direct Editor grant on the node.
	Editors(id string) ([]Identity, error)

	// Viewers lists identities with a direct Viewer grant on the node.
	Viewers(id string) ([]Identity, error)

	// LinkSharing lists the node's link-sharing grants.
	LinkSharing(id string) ([]LinkSharing, error)

	// RootGrants returns the authoritative grant listing for the audit
	// root, including entries inherited from outside the tree (flagged).
	RootGrants(id string) ([]RootGrant, error)
}

// RootUnavailableError aborts an audit start: the root could not be
// validated, so no queue is built. Error distinguishes the causes an
// operator can act on.
type RootUnavailableError struct {
	RootID string
	Err    error
}

func (e *RootUnavailableError) Error() string {
	switch {
	case errors.Is(e.Err, ErrAPIDisabled):
		return fmt.Sprintf("root %s unavailable: the permissions API is not enabled for this store; enable it and retry", e.RootID)
	case errors.Is(e.Err, ErrForbidden):
		return fmt.Sprintf("root %s unavailable: insufficient role to read its grants; ask an administrator for access", e.RootID)
	case errors.Is(e.Err, ErrNotFound):
		return fmt.Sprintf("root %s unavailable: no such node; check the ID", e.RootID)
	default:
		return fmt.Sprintf("root %s unavailable: %v", e.RootID, e.Err)
	}
}

func (e *RootUnavailableError) Unwrap() error { return e.Err }
