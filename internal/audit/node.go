package audit

// Kind classifies a tree node or a report row.
type Kind string

const (
	KindContainer Kind = "folder"
	KindLeaf      Kind = "file"

	// KindError marks report rows for nodes that could not be visited.
	KindError Kind = "error"
)

// Node identifies one item in the tree store. Paths are accumulated by the
// traversal (a Node only knows its own name).
type Node struct {
	ID   string
	Name string
	URL  string
	Kind Kind
}

// QueueEntry is one unit of pending traversal work. Inherited is the
// PermissionSet the parent resolved to, captured at enqueue time and never
// recomputed: a node is always diffed against the snapshot from the moment
// its parent was visited, not against the parent's current live state.
type QueueEntry struct {
	NodeID    string
	Path      string
	URL       string
	Inherited PermissionSet
	IsRoot    bool
}

// Finding is one report row: a node whose effective access diverges from its
// inherited baseline. Access lists the node's complete current access, not a
// delta, so the row is self-sufficient for remediation.
type Finding struct {
	Path   string
	URL    string
	Kind   Kind
	Access string
}
