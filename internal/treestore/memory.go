package treestore

import (
	"fmt"
	"sort"

	"permaudit/internal/audit"
)

type memoryNode struct {
	node     audit.Node
	parent   string
	editors  []audit.Identity
	viewers  []audit.Identity
	links    []audit.LinkSharing
	failures map[string]error // facet name -> scripted error
}

// MemoryStore is an in-memory tree used by tests. Trees are scripted with
// AddContainer/AddLeaf/SetGrants; individual facets or whole nodes can be
// made to fail, and VisitHook observes every Resolve in traversal order.
type MemoryStore struct {
	nodes      map[string]*memoryNode
	rootGrants map[string][]audit.RootGrant
	rootErr    error

	// VisitHook, when set, is called with each resolved node ID. Tests use
	// it to advance a stub clock or mutate the tree mid-traversal.
	VisitHook func(id string)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:      make(map[string]*memoryNode),
		rootGrants: make(map[string][]audit.RootGrant),
	}
}

var _ audit.TreeStore = (*MemoryStore)(nil)

func (s *MemoryStore) AddContainer(id, parent string) {
	s.add(id, parent, audit.KindContainer)
}

func (s *MemoryStore) AddLeaf(id, parent string) {
	s.add(id, parent, audit.KindLeaf)
}

func (s *MemoryStore) add(id, parent string, kind audit.Kind) {
	s.nodes[id] = &memoryNode{
		node: audit.Node{
			ID:   id,
			Name: id,
			URL:  "mem://" + id,
			Kind: kind,
		},
		parent:   parent,
		failures: make(map[string]error),
	}
}

// SetGrants scripts the direct grants of an existing node.
func (s *MemoryStore) SetGrants(id string, editors, viewers []audit.Identity, links []audit.LinkSharing) {
	n := s.mustNode(id)
	n.editors = editors
	n.viewers = viewers
	n.links = links
}

// SetRootGrants scripts the authoritative root listing for an ID.
func (s *MemoryStore) SetRootGrants(id string, grants []audit.RootGrant) {
	s.rootGrants[id] = grants
}

// FailRoot makes every RootGrants call fail with err.
func (s *MemoryStore) FailRoot(err error) {
	s.rootErr = err
}

// FailFacet scripts an error for one facet ("editors", "viewers", "links",
// "children") of a node.
func (s *MemoryStore) FailFacet(id, facet string, err error) {
	s.mustNode(id).failures[facet] = err
}

// Remove deletes a node, simulating deletion between enqueue and visit.
// Its children stay scripted but become unreachable.
func (s *MemoryStore) Remove(id string) {
	delete(s.nodes, id)
}

func (s *MemoryStore) Resolve(id string) (*audit.Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, audit.ErrNotFound)
	}
	if s.VisitHook != nil {
		s.VisitHook(id)
	}
	node := n.node
	return &node, nil
}

func (s *MemoryStore) Children(id string) ([]*audit.Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, audit.ErrNotFound)
	}
	if err := n.failures["children"]; err != nil {
		return nil, err
	}
	var children []*audit.Node
	for _, c := range s.nodes {
		if c.parent == id {
			node := c.node
			children = append(children, &node)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (s *MemoryStore) Editors(id string) ([]audit.Identity, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, audit.ErrNotFound)
	}
	if err := n.failures["editors"]; err != nil {
		return nil, err
	}
	return append([]audit.Identity(nil), n.editors...), nil
}

func (s *MemoryStore) Viewers(id string) ([]audit.Identity, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, audit.ErrNotFound)
	}
	if err := n.failures["viewers"]; err != nil {
		return nil, err
	}
	return append([]audit.Identity(nil), n.viewers...), nil
}

func (s *MemoryStore) LinkSharing(id string) ([]audit.LinkSharing, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, audit.ErrNotFound)
	}
	if err := n.failures["links"]; err != nil {
		return nil, err
	}
	return append([]audit.LinkSharing(nil), n.links...), nil
}

func (s *MemoryStore) RootGrants(id string) ([]audit.RootGrant, error) {
	if s.rootErr != nil {
		return nil, s.rootErr
	}
	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%s: %w", id, audit.ErrNotFound)
	}
	return append([]audit.RootGrant(nil), s.rootGrants[id]...), nil
}

func (s *MemoryStore) mustNode(id string) *memoryNode {
	n, ok := s.nodes[id]
	if !ok {
		panic(fmt.Sprintf("treestore: no such scripted node %q", id))
	}
	return n
}
