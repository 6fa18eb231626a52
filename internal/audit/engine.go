package audit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the traversal engine's lifecycle state. The only transitions are
// Idle -> Running -> {Paused, Completed, Failed} and Paused -> Running on an
// explicit resume.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Result summarizes one bounded execution session.
type Result struct {
	State     State
	Label     string // report label of the audit this session worked on
	Processed int    // queue entries processed this session
	Findings  int    // report rows written this session
	Remaining int    // queue entries left at session end
}

// Status describes the persisted audit between sessions.
type Status struct {
	Active  *AuditState
	Pending int
	Next    *QueueEntry // front of the queue, nil when empty
	Part    int         // latest report page number
	Rows    int         // data rows on the latest page
}

// Service drives the breadth-first, time-bounded, resumable audit walk.
// Execution is single-threaded and cooperative: one session runs to
// completion, to the deadline, or to a fatal error; suspension happens only
// at the top of the traversal loop, never mid-node.
type Service struct {
	tree     TreeStore
	queue    CheckpointStore
	states   StateStore
	pages    PageStore
	capacity int
	logger   Logger
	clock    Clock
	budget   time.Duration
	state    State
}

// NewService creates a Service with the provided dependencies. capacity is
// the report page row capacity; budget is the wall-clock session budget.
func NewService(tree TreeStore, queue CheckpointStore, states StateStore, pages PageStore, capacity int, logger Logger, clock Clock, budget time.Duration) *Service {
	return &Service{
		tree:     tree,
		queue:    queue,
		states:   states,
		pages:    pages,
		capacity: capacity,
		logger:   logger,
		clock:    clock,
		budget:   budget,
		state:    StateIdle,
	}
}

// State returns the engine's current lifecycle state.
func (s *Service) State() State { return s.state }

// Start begins a new audit rooted at rootID: it validates the root, resets
// the checkpoint queue, writes the root baseline summary, enqueues the root
// and runs the first session. The root itself is exempt from diffing — it
// defines the baseline.
func (s *Service) Start(rootID string) (*Result, error) {
	active, err := s.states.ActiveAudit()
	if err != nil {
		return nil, fmt.Errorf("checking for active audit: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("an audit of %s is already in progress: resume it or clear it first", active.RootID)
	}

	// Fail fast before any queue is built.
	grants, err := s.tree.RootGrants(rootID)
	if err != nil {
		return nil, &RootUnavailableError{RootID: rootID, Err: err}
	}
	root, err := s.tree.Resolve(rootID)
	if err != nil {
		return nil, &RootUnavailableError{RootID: rootID, Err: err}
	}
	if root.Kind != KindContainer {
		return nil, fmt.Errorf("root %s is not a container", rootID)
	}

	now := s.clock.Now()
	label := reportLabel(root.Name, now)

	if err := s.queue.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing checkpoint queue: %w", err)
	}
	state := &AuditState{
		RootID:    rootID,
		Label:     label,
		StartedAt: now.UTC().Format(time.RFC3339),
	}
	if err := s.states.SetActiveAudit(state); err != nil {
		return nil, fmt.Errorf("recording active audit: %w", err)
	}

	// Baseline summary rows: the authoritative listing grouped by role,
	// grants inherited from outside the tree filtered out.
	reporter := NewReporter(s.pages, label, s.capacity, s.logger)
	pstate := PartitionState{}
	for _, line := range SummarizeRoot(grants) {
		pstate, err = reporter.Write(pstate, Finding{
			Path:   root.Name,
			URL:    root.URL,
			Kind:   root.Kind,
			Access: line,
		})
		if err != nil {
			return nil, err
		}
	}

	baseline := s.resolvePermissions(rootID)
	entry := &QueueEntry{
		NodeID:    rootID,
		Path:      root.Name,
		URL:       root.URL,
		Inherited: baseline,
		IsRoot:    true,
	}
	if err := s.queue.Enqueue(entry); err != nil {
		return nil, fmt.Errorf("enqueueing root: %w", err)
	}

	s.logger.Info("audit started", "root", rootID, "label", label)
	return s.run(label, now.Add(s.budget))
}

// Resume continues a paused audit for one more bounded session.
func (s *Service) Resume() (*Result, error) {
	active, err := s.states.ActiveAudit()
	if err != nil {
		return nil, fmt.Errorf("checking for active audit: %w", err)
	}
	if active == nil {
		return nil, errors.New("no audit in progress: start one first")
	}

	s.logger.Info("audit resumed", "root", active.RootID, "label", active.Label)
	return s.run(active.Label, s.clock.Now().Add(s.budget))
}

// Clear discards all pending audit state. It never cancels a running
// session; sessions cannot overlap by construction.
func (s *Service) Clear() error {
	if err := s.queue.Initialize(); err != nil {
		return fmt.Errorf("clearing checkpoint queue: %w", err)
	}
	if err := s.states.ClearActiveAudit(); err != nil {
		return fmt.Errorf("clearing audit state: %w", err)
	}
	s.state = StateIdle
	s.logger.Info("audit state cleared")
	return nil
}

// Status reports the persisted audit state between sessions.
func (s *Service) Status() (*Status, error) {
	active, err := s.states.ActiveAudit()
	if err != nil {
		return nil, fmt.Errorf("checking for active audit: %w", err)
	}

	st := &Status{Active: active}
	if st.Pending, err = s.queue.Len(); err != nil {
		return nil, fmt.Errorf("reading queue length: %w", err)
	}
	if st.Next, err = s.queue.PeekFront(); err != nil && !errors.Is(err, ErrCorruptEntry) {
		return nil, fmt.Errorf("peeking queue: %w", err)
	}
	if active != nil {
		_, st.Part, st.Rows, err = s.pages.Latest(active.Label)
		if err != nil {
			return nil, fmt.Errorf("reading report state: %w", err)
		}
	}
	return st, nil
}

// run is the per-session traversal loop. Each iteration processes exactly
// one queue entry to completion: the deadline is checked only at the top, so
// a container and its direct leaf children are indivisible.
func (s *Service) run(label string, deadline time.Time) (*Result, error) {
	s.state = StateRunning
	reporter := NewReporter(s.pages, label, s.capacity, s.logger)
	pstate, err := reporter.Restore()
	if err != nil {
		s.state = StateFailed
		return nil, err
	}

	result := &Result{Label: label}
	for {
		empty, err := s.queue.IsEmpty()
		if err != nil {
			return s.fail(result, fmt.Errorf("checking queue: %w", err))
		}
		if empty {
			break
		}

		if !s.clock.Now().Before(deadline) {
			s.state = StatePaused
			result.State = StatePaused
			result.Remaining, _ = s.queue.Len()
			s.logger.Info("session budget exhausted, pausing",
				"processed", result.Processed, "remaining", result.Remaining)
			return result, nil
		}

		entry, err := s.queue.PopFront()
		if errors.Is(err, ErrCorruptEntry) {
			s.logger.Warn("dropping corrupt queue entry")
			continue
		}
		if err != nil {
			return s.fail(result, fmt.Errorf("popping queue: %w", err))
		}
		result.Processed++

		pstate, err = s.visit(reporter, pstate, entry, result)
		if err != nil {
			return s.fail(result, err)
		}
	}

	// Queue drained: the audit is complete and its state is destroyed.
	if err := s.states.ClearActiveAudit(); err != nil {
		return s.fail(result, fmt.Errorf("clearing audit state: %w", err))
	}
	s.state = StateCompleted
	result.State = StateCompleted
	s.logger.Info("audit complete", "label", label, "processed", result.Processed)
	return result, nil
}

// visit processes one dequeued entry: resolve, diff against the inherited
// snapshot, diff leaf children inline, and batch-enqueue container children.
func (s *Service) visit(reporter *Reporter, pstate PartitionState, entry *QueueEntry, result *Result) (PartitionState, error) {
	node, err := s.tree.Resolve(entry.NodeID)
	if err != nil {
		// The node vanished or became inaccessible since it was queued.
		// Record it and move on; never enqueue children for it.
		s.logger.Warn("queued node unresolvable", "path", entry.Path, "error", err)
		return s.write(reporter, pstate, Finding{
			Path:   entry.Path,
			URL:    entry.URL,
			Kind:   KindError,
			Access: fmt.Sprintf("node could not be resolved: %v", err),
		}, result)
	}

	current := s.resolvePermissions(node.ID)

	if !entry.IsRoot {
		if text, diverged := Compare(entry.Inherited, current); diverged {
			pstate, err = s.write(reporter, pstate, Finding{
				Path:   entry.Path,
				URL:    entry.URL,
				Kind:   node.Kind,
				Access: text,
			}, result)
			if err != nil {
				return pstate, err
			}
		}
	}

	if node.Kind != KindContainer {
		return pstate, nil
	}

	children, err := s.tree.Children(node.ID)
	if err != nil {
		s.logger.Warn("children unreadable, subtree skipped", "path", entry.Path, "error", err)
		return pstate, nil
	}

	var batch []*QueueEntry
	for _, child := range children {
		childPath := entry.Path + "/" + child.Name
		if child.Kind == KindLeaf {
			// Leaves are terminal: diffed inline against this
			// container's freshly resolved set, never enqueued.
			leafSet := s.resolvePermissions(child.ID)
			if text, diverged := Compare(current, leafSet); diverged {
				pstate, err = s.write(reporter, pstate, Finding{
					Path:   childPath,
					URL:    child.URL,
					Kind:   child.Kind,
					Access: text,
				}, result)
				if err != nil {
					return pstate, err
				}
			}
			continue
		}
		batch = append(batch, &QueueEntry{
			NodeID:    child.ID,
			Path:      childPath,
			URL:       child.URL,
			Inherited: current,
		})
	}

	if len(batch) > 0 {
		if err := s.queue.EnqueueBatch(batch); err != nil {
			return pstate, fmt.Errorf("enqueueing children of %s: %w", entry.Path, err)
		}
	}
	return pstate, nil
}

func (s *Service) write(reporter *Reporter, pstate PartitionState, f Finding, result *Result) (PartitionState, error) {
	next, err := reporter.Write(pstate, f)
	if err != nil {
		return pstate, err
	}
	if next.Rows != pstate.Rows || next.Part != pstate.Part {
		result.Findings++
	}
	return next, nil
}

func (s *Service) fail(result *Result, err error) (*Result, error) {
	s.state = StateFailed
	result.State = StateFailed
	result.Remaining, _ = s.queue.Len()
	return result, err
}

// resolvePermissions builds a node's normalized PermissionSet. Each facet
// degrades to its empty default when unreadable: auditing never aborts on a
// single unreadable facet.
func (s *Service) resolvePermissions(id string) PermissionSet {
	editors, err := s.tree.Editors(id)
	if err != nil {
		s.logger.Warn("editors unreadable, degrading facet", "node", id, "error", err)
		editors = nil
	}
	viewers, err := s.tree.Viewers(id)
	if err != nil {
		s.logger.Warn("viewers unreadable, degrading facet", "node", id, "error", err)
		viewers = nil
	}
	links, err := s.tree.LinkSharing(id)
	if err != nil {
		s.logger.Warn("link sharing unreadable, degrading facet", "node", id, "error", err)
		links = nil
	}
	return Normalize(editors, viewers, links)
}

// reportLabel builds the per-audit results container name from the root's
// name and the start time, so successive audits never share pages.
func reportLabel(rootName string, t time.Time) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '-'
		}
	}, rootName)
	return sanitized + "-" + t.UTC().Format("20060102T150405Z")
}
