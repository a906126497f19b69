package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/pkg/domain"
)

// subscriberBuffer is the per-subscriber channel capacity.
// Events are dropped for subscribers that fall further behind.
const subscriberBuffer = 16

// Store holds the authoritative nodes and edges of one workspace and a weak
// reference to the selected entity. All reads return copies.
// Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	kinds     domain.KindSet
	nodes     []domain.Node
	edges     []domain.Edge
	selection *domain.Selection
	version   uint64
	closed    bool

	subscribers map[chan domain.GraphEvent]struct{}

	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for dropped events and mutations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks fired after each mutation.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Store) {
		s.hooks = hooks
	}
}

// WithSnapshot seeds the store. The snapshot must satisfy every graph
// invariant or NewStore fails.
func WithSnapshot(snap domain.Snapshot) Option {
	return func(s *Store) {
		c := snap.Clone()
		s.nodes, s.edges = c.Nodes, c.Edges
	}
}

// NewStore creates an empty store that accepts only kinds in the given set.
func NewStore(kinds domain.KindSet, opts ...Option) (*Store, error) {
	s := &Store{
		kinds:       kinds,
		subscribers: make(map[chan domain.GraphEvent]struct{}),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := domain.Validate(domain.Snapshot{Nodes: s.nodes, Edges: s.edges}, kinds); err != nil {
		return nil, fmt.Errorf("invalid initial graph: %w", err)
	}
	return s, nil
}

// Snapshot returns a deep copy of the current graph.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{Nodes: s.nodes, Edges: s.edges}.Clone()
}

// Version returns the mutation counter. It increases on every successful change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.nodeIndex(id)
	if i < 0 {
		return domain.Node{}, fmt.Errorf("node %q: %w", id, domain.ErrNotFound)
	}
	return s.nodes[i].Clone(), nil
}

// Edge returns a copy of the edge with the given id.
func (s *Store) Edge(id string) (domain.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.edgeIndex(id)
	if i < 0 {
		return domain.Edge{}, fmt.Errorf("edge %q: %w", id, domain.ErrNotFound)
	}
	return s.edges[i].Clone(), nil
}

// AddNode inserts a node. It fails without touching the store if the kind is
// not registered, the id is taken or a property is not scalar.
func (s *Store) AddNode(node domain.Node) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	if node.ID == "" {
		s.mu.Unlock()
		return &domain.SchemaError{Field: "id", Msg: "required field is missing"}
	}
	if s.kinds != nil && !s.kinds.Has(node.Kind) {
		s.mu.Unlock()
		return &domain.UnknownKindError{Kind: node.Kind}
	}
	if s.nodeIndex(node.ID) >= 0 {
		s.mu.Unlock()
		return &domain.DuplicateIDError{Entity: domain.EntityNode, ID: node.ID}
	}
	if err := node.Properties.Validate(); err != nil {
		s.mu.Unlock()
		return &domain.SchemaError{Field: "data.properties", Err: err}
	}
	s.nodes = append(s.nodes, node.Clone())
	evt := s.commitLocked(domain.EventNodeAdded, node.ID)
	s.mu.Unlock()

	s.emit(evt)
	return nil
}

// RemoveNode deletes a node together with every edge that references it.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	i := s.nodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("node %q: %w", id, domain.ErrNotFound)
	}
	s.nodes = slices.Delete(s.nodes, i, i+1)

	var removed []string
	s.edges = slices.DeleteFunc(s.edges, func(e domain.Edge) bool {
		if e.Source == id || e.Target == id {
			removed = append(removed, e.ID)
			return true
		}
		return false
	})

	events := make([]domain.GraphEvent, 0, len(removed)+1)
	for _, edgeID := range removed {
		events = append(events, s.commitLocked(domain.EventEdgeRemoved, edgeID))
	}
	events = append(events, s.commitLocked(domain.EventNodeRemoved, id))
	s.mu.Unlock()

	s.logger.Debug("node removed", "node_id", id, "cascaded_edges", len(removed))
	for _, evt := range events {
		s.emit(evt)
	}
	return nil
}

// AddEdge inserts an edge. Both endpoints must already exist.
func (s *Store) AddEdge(edge domain.Edge) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.checkEdgeLocked(edge); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.edgeIndex(edge.ID) >= 0 {
		s.mu.Unlock()
		return &domain.DuplicateIDError{Entity: domain.EntityEdge, ID: edge.ID}
	}
	s.edges = append(s.edges, edge.Clone())
	evt := s.commitLocked(domain.EventEdgeAdded, edge.ID)
	s.mu.Unlock()

	s.emit(evt)
	return nil
}

// RemoveEdge deletes an edge.
func (s *Store) RemoveEdge(id string) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	i := s.edgeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("edge %q: %w", id, domain.ErrNotFound)
	}
	s.edges = slices.Delete(s.edges, i, i+1)
	evt := s.commitLocked(domain.EventEdgeRemoved, id)
	s.mu.Unlock()

	s.emit(evt)
	return nil
}

// UpdateNode applies fn to a copy of the node and stores the result if it
// still satisfies the graph invariants. The id cannot be changed.
func (s *Store) UpdateNode(id string, fn func(*domain.Node)) (domain.Node, error) {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return domain.Node{}, err
	}
	i := s.nodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Node{}, fmt.Errorf("node %q: %w", id, domain.ErrNotFound)
	}

	updated := s.nodes[i].Clone()
	fn(&updated)

	if updated.ID != id {
		s.mu.Unlock()
		return domain.Node{}, &domain.ValidationError{Field: "id", Msg: "идентификатор узла нельзя изменить"}
	}
	if s.kinds != nil && !s.kinds.Has(updated.Kind) {
		s.mu.Unlock()
		return domain.Node{}, &domain.UnknownKindError{Kind: updated.Kind}
	}
	if err := updated.Properties.Validate(); err != nil {
		s.mu.Unlock()
		return domain.Node{}, &domain.SchemaError{Field: "data.properties", Err: err}
	}
	s.nodes[i] = updated
	evt := s.commitLocked(domain.EventNodeUpdated, id)
	s.mu.Unlock()

	s.emit(evt)
	return updated.Clone(), nil
}

// UpdateEdge applies fn to a copy of the edge and stores the result if its
// endpoints still exist. The id cannot be changed.
func (s *Store) UpdateEdge(id string, fn func(*domain.Edge)) (domain.Edge, error) {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return domain.Edge{}, err
	}
	i := s.edgeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Edge{}, fmt.Errorf("edge %q: %w", id, domain.ErrNotFound)
	}

	updated := s.edges[i].Clone()
	fn(&updated)

	if updated.ID != id {
		s.mu.Unlock()
		return domain.Edge{}, &domain.ValidationError{Field: "id", Msg: "идентификатор связи нельзя изменить"}
	}
	if err := s.checkEdgeLocked(updated); err != nil {
		s.mu.Unlock()
		return domain.Edge{}, err
	}
	s.edges[i] = updated
	evt := s.commitLocked(domain.EventEdgeUpdated, id)
	s.mu.Unlock()

	s.emit(evt)
	return updated.Clone(), nil
}

// ReplaceAll swaps the whole graph atomically. The new graph is validated
// first; on any violation the store is left untouched and a SchemaError
// wrapping the specific cause is returned.
func (s *Store) ReplaceAll(nodes []domain.Node, edges []domain.Edge) error {
	next := domain.Snapshot{Nodes: nodes, Edges: edges}.Clone()
	if err := domain.Validate(next, s.kinds); err != nil {
		if _, ok := err.(*domain.SchemaError); ok {
			return err
		}
		return &domain.SchemaError{Err: err}
	}

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.nodes, s.edges = next.Nodes, next.Edges
	evt := s.commitLocked(domain.EventReplaced, "")
	s.mu.Unlock()

	s.logger.Debug("graph replaced", "nodes", len(nodes), "edges", len(edges), "version", evt.Version)
	s.emit(evt)
	return nil
}

// Select records a weak reference to the node or edge with the given id.
func (s *Store) Select(id string) (domain.Selection, error) {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return domain.Selection{}, err
	}
	var sel domain.Selection
	switch {
	case s.nodeIndex(id) >= 0:
		sel = domain.Selection{ID: id, Entity: domain.EntityNode}
	case s.edgeIndex(id) >= 0:
		sel = domain.Selection{ID: id, Entity: domain.EntityEdge}
	default:
		s.mu.Unlock()
		return domain.Selection{}, fmt.Errorf("select %q: %w", id, domain.ErrNotFound)
	}
	s.selection = &sel
	evt := s.commitLocked(domain.EventSelectionChanged, id)
	s.mu.Unlock()

	s.emit(evt)
	return sel, nil
}

// ClearSelection drops the selection, if any.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	if s.closed || s.selection == nil {
		s.mu.Unlock()
		return
	}
	s.selection = nil
	evt := s.commitLocked(domain.EventSelectionChanged, "")
	s.mu.Unlock()

	s.emit(evt)
}

// Selection resolves the weak reference. It reports false when nothing is
// selected or the selected entity no longer exists.
func (s *Store) Selection() (domain.Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return domain.Selection{}, false
	}
	sel := *s.selection
	switch sel.Entity {
	case domain.EntityNode:
		if s.nodeIndex(sel.ID) >= 0 {
			return sel, true
		}
	case domain.EntityEdge:
		if s.edgeIndex(sel.ID) >= 0 {
			return sel, true
		}
	}
	return domain.Selection{}, false
}

// Subscribe registers a listener for graph events. The returned function
// unregisters it and closes the channel. Slow listeners miss events.
func (s *Store) Subscribe() (<-chan domain.GraphEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.GraphEvent, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
	}
}

// Close ends the store lifecycle. Subscriber channels are closed and further
// mutations fail with ErrClosed. Reads keep working.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return domain.ErrClosed
	}
	return nil
}

func (s *Store) checkEdgeLocked(edge domain.Edge) error {
	if edge.ID == "" {
		return &domain.SchemaError{Field: "id", Msg: "required field is missing"}
	}
	if s.nodeIndex(edge.Source) < 0 {
		return &domain.DanglingReferenceError{EdgeID: edge.ID, End: "source", NodeID: edge.Source}
	}
	if s.nodeIndex(edge.Target) < 0 {
		return &domain.DanglingReferenceError{EdgeID: edge.ID, End: "target", NodeID: edge.Target}
	}
	if err := edge.Properties.Validate(); err != nil {
		return &domain.SchemaError{Field: "data.properties", Err: err}
	}
	return nil
}

// commitLocked bumps the version, fans the event out to subscribers and
// returns it for the hooks. Callers hold the write lock.
func (s *Store) commitLocked(typ domain.EventType, entityID string) domain.GraphEvent {
	s.version++
	evt := domain.GraphEvent{
		Timestamp: time.Now(),
		Type:      typ,
		EntityID:  entityID,
		Version:   s.version,
	}
	for ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
			s.logger.Warn("graph: subscriber buffer full, dropping event", "type", typ, "version", evt.Version)
		}
	}
	return evt
}

func (s *Store) emit(evt domain.GraphEvent) {
	if s.hooks.OnGraphChanged != nil {
		s.hooks.OnGraphChanged(context.Background(), &evt)
	}
}

func (s *Store) nodeIndex(id string) int {
	return slices.IndexFunc(s.nodes, func(n domain.Node) bool { return n.ID == id })
}

func (s *Store) edgeIndex(id string) int {
	return slices.IndexFunc(s.edges, func(e domain.Edge) bool { return e.ID == id })
}
