package domain

// EntityKind tells whether an id names a node or an edge.
type EntityKind string

const (
	EntityNode EntityKind = "node"
	EntityEdge EntityKind = "edge"
)

// PaletteEntry is a row of the type registry: a node kind with its display
// label, default properties and icon.
type PaletteEntry struct {
	Kind       string     `json:"type"`
	Label      string     `json:"label"`
	Properties Properties `json:"properties"`
	Icon       string     `json:"icon"`
}

// Clone returns a deep copy of the entry.
func (p PaletteEntry) Clone() PaletteEntry {
	p.Properties = p.Properties.Clone()
	return p
}

// KindSet answers whether a node kind is registered.
type KindSet interface {
	Has(kind string) bool
}

// Snapshot is a self-contained copy of a graph.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range s.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}

// Node looks up a node by id.
func (s Snapshot) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge looks up an edge by id.
func (s Snapshot) Edge(id string) (Edge, bool) {
	for _, e := range s.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// Validate checks the graph invariants in document order:
// node ids are unique and every kind is registered, edge ids are unique,
// and every edge endpoint names a node of the same snapshot.
// The first violation is returned as its typed error.
func Validate(s Snapshot, kinds KindSet) error {
	nodeIDs := make(map[string]struct{}, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID == "" {
			return &SchemaError{Field: fieldPath("nodes", i, "id"), Msg: "required field is missing"}
		}
		if _, seen := nodeIDs[n.ID]; seen {
			return &DuplicateIDError{Entity: EntityNode, ID: n.ID}
		}
		nodeIDs[n.ID] = struct{}{}
		if kinds != nil && !kinds.Has(n.Kind) {
			return &UnknownKindError{Kind: n.Kind}
		}
		if err := n.Properties.Validate(); err != nil {
			return &SchemaError{Field: fieldPath("nodes", i, "data.properties"), Err: err}
		}
	}

	edgeIDs := make(map[string]struct{}, len(s.Edges))
	for i, e := range s.Edges {
		if e.ID == "" {
			return &SchemaError{Field: fieldPath("edges", i, "id"), Msg: "required field is missing"}
		}
		if _, seen := edgeIDs[e.ID]; seen {
			return &DuplicateIDError{Entity: EntityEdge, ID: e.ID}
		}
		edgeIDs[e.ID] = struct{}{}
		if _, ok := nodeIDs[e.Source]; !ok {
			return &DanglingReferenceError{EdgeID: e.ID, End: "source", NodeID: e.Source}
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			return &DanglingReferenceError{EdgeID: e.ID, End: "target", NodeID: e.Target}
		}
		if err := e.Properties.Validate(); err != nil {
			return &SchemaError{Field: fieldPath("edges", i, "data.properties"), Err: err}
		}
	}
	return nil
}

// Selection is a weak reference to the currently selected node or edge.
// It never owns the entity and is resolved against the graph on every read.
type Selection struct {
	ID     string     `json:"id"`
	Entity EntityKind `json:"entity"`
}
