package domain

// GraphDiff lists what a replacement changed, by id.
// It is serialized to JSON for partial updates on the client.
type GraphDiff struct {
	AddedNodes   []string `json:"added_nodes,omitempty"`
	RemovedNodes []string `json:"removed_nodes,omitempty"`
	ChangedNodes []string `json:"changed_nodes,omitempty"`
	AddedEdges   []string `json:"added_edges,omitempty"`
	RemovedEdges []string `json:"removed_edges,omitempty"`
	ChangedEdges []string `json:"changed_edges,omitempty"`
}

// Diff calculates the difference between two snapshots.
// Ids are reported in the order they appear in the snapshot that holds them.
func Diff(before, after Snapshot) GraphDiff {
	var d GraphDiff

	oldNodes := make(map[string]Node, len(before.Nodes))
	for _, n := range before.Nodes {
		oldNodes[n.ID] = n
	}
	newNodes := make(map[string]struct{}, len(after.Nodes))
	for _, n := range after.Nodes {
		newNodes[n.ID] = struct{}{}
		old, ok := oldNodes[n.ID]
		switch {
		case !ok:
			d.AddedNodes = append(d.AddedNodes, n.ID)
		case !nodesEqual(old, n):
			d.ChangedNodes = append(d.ChangedNodes, n.ID)
		}
	}
	for _, n := range before.Nodes {
		if _, ok := newNodes[n.ID]; !ok {
			d.RemovedNodes = append(d.RemovedNodes, n.ID)
		}
	}

	oldEdges := make(map[string]Edge, len(before.Edges))
	for _, e := range before.Edges {
		oldEdges[e.ID] = e
	}
	newEdges := make(map[string]struct{}, len(after.Edges))
	for _, e := range after.Edges {
		newEdges[e.ID] = struct{}{}
		old, ok := oldEdges[e.ID]
		switch {
		case !ok:
			d.AddedEdges = append(d.AddedEdges, e.ID)
		case !edgesEqual(old, e):
			d.ChangedEdges = append(d.ChangedEdges, e.ID)
		}
	}
	for _, e := range before.Edges {
		if _, ok := newEdges[e.ID]; !ok {
			d.RemovedEdges = append(d.RemovedEdges, e.ID)
		}
	}

	return d
}

// IsEmpty checks if the diff contains any change.
func (d GraphDiff) IsEmpty() bool {
	return len(d.AddedNodes) == 0 &&
		len(d.RemovedNodes) == 0 &&
		len(d.ChangedNodes) == 0 &&
		len(d.AddedEdges) == 0 &&
		len(d.RemovedEdges) == 0 &&
		len(d.ChangedEdges) == 0
}

func nodesEqual(a, b Node) bool {
	return a.Kind == b.Kind &&
		a.Label == b.Label &&
		a.Position == b.Position &&
		a.Properties.Equal(b.Properties)
}

func edgesEqual(a, b Edge) bool {
	return a.Source == b.Source &&
		a.Target == b.Target &&
		a.Properties.Equal(b.Properties)
}
