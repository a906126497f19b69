package domain

import (
	"encoding/json"
	"strconv"
)

// ValidatedProposal is a backend proposal that passed shape and semantic checks.
// It is only ever produced whole; there are no partially validated proposals.
type ValidatedProposal struct {
	Suggestions []string
	Nodes       []Node
	Edges       []Edge
}

// Snapshot returns the replacement graph carried by the proposal.
func (p ValidatedProposal) Snapshot() Snapshot {
	return Snapshot{Nodes: p.Nodes, Edges: p.Edges}.Clone()
}

type proposalWire struct {
	Suggestions []string `json:"suggestions"`
	Modified    Snapshot `json:"modified"`
}

// MarshalJSON encodes the outbound response shape
// {"suggestions": [...], "modified": {"nodes": [...], "edges": [...]}}.
func (p ValidatedProposal) MarshalJSON() ([]byte, error) {
	w := proposalWire{
		Suggestions: p.Suggestions,
		Modified:    Snapshot{Nodes: p.Nodes, Edges: p.Edges},
	}
	if w.Suggestions == nil {
		w.Suggestions = []string{}
	}
	if w.Modified.Nodes == nil {
		w.Modified.Nodes = []Node{}
	}
	if w.Modified.Edges == nil {
		w.Modified.Edges = []Edge{}
	}
	return json.Marshal(w)
}

func fieldPath(collection string, index int, field string) string {
	return collection + "[" + strconv.Itoa(index) + "]." + field
}
