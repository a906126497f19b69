package domain

import (
	"encoding/json"
)

// Position is the diagram coordinate of a node.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a typed component of the network (pump, tank, source, sink...).
// Kind must name a registered palette entry.
type Node struct {
	ID         string
	Kind       string
	Label      string
	Properties Properties
	Position   Position
}

// Edge is a directed connection carrying flow-related properties.
type Edge struct {
	ID         string
	Source     string
	Target     string
	Properties Properties
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	n.Properties = n.Properties.Clone()
	return n
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	e.Properties = e.Properties.Clone()
	return e
}

// The wire shape matches the editor's flow-diagram nodes:
// {"id","type","data":{"label","properties"},"position":{"x","y"}}.
type nodeWire struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Data     nodeData `json:"data"`
	Position Position `json:"position"`
}

type nodeData struct {
	Label      string     `json:"label"`
	Properties Properties `json:"properties"`
}

type edgeWire struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Data   edgeData `json:"data"`
}

type edgeData struct {
	Properties Properties `json:"properties"`
}

// MarshalJSON encodes the node in wire shape.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeWire{
		ID:       n.ID,
		Type:     n.Kind,
		Data:     nodeData{Label: n.Label, Properties: n.Properties},
		Position: n.Position,
	})
}

// UnmarshalJSON decodes the wire shape.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = Node{
		ID:         w.ID,
		Kind:       w.Type,
		Label:      w.Data.Label,
		Properties: w.Data.Properties,
		Position:   w.Position,
	}
	return nil
}

// MarshalJSON encodes the edge in wire shape.
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(edgeWire{
		ID:     e.ID,
		Source: e.Source,
		Target: e.Target,
		Data:   edgeData{Properties: e.Properties},
	})
}

// UnmarshalJSON decodes the wire shape.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var w edgeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Edge{
		ID:         w.ID,
		Source:     w.Source,
		Target:     w.Target,
		Properties: w.Data.Properties,
	}
	return nil
}
