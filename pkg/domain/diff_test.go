package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDiff(t *testing.T) {
	pump := Node{ID: "pump-1", Kind: "pumpStation", Label: "Насос", Properties: NewProperties(Property{"Мощность", Text("100 л/с")})}
	tank := Node{ID: "tank-1", Kind: "drinkingWaterTank", Label: "Резервуар"}
	edge := Edge{ID: "e1", Source: "pump-1", Target: "tank-1"}

	tests := []struct {
		name   string
		before Snapshot
		after  Snapshot
		want   GraphDiff
	}{
		{
			name:   "No Changes",
			before: Snapshot{Nodes: []Node{pump, tank}, Edges: []Edge{edge}},
			after:  Snapshot{Nodes: []Node{pump, tank}, Edges: []Edge{edge}},
			want:   GraphDiff{},
		},
		{
			name:   "Initial Load",
			before: Snapshot{},
			after:  Snapshot{Nodes: []Node{pump, tank}, Edges: []Edge{edge}},
			want: GraphDiff{
				AddedNodes: []string{"pump-1", "tank-1"},
				AddedEdges: []string{"e1"},
			},
		},
		{
			name:   "Node Removed With Its Edge",
			before: Snapshot{Nodes: []Node{pump, tank}, Edges: []Edge{edge}},
			after:  Snapshot{Nodes: []Node{pump}},
			want: GraphDiff{
				RemovedNodes: []string{"tank-1"},
				RemovedEdges: []string{"e1"},
			},
		},
		{
			name:   "Property Changed",
			before: Snapshot{Nodes: []Node{pump}},
			after: Snapshot{Nodes: []Node{{
				ID: "pump-1", Kind: "pumpStation", Label: "Насос",
				Properties: NewProperties(Property{"Мощность", Text("200 л/с")}),
			}}},
			want: GraphDiff{ChangedNodes: []string{"pump-1"}},
		},
		{
			name:   "Edge Retargeted",
			before: Snapshot{Nodes: []Node{pump, tank}, Edges: []Edge{edge}},
			after:  Snapshot{Nodes: []Node{pump, tank}, Edges: []Edge{{ID: "e1", Source: "tank-1", Target: "pump-1"}}},
			want:   GraphDiff{ChangedEdges: []string{"e1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.before, tt.after)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %+v, want %+v", got, tt.want)
			}
			if got.IsEmpty() != tt.want.IsEmpty() {
				t.Errorf("IsEmpty() = %v, want %v", got.IsEmpty(), tt.want.IsEmpty())
			}
		})
	}
}

func TestDiff_JSON(t *testing.T) {
	d := GraphDiff{AddedNodes: []string{"a"}}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != `{"added_nodes":["a"]}` {
		t.Errorf("unexpected json: %s", b)
	}
}
