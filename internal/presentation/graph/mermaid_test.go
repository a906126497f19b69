package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/aqueduct/internal/presentation/graph"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		snap     domain.Snapshot
		contains []string
	}{
		{
			name: "Shapes By Kind",
			snap: domain.Snapshot{Nodes: []domain.Node{
				{ID: "r", Kind: "river", Label: "Река"},
				{ID: "t", Kind: "drinking_water_tank", Label: "Резервуар"},
				{ID: "p", Kind: "pump_station", Label: "Насосная станция"},
				{ID: "x", Kind: "unknown"},
			}},
			contains: []string{
				"r([\"Река\"])",
				"t[(\"Резервуар\")]",
				"p[[\"Насосная станция\"]]",
				"x[\"x\"]",
			},
		},
		{
			name: "ID Sanitization",
			snap: domain.Snapshot{
				Nodes: []domain.Node{{ID: "B'", Kind: "pump_station", Label: "B"}, {ID: "pump-1", Kind: "house", Label: "H"}},
				Edges: []domain.Edge{{ID: "e", Source: "B'", Target: "pump-1"}},
			},
			contains: []string{
				"B_[[\"B\"]]",
				"pump_1([\"H\"])",
				"B_ --> pump_1",
			},
		},
		{
			name: "Edge Properties And Escaping",
			snap: domain.Snapshot{
				Nodes: []domain.Node{{ID: "a", Label: "Say \"hi\""}, {ID: "b"}},
				Edges: []domain.Edge{{ID: "e", Source: "a", Target: "b", Properties: domain.NewProperties(
					domain.Property{Key: "Скорость потока", Value: domain.Number(100)},
					domain.Property{Key: "Потери на трение", Value: domain.Number(0.03)},
				)}},
			},
			contains: []string{
				"a[\"Say 'hi'\"]",
				"a -- \"Скорость потока: 100<br/>Потери на трение: 0.03\" --> b",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.snap, nil)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, "Overlay Styles")
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	snap := palette.SeedSnapshot()
	got := graph.GenerateMermaid(snap, &graph.Overlay{
		Selected: "pump-1",
		Flagged:  []string{"drinking-tank-1", "drinking-tank-1"},
	})

	assert.Contains(t, got, "class pump_1 selected;")
	assert.Equal(t, 1, strings.Count(got, "class drinking_tank_1 flagged;"))
	assert.Contains(t, got, "river_source --")
}
