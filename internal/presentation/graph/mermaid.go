package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/aqueduct/pkg/domain"
)

// Overlay contains interaction state to highlight on the diagram.
type Overlay struct {
	Selected string
	// Flagged lists nodes with advisories.
	Flagged []string
}

// GenerateMermaid produces a Mermaid flowchart of the network.
// It applies semantic styling by kind:
// - Sources and sinks (river, house, water_intake): ([Stadium])
// - Tanks and clarifiers: [(Cylinder)]
// - Stations and treatment units: [[Subroutine]]
// - Default: [Rectangle]
// Edge labels list the edge properties in order.
func GenerateMermaid(snap domain.Snapshot, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range snap.Nodes {
		opener, closer := shape(node.Kind)
		label := node.Label
		if label == "" {
			label = node.ID
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(node.ID), opener, escape(label), closer))
	}

	for _, edge := range snap.Edges {
		from, to := sanitizeMermaidID(edge.Source), sanitizeMermaidID(edge.Target)
		if edge.Properties.Len() == 0 {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, to))
			continue
		}
		parts := make([]string, 0, edge.Properties.Len())
		for _, p := range edge.Properties.Pairs() {
			parts = append(parts, fmt.Sprintf("%s: %s", p.Key, p.Value.String()))
		}
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", from, escape(strings.Join(parts, "<br/>")), to))
	}

	if overlay != nil && (overlay.Selected != "" || len(overlay.Flagged) > 0) {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme
		sb.WriteString("    classDef flagged fill:#ffebee,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Flagged {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s flagged;\n", safeID))
			}
		}
		if overlay.Selected != "" {
			sb.WriteString(fmt.Sprintf("    class %s selected;\n", sanitizeMermaidID(overlay.Selected)))
		}
	}

	return sb.String()
}

func shape(kind string) (string, string) {
	switch kind {
	case "river", "house", "water_intake":
		return "([", "])"
	case "drinking_water_tank", "sedimentation_tank", "primary_sedimentation_tank",
		"secondary_sedimentation_tank", "aerotank":
		return "[(", ")]"
	case "pump_station", "filter", "grates", "sand_trap", "mixer":
		return "[[", "]]"
	}
	return "[", "]"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// sanitizeMermaidID maps an id onto the characters Mermaid accepts.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
