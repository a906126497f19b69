package prompt

import (
	"strings"

	"github.com/aretw0/aqueduct/pkg/domain"
)

// Arrow separates components in chain notation.
const Arrow = " → "

// Chain renders a snapshot in component-chain notation, one chain per line:
//
//	Река (Поверхностные воды, Переменный) → Насосная станция (100 л/с, 20 м, 30 кВт)
//
// Chains start at nodes without incoming edges and follow the first unvisited
// outgoing edge. Nodes left over (cycles) start chains of their own.
func Chain(snap domain.Snapshot) string {
	incoming := make(map[string]int, len(snap.Nodes))
	outgoing := make(map[string][]string, len(snap.Nodes))
	for _, e := range snap.Edges {
		incoming[e.Target]++
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}
	byID := make(map[string]domain.Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		byID[n.ID] = n
	}

	visited := make(map[string]bool, len(snap.Nodes))
	var lines []string

	walk := func(start string) {
		var parts []string
		for id := start; id != ""; {
			visited[id] = true
			parts = append(parts, describe(byID[id]))
			next := ""
			for _, t := range outgoing[id] {
				if _, ok := byID[t]; ok && !visited[t] {
					next = t
					break
				}
			}
			id = next
		}
		lines = append(lines, strings.Join(parts, Arrow))
	}

	for _, n := range snap.Nodes {
		if incoming[n.ID] == 0 && !visited[n.ID] {
			walk(n.ID)
		}
	}
	for _, n := range snap.Nodes {
		if !visited[n.ID] {
			walk(n.ID)
		}
	}
	return strings.Join(lines, "\n")
}

func describe(n domain.Node) string {
	label := n.Label
	if label == "" {
		label = n.Kind
	}
	pairs := n.Properties.Pairs()
	if len(pairs) == 0 {
		return label
	}
	values := make([]string, len(pairs))
	for i, p := range pairs {
		values[i] = p.Value.String()
	}
	return label + " (" + strings.Join(values, ", ") + ")"
}
