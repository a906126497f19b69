package palette

import (
	"fmt"
	"strconv"

	"github.com/aretw0/aqueduct/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Properties decodes a YAML mapping into ordered domain properties.
// Plain integers and floats become Numbers, strings become Text; any other
// node (sequence, nested mapping, bool, null) is rejected.
type Properties struct {
	domain.Properties
}

// UnmarshalYAML walks the mapping node pairwise to keep document order.
func (p *Properties) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", value.Line)
	}

	var out domain.Properties
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		v, err := scalarValue(val)
		if err != nil {
			return fmt.Errorf("line %d: property %q: %w", val.Line, key.Value, err)
		}
		out.Set(key.Value, v)
	}
	p.Properties = out
	return nil
}

func scalarValue(n *yaml.Node) (domain.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return domain.Value{}, domain.ErrNonScalar
	}
	switch n.Tag {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Number(f), nil
	case "!!str":
		return domain.Text(n.Value), nil
	default:
		return domain.Value{}, domain.ErrNonScalar
	}
}

type entryDoc struct {
	Kind       string     `yaml:"type"`
	Label      string     `yaml:"label"`
	Icon       string     `yaml:"icon"`
	Properties Properties `yaml:"properties"`
}

type nodeDoc struct {
	ID         string          `yaml:"id"`
	Kind       string          `yaml:"type"`
	Label      string          `yaml:"label"`
	Position   domain.Position `yaml:"position"`
	Properties Properties      `yaml:"properties"`
}

type edgeDoc struct {
	ID         string     `yaml:"id"`
	Source     string     `yaml:"source"`
	Target     string     `yaml:"target"`
	Properties Properties `yaml:"properties"`
}

type snapshotDoc struct {
	Nodes []nodeDoc `yaml:"nodes"`
	Edges []edgeDoc `yaml:"edges"`
}

func decodeEntries(data []byte) ([]domain.PaletteEntry, error) {
	var docs []entryDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	entries := make([]domain.PaletteEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, domain.PaletteEntry{
			Kind:       d.Kind,
			Label:      d.Label,
			Icon:       d.Icon,
			Properties: d.Properties.Properties,
		})
	}
	return entries, nil
}

// DecodeSnapshot reads a network described in YAML:
// a mapping with "nodes" and "edges" sequences.
func DecodeSnapshot(data []byte) (domain.Snapshot, error) {
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.Snapshot{}, err
	}
	s := domain.Snapshot{
		Nodes: make([]domain.Node, 0, len(doc.Nodes)),
		Edges: make([]domain.Edge, 0, len(doc.Edges)),
	}
	for _, n := range doc.Nodes {
		s.Nodes = append(s.Nodes, domain.Node{
			ID:         n.ID,
			Kind:       n.Kind,
			Label:      n.Label,
			Position:   n.Position,
			Properties: n.Properties.Properties,
		})
	}
	for _, e := range doc.Edges {
		s.Edges = append(s.Edges, domain.Edge{
			ID:         e.ID,
			Source:     e.Source,
			Target:     e.Target,
			Properties: e.Properties.Properties,
		})
	}
	return s, nil
}
