package proposal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/pkg/domain"
)

// LabelSource provides default labels for nodes the backend left unnamed.
// The palette satisfies it.
type LabelSource interface {
	Lookup(kind string) (domain.PaletteEntry, bool)
}

// Parser turns raw backend output into a validated replacement graph.
// It is stateless and safe for concurrent use.
type Parser struct {
	kinds  domain.KindSet
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used to trace rejected responses.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a parser that accepts only kinds in the given set.
func NewParser(kinds domain.KindSet, opts ...Option) *Parser {
	p := &Parser{
		kinds:  kinds,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseReader reads all of r and parses it.
func (p *Parser) ParseReader(r io.Reader) (domain.ValidatedProposal, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.ValidatedProposal{}, fmt.Errorf("failed to read response: %w", err)
	}
	return p.Parse(string(data))
}

// Parse unwraps, decodes, shape-checks and semantically checks raw.
// The result is all-or-nothing: on error the proposal is empty.
func (p *Parser) Parse(raw string) (domain.ValidatedProposal, error) {
	out, err := p.parse(raw)
	if err != nil {
		p.logger.Debug("proposal rejected", "err", err, "size", len(raw))
		return domain.ValidatedProposal{}, err
	}
	return out, nil
}

func (p *Parser) parse(raw string) (domain.ValidatedProposal, error) {
	body := []byte(Unwrap(raw))

	if !json.Valid(body) {
		var probe any
		err := json.Unmarshal(body, &probe)
		return domain.ValidatedProposal{}, &domain.MalformedResponseError{Err: err}
	}

	top, err := object(body, "")
	if err != nil {
		return domain.ValidatedProposal{}, err
	}

	rawSuggestions, err := required(top, "suggestions", "")
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	var suggestions []string
	if err := json.Unmarshal(rawSuggestions, &suggestions); err != nil {
		return domain.ValidatedProposal{}, &domain.SchemaError{Field: "suggestions", Msg: "must be an array of strings"}
	}

	rawModified, err := required(top, "modified", "")
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	modified, err := object(rawModified, "modified")
	if err != nil {
		return domain.ValidatedProposal{}, err
	}

	rawNodes, err := array(modified, "nodes", "modified")
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	rawEdges, err := array(modified, "edges", "modified")
	if err != nil {
		return domain.ValidatedProposal{}, err
	}

	nodes := make([]domain.Node, 0, len(rawNodes))
	for i, rn := range rawNodes {
		n, err := p.decodeNode(rn, "modified.nodes["+strconv.Itoa(i)+"]")
		if err != nil {
			return domain.ValidatedProposal{}, err
		}
		nodes = append(nodes, n)
	}

	edges := make([]domain.Edge, 0, len(rawEdges))
	for i, re := range rawEdges {
		e, err := decodeEdge(re, "modified.edges["+strconv.Itoa(i)+"]")
		if err != nil {
			return domain.ValidatedProposal{}, err
		}
		edges = append(edges, e)
	}

	if err := domain.Validate(domain.Snapshot{Nodes: nodes, Edges: edges}, p.kinds); err != nil {
		return domain.ValidatedProposal{}, err
	}

	if suggestions == nil {
		suggestions = []string{}
	}
	return domain.ValidatedProposal{
		Suggestions: suggestions,
		Nodes:       nodes,
		Edges:       edges,
	}, nil
}

func (p *Parser) decodeNode(data json.RawMessage, path string) (domain.Node, error) {
	obj, err := object(data, path)
	if err != nil {
		return domain.Node{}, err
	}
	var n domain.Node
	if n.ID, err = requiredString(obj, "id", path); err != nil {
		return domain.Node{}, err
	}
	if n.Kind, err = requiredString(obj, "type", path); err != nil {
		return domain.Node{}, err
	}

	if rawData, ok := present(obj, "data"); ok {
		d, err := object(rawData, join(path, "data"))
		if err != nil {
			return domain.Node{}, err
		}
		if n.Label, err = optionalString(d, "label", join(path, "data")); err != nil {
			return domain.Node{}, err
		}
		if n.Properties, err = properties(d, join(path, "data")); err != nil {
			return domain.Node{}, err
		}
	}
	if n.Label == "" {
		if src, ok := p.kinds.(LabelSource); ok {
			if entry, found := src.Lookup(n.Kind); found {
				n.Label = entry.Label
			}
		}
	}

	if rawPos, ok := present(obj, "position"); ok {
		if err := json.Unmarshal(rawPos, &n.Position); err != nil {
			return domain.Node{}, &domain.SchemaError{Field: join(path, "position"), Msg: "must be an object with numeric x and y"}
		}
	}
	return n, nil
}

func decodeEdge(data json.RawMessage, path string) (domain.Edge, error) {
	obj, err := object(data, path)
	if err != nil {
		return domain.Edge{}, err
	}
	var e domain.Edge
	if e.ID, err = requiredString(obj, "id", path); err != nil {
		return domain.Edge{}, err
	}
	if e.Source, err = requiredString(obj, "source", path); err != nil {
		return domain.Edge{}, err
	}
	if e.Target, err = requiredString(obj, "target", path); err != nil {
		return domain.Edge{}, err
	}
	if rawData, ok := present(obj, "data"); ok {
		d, err := object(rawData, join(path, "data"))
		if err != nil {
			return domain.Edge{}, err
		}
		if e.Properties, err = properties(d, join(path, "data")); err != nil {
			return domain.Edge{}, err
		}
	}
	return e, nil
}

func properties(obj map[string]json.RawMessage, path string) (domain.Properties, error) {
	raw, ok := present(obj, "properties")
	if !ok {
		return domain.Properties{}, nil
	}
	var props domain.Properties
	if err := json.Unmarshal(raw, &props); err != nil {
		return domain.Properties{}, &domain.SchemaError{Field: join(path, "properties"), Err: err}
	}
	return props, nil
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// present reports a key that exists and is not JSON null.
func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func required(obj map[string]json.RawMessage, key, path string) (json.RawMessage, error) {
	raw, ok := present(obj, key)
	if !ok {
		return nil, &domain.SchemaError{Field: join(path, key), Msg: "required field is missing"}
	}
	return raw, nil
}

func object(data json.RawMessage, path string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		field := path
		if field == "" {
			field = "(root)"
		}
		return nil, &domain.SchemaError{Field: field, Msg: "must be an object"}
	}
	return obj, nil
}

func array(obj map[string]json.RawMessage, key, path string) ([]json.RawMessage, error) {
	raw, err := required(obj, key, path)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &domain.SchemaError{Field: join(path, key), Msg: "must be an array"}
	}
	return items, nil
}

func requiredString(obj map[string]json.RawMessage, key, path string) (string, error) {
	raw, err := required(obj, key, path)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &domain.SchemaError{Field: join(path, key), Msg: "must be a string"}
	}
	if s == "" {
		return "", &domain.SchemaError{Field: join(path, key), Msg: "must not be empty"}
	}
	return s, nil
}

func optionalString(obj map[string]json.RawMessage, key, path string) (string, error) {
	raw, ok := present(obj, key)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &domain.SchemaError{Field: join(path, key), Msg: "must be a string"}
	}
	return s, nil
}
