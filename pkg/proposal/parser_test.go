package proposal_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/aretw0/aqueduct/pkg/proposal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
  "suggestions": ["Увеличить производительность насоса до 120 л/с"],
  "modified": {
    "nodes": [
      {"id": "A", "type": "river", "data": {"label": "Река", "properties": {"Уровень воды": "Переменный"}}, "position": {"x": 0, "y": 0}},
      {"id": "B2", "type": "pump_station", "data": {"label": "Насосная станция", "properties": {"Производительность": "120 л/с", "Напор": 20}}, "position": {"x": 0, "y": 150}},
      {"id": "C", "type": "drinking_water_tank", "data": {"label": "Резервуар", "properties": {}}, "position": {"x": 0, "y": 300}}
    ],
    "edges": [
      {"id": "e1", "source": "A", "target": "B2", "data": {"properties": {"Скорость потока": 120}}},
      {"id": "e2", "source": "B2", "target": "C", "data": {"properties": {}}}
    ]
  }
}`

func newParser() *proposal.Parser {
	return proposal.NewParser(palette.Default())
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "\n  ```json\n{\"a\":1}\n```  \n", `{"a":1}`},
		{"fenced plain text", "```\nhello world\n```", "hello world"},
		{"not fenced", `{"a":1}`, `{"a":1}`},
		{"other language", "```python\nprint(1)\n```", "```python\nprint(1)\n```"},
		{"only opening fence", "```json\n{\"a\":1}", "```json\n{\"a\":1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, proposal.Unwrap(tt.in))
		})
	}
}

func TestUnwrap_Idempotent(t *testing.T) {
	inputs := []string{
		`{"suggestions":[],"modified":{"nodes":[],"edges":[]}}`,
		"plain text",
		"```json\n{\"a\":1}\n```",
	}
	for _, in := range inputs {
		once := proposal.Unwrap(in)
		assert.Equal(t, once, proposal.Unwrap(once))
	}
	assert.Equal(t, inputs[0], proposal.Unwrap(inputs[0]))
}

func TestParse_Valid(t *testing.T) {
	got, err := newParser().Parse(validResponse)
	require.NoError(t, err)

	assert.Equal(t, []string{"Увеличить производительность насоса до 120 л/с"}, got.Suggestions)
	require.Len(t, got.Nodes, 3)
	require.Len(t, got.Edges, 2)
	assert.Equal(t, "B2", got.Edges[0].Target)
	assert.Equal(t, []string{"Производительность", "Напор"}, got.Nodes[1].Properties.Keys())

	head, _ := got.Nodes[1].Properties.Get("Напор")
	assert.True(t, head.IsNumber())
}

func TestParse_Fenced(t *testing.T) {
	got, err := newParser().Parse("```json\n" + validResponse + "\n```")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 3)
}

func TestParse_Defaults(t *testing.T) {
	raw := `{"suggestions":[],"modified":{"nodes":[{"id":"n1","type":"aerotank"}],"edges":[]}}`

	got, err := newParser().Parse(raw)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "Аэротенк", got.Nodes[0].Label)
	assert.Equal(t, domain.Position{}, got.Nodes[0].Position)
	assert.Equal(t, 0, got.Nodes[0].Properties.Len())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   error
		wantField string
	}{
		{
			name:    "not json",
			raw:     "Извините, я не могу помочь",
			wantErr: domain.ErrMalformedResponse,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: domain.ErrMalformedResponse,
		},
		{
			name:      "top-level array",
			raw:       `[]`,
			wantErr:   domain.ErrSchema,
			wantField: "(root)",
		},
		{
			name:      "missing suggestions",
			raw:       `{"modified":{"nodes":[],"edges":[]}}`,
			wantErr:   domain.ErrSchema,
			wantField: "suggestions",
		},
		{
			name:      "suggestions not strings",
			raw:       `{"suggestions":[1],"modified":{"nodes":[],"edges":[]}}`,
			wantErr:   domain.ErrSchema,
			wantField: "suggestions",
		},
		{
			name:      "missing modified",
			raw:       `{"suggestions":[]}`,
			wantErr:   domain.ErrSchema,
			wantField: "modified",
		},
		{
			name:      "missing edges",
			raw:       `{"suggestions":[],"modified":{"nodes":[]}}`,
			wantErr:   domain.ErrSchema,
			wantField: "modified.edges",
		},
		{
			name:      "nodes not array",
			raw:       `{"suggestions":[],"modified":{"nodes":{},"edges":[]}}`,
			wantErr:   domain.ErrSchema,
			wantField: "modified.nodes",
		},
		{
			name:      "node missing type",
			raw:       `{"suggestions":[],"modified":{"nodes":[{"id":"a","type":"river"},{"id":"b","type":"river"},{"id":"c"}],"edges":[]}}`,
			wantErr:   domain.ErrSchema,
			wantField: "modified.nodes[2].type",
		},
		{
			name:      "edge missing target",
			raw:       `{"suggestions":[],"modified":{"nodes":[{"id":"a","type":"river"}],"edges":[{"id":"e","source":"a"}]}}`,
			wantErr:   domain.ErrSchema,
			wantField: "modified.edges[0].target",
		},
		{
			name:      "nested property",
			raw:       `{"suggestions":[],"modified":{"nodes":[{"id":"a","type":"river","data":{"properties":{"x":{"y":1}}}}],"edges":[]}}`,
			wantErr:   domain.ErrNonScalar,
			wantField: "modified.nodes[0].data.properties",
		},
		{
			name:    "unknown kind",
			raw:     `{"suggestions":[],"modified":{"nodes":[{"id":"a","type":"volcano"}],"edges":[]}}`,
			wantErr: domain.ErrUnknownKind,
		},
		{
			name:    "dangling edge",
			raw:     `{"suggestions":[],"modified":{"nodes":[{"id":"a","type":"river"}],"edges":[{"id":"e","source":"a","target":"z"}]}}`,
			wantErr: domain.ErrDanglingReference,
		},
		{
			name:    "duplicate node",
			raw:     `{"suggestions":[],"modified":{"nodes":[{"id":"a","type":"river"},{"id":"a","type":"house"}],"edges":[]}}`,
			wantErr: domain.ErrDuplicateID,
		},
		{
			name:    "duplicate edge",
			raw:     `{"suggestions":[],"modified":{"nodes":[{"id":"a","type":"river"}],"edges":[{"id":"e","source":"a","target":"a"},{"id":"e","source":"a","target":"a"}]}}`,
			wantErr: domain.ErrDuplicateID,
		},
	}

	p := newParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Empty(t, got.Nodes)
			assert.Empty(t, got.Suggestions)

			if tt.wantField != "" {
				var schema *domain.SchemaError
				require.ErrorAs(t, err, &schema)
				assert.Equal(t, tt.wantField, schema.Field)
			}
		})
	}
}

func TestParseReader(t *testing.T) {
	got, err := newParser().ParseReader(strings.NewReader(validResponse))
	require.NoError(t, err)
	assert.Len(t, got.Edges, 2)
}
