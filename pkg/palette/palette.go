package palette

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/google/uuid"
)

//go:embed palette.yaml
var defaultPalette []byte

//go:embed seed.yaml
var seedNetwork []byte

var defaultEntries = sync.OnceValues(func() ([]domain.PaletteEntry, error) {
	return decodeEntries(defaultPalette)
})

// IDFunc generates a node id for the given kind.
type IDFunc func(kind string) string

// Palette is the closed set of node kinds with their default property templates.
// It is immutable after construction and safe for concurrent use.
type Palette struct {
	entries []domain.PaletteEntry
	index   map[string]int
	newID   IDFunc
}

// Option configures a Palette.
type Option func(*Palette)

// WithIDFunc replaces the id generator used by Create.
func WithIDFunc(fn IDFunc) Option {
	return func(p *Palette) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// NewID returns "<kind>-<uuid>".
func NewID(kind string) string {
	return kind + "-" + uuid.NewString()
}

// New builds a palette from entries, keeping their order.
// Empty or repeated kinds are rejected.
func New(entries []domain.PaletteEntry, opts ...Option) (*Palette, error) {
	p := &Palette{
		entries: make([]domain.PaletteEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		newID:   NewID,
	}
	for i, e := range entries {
		if e.Kind == "" {
			return nil, fmt.Errorf("palette entry %d: kind is required", i)
		}
		if _, dup := p.index[e.Kind]; dup {
			return nil, &domain.DuplicateIDError{Entity: "kind", ID: e.Kind}
		}
		if err := e.Properties.Validate(); err != nil {
			return nil, fmt.Errorf("palette entry %q: %w", e.Kind, err)
		}
		p.index[e.Kind] = len(p.entries)
		p.entries = append(p.entries, e.Clone())
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Default returns the built-in palette of water-supply and wastewater components.
func Default(opts ...Option) *Palette {
	entries, err := defaultEntries()
	if err != nil {
		panic(fmt.Sprintf("palette: embedded palette.yaml is invalid: %v", err))
	}
	p, err := New(entries, opts...)
	if err != nil {
		panic(fmt.Sprintf("palette: embedded palette.yaml is invalid: %v", err))
	}
	return p
}

// Load reads a palette file (YAML or JSON, chosen by extension).
func Load(path string, opts ...Option) (*Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read palette: %w", err)
	}

	var entries []domain.PaletteEntry
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse palette json: %w", err)
		}
	} else {
		entries, err = decodeEntries(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse palette yaml: %w", err)
		}
	}
	return New(entries, opts...)
}

// Lookup returns a copy of the entry registered for kind.
func (p *Palette) Lookup(kind string) (domain.PaletteEntry, bool) {
	i, ok := p.index[kind]
	if !ok {
		return domain.PaletteEntry{}, false
	}
	return p.entries[i].Clone(), true
}

// Has reports whether kind is registered.
func (p *Palette) Has(kind string) bool {
	_, ok := p.index[kind]
	return ok
}

// Kinds returns the registered kinds in palette order.
func (p *Palette) Kinds() []string {
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Kind
	}
	return out
}

// Entries returns copies of all entries in palette order.
func (p *Palette) Entries() []domain.PaletteEntry {
	out := make([]domain.PaletteEntry, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Clone()
	}
	return out
}

// Create makes a new node of kind at pos with a fresh id, the palette label
// and a private copy of the default properties.
func (p *Palette) Create(kind string, pos domain.Position) (domain.Node, error) {
	entry, ok := p.Lookup(kind)
	if !ok {
		return domain.Node{}, &domain.UnknownKindError{Kind: kind}
	}
	return domain.Node{
		ID:         p.newID(kind),
		Kind:       kind,
		Label:      entry.Label,
		Properties: entry.Properties,
		Position:   pos,
	}, nil
}

// SeedSnapshot returns the demo network used by a fresh workspace.
func SeedSnapshot() domain.Snapshot {
	s, err := DecodeSnapshot(seedNetwork)
	if err != nil {
		panic(fmt.Sprintf("palette: embedded seed.yaml is invalid: %v", err))
	}
	return s
}
