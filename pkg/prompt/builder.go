package prompt

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/aretw0/aqueduct/pkg/constraints"
	"github.com/aretw0/aqueduct/pkg/domain"
)

// SystemInstruction is the role message sent ahead of the prompt.
const SystemInstruction = "Вы — эксперт по системам водоснабжения."

// Input formats of a payload.
const (
	FormatJSON = "json"
	FormatText = "text"
)

//go:embed prompt.tmpl
var promptTemplate string

var tmpl = template.Must(template.New("prompt").Funcs(template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}).Parse(promptTemplate))

// Example is a worked scenario included in every prompt.
type Example struct {
	Title  string `json:"title"`
	Input  string `json:"input"`
	Issues string `json:"issues"`
	Output string `json:"output"`
}

// DefaultExamples are the two reconfiguration scenarios shown to the backend.
var DefaultExamples = []Example{
	{
		Title:  "Increase Water Supply to 120 l/s",
		Input:  "Водоприемники (50 л/с) → Насосная станция (30 кВт) → Резервуар питьевой воды (2000 м³) → Фильтры (8 м/ч) → Отстойники (300 м³, 2 ч) → Смесители (50 м³) → Канализационный коллектор (500 л/с) → Насосная станция (100 л/с) → Решётки (200 л/с) → Песколовки (20 м³) → Первичные отстойники (400 м³, 1.5 ч) → Аэротенки (1000 м³) → Вторичные отстойники (500 м³, 2 ч) → Река",
		Issues: "Water intake (50 l/s < 120 l/s: cavitation); supply pump (30 kW: overload); clarifiers (300 m³, 2 h: 864 m³ needed, ~41.7 min); wastewater pump (100 l/s < 120 l/s: overflow); aerotanks (1000 m³: ~2.31 h, low efficiency).",
		Output: "Suggestions: Increase water intake to 120 л/с, replace supply pump with 50 кВт, clarifiers to 900 m³, wastewater pump to 120 л/с, aerotanks to 1500 m³. Modified: Update nodes (water_intake, pump_station, sedimentation_tank, aerotank) with new properties, preserve others, adjust edges for 120 l/s flow.",
	},
	{
		Title:  "Reduce Aerotank Volume to 600 m³",
		Input:  "Канализационный коллектор (500 л/с) → Насосная станция (100 л/с) → Решётки (200 л/с) → Песколовки (20 м³) → Первичные отстойники (400 м³, 1.5 ч) → Аэротенки (600 м³, Кислород 2 мг/л) → Вторичные отстойники (500 м³, 2 ч) → Река",
		Issues: "Aerotank (600 m³, 100 l/s: ~1.67 h vs. 2.78 h, low treatment, high BOD); oxygen (2 mg/l: insufficient); secondary clarifiers (500 m³: high organic load, poor effluent).",
		Output: "Suggestions: Increase aerotanks to 1000 m³, oxygen to 3 mg/l, add drinking_water_tank (500 m³) before aerotanks. Modified: Add drinking_water_tank node, update aerotank properties, adjust edges.",
	},
}

// RequestPayload is everything a reasoning backend needs for one round-trip.
type RequestPayload struct {
	System       string    `json:"system"`
	Prompt       string    `json:"prompt"`
	AllowedKinds []string  `json:"allowed_kinds"`
	Bounds       string    `json:"bounds"`
	Examples     []Example `json:"examples"`
	InputFormat  string    `json:"input_format"`
	Input        string    `json:"input"`
	// Model is set by the dispatcher when the payload is sent.
	Model string `json:"model,omitempty"`
}

// Fingerprint is a stable hash of the instructions and prompt.
// Identical inputs always yield the same fingerprint.
func (p RequestPayload) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(p.System))
	h.Write([]byte{0})
	h.Write([]byte(p.Prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// Builder renders request payloads. It performs no I/O.
type Builder struct {
	kinds    []string
	rules    *constraints.RuleSet
	examples []Example
}

// Option configures a Builder.
type Option func(*Builder)

// WithExamples replaces the worked examples.
func WithExamples(examples []Example) Option {
	return func(b *Builder) {
		b.examples = examples
	}
}

// NewBuilder creates a builder for the given allowed kinds and rules.
// A nil rule set leaves the parameters section out of the prompt.
func NewBuilder(kinds []string, rules *constraints.RuleSet, opts ...Option) *Builder {
	b := &Builder{
		kinds:    append([]string(nil), kinds...),
		rules:    rules,
		examples: DefaultExamples,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build serializes the snapshot, or freeformText when it is not blank, into
// a self-contained payload.
func (b *Builder) Build(snap domain.Snapshot, freeformText string) (RequestPayload, error) {
	p := RequestPayload{
		System:       SystemInstruction,
		AllowedKinds: append([]string(nil), b.kinds...),
		Examples:     append([]Example(nil), b.examples...),
	}
	if b.rules != nil {
		p.Bounds = b.rules.Describe()
	}

	if text := strings.TrimSpace(freeformText); text != "" {
		p.InputFormat = FormatText
		p.Input = text
	} else {
		data, err := json.MarshalIndent(snap.Clone(), "", "  ")
		if err != nil {
			return RequestPayload{}, fmt.Errorf("failed to encode graph: %w", err)
		}
		p.InputFormat = FormatJSON
		p.Input = string(data)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return RequestPayload{}, fmt.Errorf("failed to render prompt: %w", err)
	}
	p.Prompt = buf.String()
	return p, nil
}

// Build is a shortcut for NewBuilder(kinds, rules).Build(snap, freeformText).
func Build(snap domain.Snapshot, freeformText string, kinds []string, rules *constraints.RuleSet) (RequestPayload, error) {
	return NewBuilder(kinds, rules).Build(snap, freeformText)
}
