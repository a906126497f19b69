package constraints

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// DefaultExpr is used when a rule carries no expression of its own.
const DefaultExpr = "value >= min && value <= max"

// Rule is a numeric bound on one property of one or more node kinds.
type Rule struct {
	Name     string   `yaml:"name" json:"name"`
	Group    string   `yaml:"group" json:"group"`
	Text     string   `yaml:"text" json:"text"`
	Kinds    []string `yaml:"kinds" json:"kinds"`
	Property string   `yaml:"property" json:"property"`
	Unit     string   `yaml:"unit" json:"unit"`
	Min      float64  `yaml:"min" json:"min"`
	Max      float64  `yaml:"max" json:"max"`
	Expr     string   `yaml:"expr,omitempty" json:"expr,omitempty"`
}

func (r Rule) appliesTo(kind string) bool {
	for _, k := range r.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Advisory reports a property outside the bounds of every rule that covers it.
type Advisory struct {
	NodeID   string  `json:"node_id"`
	Kind     string  `json:"kind"`
	Property string  `json:"property"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Rule     string  `json:"rule"`
	Message  string  `json:"message"`
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// RuleSet is an immutable, compiled list of rules.
type RuleSet struct {
	rules []compiledRule
}

// Default returns the built-in rules.
func Default() *RuleSet {
	rs, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("constraints: embedded rules.yaml is invalid: %v", err))
	}
	return rs
}

// Load reads rules from a YAML or JSON file, chosen by extension.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var rules []Rule
		if err := json.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("failed to parse rules json: %w", err)
		}
		return New(rules...)
	}
	return Parse(data)
}

// Parse reads rules from YAML.
func Parse(data []byte) (*RuleSet, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules yaml: %w", err)
	}
	return New(rules...)
}

// New compiles the CEL expression of every rule.
func New(rules ...Rule) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DoubleType),
		cel.Variable("min", cel.DoubleType),
		cel.Variable("max", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel environment: %w", err)
	}

	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if r.Property == "" || len(r.Kinds) == 0 {
			return nil, fmt.Errorf("rule %q: kinds and property are required", r.Name)
		}
		expr := r.Expr
		if expr == "" {
			expr = DefaultExpr
		}
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, iss.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %q: expression must evaluate to bool, got %v", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{Rule: r, prg: prg})
	}
	return rs, nil
}

// Rules returns copies of the rules in declaration order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Rule
		out[i].Kinds = append([]string(nil), r.Kinds...)
	}
	return out
}

// Describe renders the bounds as one line, grouped in declaration order:
// "Pumps: 50–2000 l/s (wastewater), 500–2000 l/h (irrigation); Tanks: ...".
func (rs *RuleSet) Describe() string {
	var (
		b     strings.Builder
		group string
	)
	for i, r := range rs.rules {
		switch {
		case i == 0:
			b.WriteString(r.Group + ": ")
		case r.Group != group:
			b.WriteString("; " + r.Group + ": ")
		default:
			b.WriteString(", ")
		}
		group = r.Group
		b.WriteString(r.Text)
	}
	if b.Len() > 0 {
		b.WriteString(".")
	}
	return b.String()
}

// Evaluate checks every node property covered by a rule. A property is
// reported only if it fails every rule that applies to it. The graph is never
// modified and no error is returned for unparseable values; they are skipped.
func (rs *RuleSet) Evaluate(snap domain.Snapshot) []Advisory {
	var out []Advisory
	for _, n := range snap.Nodes {
		for _, key := range n.Properties.Keys() {
			v, _ := n.Properties.Get(key)
			num, unit, ok := measure(v)
			if !ok {
				continue
			}

			var (
				first   *compiledRule
				matched bool
			)
			for i := range rs.rules {
				r := &rs.rules[i]
				if r.Property != key || !r.appliesTo(n.Kind) {
					continue
				}
				if unit != "" && r.Unit != "" && unit != r.Unit {
					continue
				}
				if first == nil {
					first = r
				}
				if r.check(num) {
					matched = true
					break
				}
			}
			if first == nil || matched {
				continue
			}
			out = append(out, Advisory{
				NodeID:   n.ID,
				Kind:     n.Kind,
				Property: key,
				Value:    num,
				Unit:     first.Unit,
				Rule:     first.Name,
				Message: fmt.Sprintf("%s %q: %s = %s %s вне допустимого диапазона %s–%s %s",
					n.Label, n.ID, key, formatFloat(num), first.Unit,
					formatFloat(first.Min), formatFloat(first.Max), first.Unit),
			})
		}
	}
	return out
}

func (r *compiledRule) check(value float64) bool {
	out, _, err := r.prg.Eval(map[string]any{
		"value": value,
		"min":   r.Min,
		"max":   r.Max,
	})
	if err != nil {
		return true
	}
	ok, isBool := out.Value().(bool)
	return !isBool || ok
}

var leadingNumber = regexp.MustCompile(`^\s*(-?\d+(?:[.,]\d+)?)\s*(.*?)\s*$`)

// measure extracts the magnitude and unit of a property value.
// Numbers carry no unit; text must start with a number ("100 л/с").
func measure(v domain.Value) (float64, string, bool) {
	if f, ok := v.Float(); ok {
		return f, "", true
	}
	s, _ := v.Text()
	m := leadingNumber.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	f, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, "", false
	}
	return f, m[2], true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
