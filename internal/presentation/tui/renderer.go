package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/aqueduct/pkg/constraints"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// On a non-terminal output the markdown is returned unchanged.
func NewRenderer(out *os.File) func(string) (string, error) {
	if !IsTerminal(out) {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// ProposalMarkdown renders a validated proposal as a markdown report.
func ProposalMarkdown(p domain.ValidatedProposal) string {
	var sb strings.Builder
	sb.WriteString("# Рекомендации\n\n")
	if len(p.Suggestions) == 0 {
		sb.WriteString("_Нет рекомендаций._\n")
	}
	for i, s := range p.Suggestions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}

	fmt.Fprintf(&sb, "\n## Схема (%d узлов, %d связей)\n\n", len(p.Nodes), len(p.Edges))
	if len(p.Nodes) > 0 {
		sb.WriteString("| ID | Тип | Название |\n|---|---|---|\n")
		for _, n := range p.Nodes {
			fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", n.ID, n.Kind, n.Label)
		}
	}
	if len(p.Edges) > 0 {
		sb.WriteString("\n| ID | Откуда | Куда |\n|---|---|---|\n")
		for _, e := range p.Edges {
			fmt.Fprintf(&sb, "| `%s` | `%s` | `%s` |\n", e.ID, e.Source, e.Target)
		}
	}
	return sb.String()
}

// PaletteMarkdown renders the node palette with its default properties.
func PaletteMarkdown(entries []domain.PaletteEntry) string {
	var sb strings.Builder
	sb.WriteString("# Палитра\n\n| Тип | Название | Свойства |\n|---|---|---|\n")
	for _, e := range entries {
		props := make([]string, 0, e.Properties.Len())
		for _, prop := range e.Properties.Pairs() {
			props = append(props, fmt.Sprintf("%s: %s", prop.Key, prop.Value.String()))
		}
		fmt.Fprintf(&sb, "| `%s` | %s %s | %s |\n", e.Kind, e.Icon, e.Label, strings.Join(props, "<br>"))
	}
	return sb.String()
}

// PrintAdvisories writes one coloured line per advisory. It reports whether
// any advisory was written.
func PrintAdvisories(w io.Writer, advisories []constraints.Advisory) bool {
	p := termenv.ColorProfile()
	if f, ok := w.(*os.File); !ok || !IsTerminal(f) {
		p = termenv.Ascii
	}
	if len(advisories) == 0 {
		fmt.Fprintln(w, p.String("✓ all values within bounds").Foreground(p.Color("#22c55e")))
		return false
	}
	for _, a := range advisories {
		mark := p.String("!").Foreground(p.Color("#f59e0b")).Bold()
		fmt.Fprintf(w, "%s %s %s\n", mark, p.String(a.NodeID).Bold(), a.Message)
	}
	return true
}
