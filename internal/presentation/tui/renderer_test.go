package tui_test

import (
	"bytes"
	"testing"

	"github.com/aretw0/aqueduct/internal/presentation/tui"
	"github.com/aretw0/aqueduct/pkg/constraints"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestProposalMarkdown(t *testing.T) {
	md := tui.ProposalMarkdown(domain.ValidatedProposal{
		Suggestions: []string{"Добавить фильтр", "Увеличить резервуар"},
		Nodes: []domain.Node{
			{ID: "pump-1", Kind: "pump_station", Label: "Насосная станция"},
			{ID: "tank-1", Kind: "drinking_water_tank", Label: "Резервуар"},
		},
		Edges: []domain.Edge{{ID: "e1", Source: "pump-1", Target: "tank-1"}},
	})

	assert.Contains(t, md, "1. Добавить фильтр\n2. Увеличить резервуар")
	assert.Contains(t, md, "2 узлов, 1 связей")
	assert.Contains(t, md, "| `pump-1` | pump_station | Насосная станция |")
	assert.Contains(t, md, "| `e1` | `pump-1` | `tank-1` |")
}

func TestProposalMarkdown_Empty(t *testing.T) {
	md := tui.ProposalMarkdown(domain.ValidatedProposal{})
	assert.Contains(t, md, "Нет рекомендаций")
	assert.NotContains(t, md, "| ID |")
}

func TestPrintAdvisories(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, tui.PrintAdvisories(&buf, nil))
	assert.Contains(t, buf.String(), "within bounds")

	buf.Reset()
	wrote := tui.PrintAdvisories(&buf, []constraints.Advisory{{NodeID: "pump-1", Message: "Производительность 3000 л/с вне диапазона"}})
	assert.True(t, wrote)
	assert.Equal(t, "! pump-1 Производительность 3000 л/с вне диапазона\n", buf.String())
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|")
}

func TestNewRenderer_NonTerminal(t *testing.T) {
	render := tui.NewRenderer(nil)
	out, err := render("# Title")
	assert.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestPaletteMarkdown(t *testing.T) {
	md := tui.PaletteMarkdown([]domain.PaletteEntry{{
		Kind:  "pump_station",
		Label: "Насосная станция",
		Icon:  "⚙",
		Properties: domain.NewProperties(
			domain.Property{Key: "Производительность", Value: domain.Text("100 л/с")},
			domain.Property{Key: "Напор", Value: domain.Number(40)},
		),
	}})
	assert.Contains(t, md, "| `pump_station` | ⚙ Насосная станция | Производительность: 100 л/с<br>Напор: 40 |")
}
