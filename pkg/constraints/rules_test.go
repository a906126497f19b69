package constraints_test

import (
	"testing"

	"github.com/aretw0/aqueduct/pkg/constraints"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Describe(t *testing.T) {
	want := "Pumps: 50–2000 l/s (wastewater), 500–2000 l/h (irrigation); " +
		"Clarifiers: 100–1000 m³, 1–4 h; Tanks: 500–2000 m³; " +
		"Aerotanks: 500–5000 m³, oxygen 2–4 mg/l."
	assert.Equal(t, want, constraints.Default().Describe())
}

func TestEvaluate_SeedIsClean(t *testing.T) {
	advisories := constraints.Default().Evaluate(palette.SeedSnapshot())
	assert.Empty(t, advisories)
}

func TestEvaluate(t *testing.T) {
	props := func(pairs ...domain.Property) domain.Properties { return domain.NewProperties(pairs...) }

	snap := domain.Snapshot{Nodes: []domain.Node{
		{ID: "p1", Kind: "pump_station", Label: "Насос", Properties: props(
			domain.Property{Key: "Производительность", Value: domain.Text("20 л/с")},
		)},
		{ID: "p2", Kind: "pump_station", Label: "Насос", Properties: props(
			domain.Property{Key: "Производительность", Value: domain.Text("800 л/ч")},
		)},
		{ID: "a1", Kind: "aerotank", Label: "Аэротенк", Properties: props(
			domain.Property{Key: "Объём", Value: domain.Text("600 м³")},
			domain.Property{Key: "Концентрация кислорода", Value: domain.Number(1.5)},
		)},
		{ID: "s1", Kind: "sedimentation_tank", Label: "Отстойник", Properties: props(
			domain.Property{Key: "Время отстаивания", Value: domain.Text("0,5 ч")},
		)},
		{ID: "r1", Kind: "river", Label: "Река", Properties: props(
			domain.Property{Key: "Уровень воды", Value: domain.Text("Переменный")},
		)},
	}}

	advisories := constraints.Default().Evaluate(snap)
	require.Len(t, advisories, 3)

	assert.Equal(t, "p1", advisories[0].NodeID)
	assert.Equal(t, "pump-wastewater", advisories[0].Rule)
	assert.Equal(t, float64(20), advisories[0].Value)
	assert.Contains(t, advisories[0].Message, "вне допустимого диапазона 50–2000 л/с")

	assert.Equal(t, "a1", advisories[1].NodeID)
	assert.Equal(t, "aerotank-oxygen", advisories[1].Rule)

	assert.Equal(t, "s1", advisories[2].NodeID)
	assert.Equal(t, 0.5, advisories[2].Value)
}

func TestNew_CustomExpression(t *testing.T) {
	rs, err := constraints.New(constraints.Rule{
		Name:     "strict",
		Kinds:    []string{"mixer"},
		Property: "Объём",
		Min:      10,
		Max:      100,
		Expr:     "value > min && value < max",
	})
	require.NoError(t, err)

	snap := domain.Snapshot{Nodes: []domain.Node{{
		ID: "m1", Kind: "mixer",
		Properties: domain.NewProperties(domain.Property{Key: "Объём", Value: domain.Number(100)}),
	}}}
	assert.Len(t, rs.Evaluate(snap), 1)
}

func TestNew_RejectsBadExpression(t *testing.T) {
	_, err := constraints.New(constraints.Rule{Name: "bad", Kinds: []string{"mixer"}, Property: "x", Expr: "value +"})
	assert.Error(t, err)

	_, err = constraints.New(constraints.Rule{Name: "num", Kinds: []string{"mixer"}, Property: "x", Expr: "value + 1.0"})
	assert.Error(t, err)

	_, err = constraints.New(constraints.Rule{Name: "empty"})
	assert.Error(t, err)
}
