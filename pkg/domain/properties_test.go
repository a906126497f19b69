package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperties_PreservesOrder(t *testing.T) {
	raw := `{"Скорость потока":"100 л/с","Потери на трение":0.03,"Диаметр":"300 мм"}`

	var p Properties
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, []string{"Скорость потока", "Потери на трение", "Диаметр"}, p.Keys())

	v, ok := p.Get("Потери на трение")
	require.True(t, ok)
	f, isNum := v.Float()
	assert.True(t, isNum)
	assert.Equal(t, 0.03, f)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
	assert.Equal(t, `{"Скорость потока":"100 л/с","Потери на трение":0.03,"Диаметр":"300 мм"}`, string(out))
}

func TestProperties_RejectsNonScalar(t *testing.T) {
	cases := map[string]string{
		"nested object": `{"a":{"b":1}}`,
		"array":         `{"a":[1,2]}`,
		"boolean":       `{"a":true}`,
		"null":          `{"a":null}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var p Properties
			err := json.Unmarshal([]byte(raw), &p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNonScalar), "got %v", err)
		})
	}
}

func TestProperties_SetDeleteClone(t *testing.T) {
	p := NewProperties(
		Property{"a", Text("1")},
		Property{"b", Number(2)},
		Property{"c", Text("3")},
	)
	c := p.Clone()

	p.Set("a", Text("changed"))
	p.Delete("b")
	p.Set("d", Number(4))

	assert.Equal(t, []string{"a", "c", "d"}, p.Keys())
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())

	v, _ := c.Get("a")
	assert.Equal(t, "1", v.String())
	assert.False(t, p.Equal(c))
	assert.True(t, c.Equal(c.Clone()))
}

func TestProperties_ValidateZeroValue(t *testing.T) {
	var p Properties
	p.Set("broken", Value{})
	assert.ErrorIs(t, p.Validate(), ErrNonScalar)

	_, err := json.Marshal(p)
	assert.Error(t, err)
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "0.03", Number(0.03).String())
	assert.Equal(t, "1500", Number(1500).String())
	assert.Equal(t, "100 л/с", Text("100 л/с").String())
	assert.False(t, Value{}.IsValid())
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf(json.Number("42"))
	require.NoError(t, err)
	assert.True(t, v.IsNumber())

	v, err = ValueOf(7)
	require.NoError(t, err)
	assert.Equal(t, float64(7), v.Any())

	_, err = ValueOf(true)
	assert.ErrorIs(t, err, ErrNonScalar)
}
