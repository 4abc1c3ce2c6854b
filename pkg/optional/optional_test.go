package optional

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Description Value[string]  `json:"description,omitzero"`
	Step        Value[string]  `json:"step,omitzero"`
	AmountHT    Value[Number]  `json:"amountHT,omitzero"`
	TaxRate     Value[float64] `json:"taxRate,omitzero"`
}

func TestValueDistinguishesAbsentNullAndValue(t *testing.T) {
	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"description":"x","step":null}`), &p))

	assert.True(t, p.Description.IsSet())
	got, ok := p.Description.Get()
	assert.True(t, ok)
	assert.Equal(t, "x", got)

	assert.True(t, p.Step.IsSet())
	assert.True(t, p.Step.IsNull())
	assert.Nil(t, p.Step.Ptr())

	assert.False(t, p.AmountHT.IsSet())
	assert.False(t, p.TaxRate.IsSet())
	assert.Equal(t, 0.05, p.TaxRate.Or(0.05))
}

func TestValueMarshalOmitsUnsetFields(t *testing.T) {
	p := payload{Description: Set("x"), Step: Null[string]()}
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"description":"x","step":null}`, string(out))
}

func TestNumberCoercesPermissively(t *testing.T) {
	cases := map[string]float64{
		`12.5`:     12.5,
		`"42"`:     42,
		`" 7.25 "`: 7.25,
		`"abc"`:    0,
		`""`:       0,
		`true`:     1,
		`{}`:       0,
		`"NaN"`:    0,
		`"+Inf"`:   0,
	}
	for input, want := range cases {
		var n Number
		require.NoError(t, json.Unmarshal([]byte(input), &n), input)
		assert.Equal(t, want, float64(n), input)
	}
}
