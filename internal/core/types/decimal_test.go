package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityString(t *testing.T) {
	assert.Equal(t, "1.5000", NewQuantityFromFloat64(1.5).String())
	assert.Equal(t, "0.0001", NewQuantityFromInt64Scaled(1).String())
	assert.Equal(t, "-2.2500", NewQuantityFromFloat64(-2.25).String())
	assert.Equal(t, "10.0000", NewQuantityFromInt(10).String())
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	q := NewQuantityFromFloat64(12.3456)

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, "12.3456", string(data))

	var parsed Quantity
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, q, parsed)
}

func TestQuantityUnmarshalString(t *testing.T) {
	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`"7.5"`), &q))
	assert.Equal(t, NewQuantityFromFloat64(7.5), q)

	// Extra fractional digits are truncated, not rounded.
	require.NoError(t, json.Unmarshal([]byte(`0.00019`), &q))
	assert.Equal(t, NewQuantityFromInt64Scaled(1), q)
}

func TestQuantityArithmetic(t *testing.T) {
	a := NewQuantityFromInt(5)
	b := NewQuantityFromFloat64(2.5)

	assert.Equal(t, NewQuantityFromFloat64(7.5), a.Add(b))
	assert.Equal(t, NewQuantityFromFloat64(2.5), a.Sub(b))
	assert.Equal(t, b, a.Min(b))
	assert.Equal(t, b, b.Min(a))
	assert.True(t, a.Sub(a).IsZero())
}

func TestQuantityDecimal(t *testing.T) {
	q := NewQuantityFromFloat64(2.5)
	cost := MustMoney("3.20")

	total := cost.Mul(q.Decimal())
	assert.True(t, total.Equal(MustMoney("8.00")), "got %s", total)
}
