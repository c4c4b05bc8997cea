package reorder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/catalog"
)

func TestCompileFilter_Invalid(t *testing.T) {
	_, err := CompileFilter("priority ==")
	assert.Error(t, err)

	// well-formed but not boolean
	_, err = CompileFilter("days_of_supply + 1.0")
	assert.Error(t, err)
}

func TestFilter_Apply(t *testing.T) {
	supplier := id.New()
	critical := rec(&supplier, 10, 1500, PriorityCritical)
	critical.DaysOfSupply = 1.5
	medium := rec(&supplier, 5, 100, PriorityMedium)
	medium.DaysOfSupply = 12
	medium.ABCClass = ClassC

	recs := []Recommendation{critical, medium}

	t.Run("by priority", func(t *testing.T) {
		f, err := CompileFilter(`priority == "CRITICAL"`)
		require.NoError(t, err)

		kept, err := f.Apply(recs)
		require.NoError(t, err)
		require.Len(t, kept, 1)
		assert.Equal(t, critical.ProductID, kept[0].ProductID)
	})

	t.Run("by cost and days", func(t *testing.T) {
		f, err := CompileFilter(`estimated_cost < 500.0 && days_of_supply > 7.0`)
		require.NoError(t, err)

		kept, err := f.Apply(recs)
		require.NoError(t, err)
		require.Len(t, kept, 1)
		assert.Equal(t, medium.ProductID, kept[0].ProductID)
	})

	t.Run("by class", func(t *testing.T) {
		f, err := CompileFilter(`abc_class == "C"`)
		require.NoError(t, err)

		kept, err := f.Apply(recs)
		require.NoError(t, err)
		require.Len(t, kept, 1)
	})

	t.Run("no match", func(t *testing.T) {
		f, err := CompileFilter(`recommended_qty > 100`)
		require.NoError(t, err)

		kept, err := f.Apply(recs)
		require.NoError(t, err)
		assert.Empty(t, kept)
	})
}

func TestFilter_WiredIntoRun(t *testing.T) {
	p1 := product("P1", 2, 10) // no history, stock 0 -> CRITICAL
	p2 := product("P2", 2, 10) // no history, stock 5 -> MEDIUM

	engine, _ := newTestEngine([]*catalog.Product{p1, p2}, nil, map[id.ID]types.Quantity{
		p2.ID: types.NewQuantityFromInt(5),
	})

	f, err := CompileFilter(`priority == "CRITICAL"`)
	require.NoError(t, err)

	recs, err := engine.Recommendations(context.Background(), RunParams{Filter: f})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, p1.ID, recs[0].ProductID)
}
