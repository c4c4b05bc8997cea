package reorder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

type fakeNumberer struct {
	calls int
}

func (f *fakeNumberer) Next(_ context.Context, prefix string) (string, error) {
	f.calls++
	return fmt.Sprintf("%s-2026-%06d", prefix, f.calls), nil
}

func rec(supplierID *id.ID, qty int64, cost float64, priority Priority) Recommendation {
	return Recommendation{
		ID:             id.New(),
		ProductID:      id.New(),
		SKU:            "SKU-1",
		ProductName:    "Something",
		SupplierID:     supplierID,
		RecommendedQty: qty,
		EstimatedCost:  types.NewMoney(cost),
		Priority:       priority,
		Status:         StatusPending,
	}
}

func TestGroupBySupplier(t *testing.T) {
	s1 := id.New()
	s2 := id.New()

	recs := []Recommendation{
		rec(&s1, 10, 100, PriorityHigh),
		rec(&s2, 5, 50, PriorityMedium),
		rec(&s1, 3, 30, PriorityCritical),
		rec(nil, 7, 70, PriorityMedium),
	}

	groups := GroupBySupplier(recs)
	require.Len(t, groups, 3)
	assert.Len(t, groups[s1], 2)
	assert.Len(t, groups[s2], 1)
	assert.Len(t, groups[UnknownSupplier], 1)

	// input order preserved within a group
	assert.Equal(t, recs[0].ProductID, groups[s1][0].ProductID)
	assert.Equal(t, recs[2].ProductID, groups[s1][1].ProductID)
}

func TestDraft(t *testing.T) {
	ctx := context.Background()
	supplier := id.New()
	numbers := &fakeNumberer{}
	drafter := NewDrafter(numbers).WithClock(clock)

	recs := []Recommendation{
		rec(&supplier, 10, 150, PriorityCritical),
		rec(&supplier, 4, 60, PriorityMedium),
	}

	draft, err := drafter.Draft(ctx, supplier, recs)
	require.NoError(t, err)

	assert.Equal(t, "POD-2026-000001", draft.Number)
	assert.Equal(t, supplier, draft.SupplierID)
	assert.Equal(t, POStatusDraft, draft.Status)
	assert.Equal(t, testNow, draft.CreatedAt)
	assert.Equal(t, int64(14), draft.TotalItems)
	assert.True(t, types.NewMoney(210).Equal(draft.TotalAmount))

	require.Len(t, draft.Lines, 2)
	assert.True(t, types.NewMoney(15).Equal(draft.Lines[0].UnitPrice))
	assert.True(t, types.NewMoney(150).Equal(draft.Lines[0].TotalPrice))
	assert.Equal(t, PriorityCritical, draft.Lines[0].Priority)
}

func TestDraft_ZeroQuantityLine(t *testing.T) {
	supplier := id.New()
	drafter := NewDrafter(&fakeNumberer{}).WithClock(clock)

	draft, err := drafter.Draft(context.Background(), supplier, []Recommendation{
		rec(&supplier, 0, 0, PriorityMedium),
	})
	require.NoError(t, err)
	require.Len(t, draft.Lines, 1)
	assert.True(t, draft.Lines[0].UnitPrice.IsZero())
}

func TestDraft_RejectsForeignSupplier(t *testing.T) {
	supplier := id.New()
	other := id.New()
	drafter := NewDrafter(&fakeNumberer{}).WithClock(clock)

	_, err := drafter.Draft(context.Background(), supplier, []Recommendation{
		rec(&other, 5, 25, PriorityMedium),
	})
	assert.Error(t, err)
}

func TestDraft_EmptyList(t *testing.T) {
	drafter := NewDrafter(&fakeNumberer{}).WithClock(clock)

	_, err := drafter.Draft(context.Background(), id.New(), nil)
	assert.Error(t, err)
}

func TestDraft_UnknownSupplierGroup(t *testing.T) {
	drafter := NewDrafter(&fakeNumberer{}).WithClock(clock)

	draft, err := drafter.Draft(context.Background(), UnknownSupplier, []Recommendation{
		rec(nil, 5, 25, PriorityMedium),
	})
	require.NoError(t, err)
	assert.Equal(t, UnknownSupplier, draft.SupplierID)
}
