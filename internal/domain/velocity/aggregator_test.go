package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

type fakeHistory struct {
	rows     []ProductAggregate
	lastFrom time.Time
	lastTo   time.Time
}

func (f *fakeHistory) AggregateByProduct(ctx context.Context, from, to time.Time) ([]ProductAggregate, error) {
	f.lastFrom, f.lastTo = from, to
	return f.rows, nil
}

func TestWindowStats(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	p1, p2 := id.New(), id.New()

	history := &fakeHistory{rows: []ProductAggregate{
		{ProductID: p1, TotalSold: types.NewQuantityFromInt(300), OrderCount: 42, Revenue: types.MustMoney("1500.00")},
		{ProductID: p2, TotalSold: types.NewQuantityFromFloat64(7.5), OrderCount: 3, Revenue: types.MustMoney("30.00")},
	}}

	agg := NewAggregator(history).WithClock(func() time.Time { return now })

	stats, err := agg.WindowStats(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.InDelta(t, 10.0, stats[p1].AvgDailySales, 1e-9)
	assert.Equal(t, 42, stats[p1].OrderCount)
	assert.InDelta(t, 0.25, stats[p2].AvgDailySales, 1e-9)

	assert.Equal(t, now.AddDate(0, 0, -30), history.lastFrom)
	assert.Equal(t, now, history.lastTo)
}

func TestWindowStatsAbsentProduct(t *testing.T) {
	agg := NewAggregator(&fakeHistory{})

	stats, err := agg.WindowStats(context.Background(), 30)
	require.NoError(t, err)

	// Products without sales are simply absent, not zero-filled.
	_, ok := stats[id.New()]
	assert.False(t, ok)
	assert.Empty(t, stats)
}

func TestWindowStatsInvalidWindow(t *testing.T) {
	agg := NewAggregator(&fakeHistory{})

	for _, days := range []int{0, -1, -30} {
		_, err := agg.WindowStats(context.Background(), days)
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidWindow), "days=%d", days)
	}
}
