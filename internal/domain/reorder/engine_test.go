package reorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/catalog"
	"pharmstock/internal/domain/velocity"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

// --- fakes ---

type fakeCatalog struct {
	products []*catalog.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, productID id.ID) (*catalog.Product, error) {
	for _, p := range f.products {
		if p.ID == productID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) ListActive(_ context.Context) ([]*catalog.Product, error) {
	return f.products, nil
}

type fakeHistory struct {
	rows []velocity.ProductAggregate
}

func (f *fakeHistory) AggregateByProduct(_ context.Context, _, _ time.Time) ([]velocity.ProductAggregate, error) {
	return f.rows, nil
}

type fakeStock struct {
	stocks map[id.ID]types.Quantity
}

func (f *fakeStock) SumEligibleRemainingAll(_ context.Context, _ time.Time) (map[id.ID]types.Quantity, error) {
	return f.stocks, nil
}

type snapMarker struct{}

// fakeSnapshot tags the context so readers can tell whether they were
// called inside the read-only transaction.
type fakeSnapshot struct {
	calls int
}

func (f *fakeSnapshot) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeSnapshot) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(context.WithValue(ctx, snapMarker{}, true))
}

type snapshotStock struct {
	stocks     map[id.ID]types.Quantity
	inSnapshot bool
}

func (s *snapshotStock) SumEligibleRemainingAll(ctx context.Context, _ time.Time) (map[id.ID]types.Quantity, error) {
	s.inSnapshot = ctx.Value(snapMarker{}) != nil
	return s.stocks, nil
}

type fakeRecLog struct {
	runs map[id.ID][]Recommendation
	err  error
}

func newFakeRecLog() *fakeRecLog {
	return &fakeRecLog{runs: make(map[id.ID][]Recommendation)}
}

func (f *fakeRecLog) AppendRun(_ context.Context, runID id.ID, recs []Recommendation) error {
	if f.err != nil {
		return f.err
	}
	f.runs[runID] = append([]Recommendation(nil), recs...)
	return nil
}

func (f *fakeRecLog) ListByRun(_ context.Context, runID id.ID) ([]Recommendation, error) {
	return f.runs[runID], nil
}

func (f *fakeRecLog) ListPending(_ context.Context, _ int) ([]Recommendation, error) {
	var out []Recommendation
	for _, recs := range f.runs {
		for _, r := range recs {
			if r.Status == StatusPending {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeRecLog) UpdateStatus(_ context.Context, recIDs []id.ID, status Status) error {
	for runID, recs := range f.runs {
		for i := range recs {
			for _, recID := range recIDs {
				if recs[i].ID == recID {
					recs[i].Status = status
				}
			}
		}
		f.runs[runID] = recs
	}
	return nil
}

// --- builders ---

func product(name string, costPrice float64, minStock int64) *catalog.Product {
	supplierID := id.New()
	return &catalog.Product{
		ID:            id.New(),
		SKU:           "SKU-" + name,
		Name:          name,
		SupplierID:    &supplierID,
		CostPrice:     types.NewMoney(costPrice),
		MinStockLevel: types.NewQuantityFromInt(minStock),
		IsActive:      true,
	}
}

func soldOver30Days(productID id.ID, totalSold int64, revenue float64) velocity.ProductAggregate {
	return velocity.ProductAggregate{
		ProductID:  productID,
		TotalSold:  types.NewQuantityFromInt(totalSold),
		OrderCount: int(totalSold),
		Revenue:    types.NewMoney(revenue),
	}
}

func newTestEngine(products []*catalog.Product, rows []velocity.ProductAggregate, stocks map[id.ID]types.Quantity) (*Engine, *fakeRecLog) {
	recLog := newFakeRecLog()
	agg := velocity.NewAggregator(&fakeHistory{rows: rows}).WithClock(clock)
	engine := NewEngine(&fakeCatalog{products: products}, agg, &fakeStock{stocks: stocks}, recLog, nil, nil, DefaultConfig()).WithClock(clock)
	return engine, recLog
}

// --- tests ---

func TestRecommendations_ReorderPointFormula(t *testing.T) {
	ctx := context.Background()
	p := product("Amoxicillin 500mg", 5, 0)

	// 300 units over 30 days = 10/day; reorder point = 10 * (7+7) = 140.
	rows := []velocity.ProductAggregate{soldOver30Days(p.ID, 300, 3000)}

	t.Run("stock below reorder point is recommended", func(t *testing.T) {
		engine, _ := newTestEngine([]*catalog.Product{p}, rows, map[id.ID]types.Quantity{
			p.ID: types.NewQuantityFromInt(130),
		})

		recs, err := engine.Recommendations(ctx, RunParams{})
		require.NoError(t, err)
		require.Len(t, recs, 1)

		rec := recs[0]
		assert.Equal(t, int64(140), rec.ReorderPoint)
		assert.InDelta(t, 13.0, rec.DaysOfSupply, 1e-9)
		basis, ok := rec.Basis.(HistoricalBasis)
		require.True(t, ok)
		assert.InDelta(t, 10.0, basis.AvgDailySales, 1e-9)
	})

	t.Run("stock above reorder point is skipped", func(t *testing.T) {
		engine, _ := newTestEngine([]*catalog.Product{p}, rows, map[id.ID]types.Quantity{
			p.ID: types.NewQuantityFromInt(150),
		})

		recs, err := engine.Recommendations(ctx, RunParams{})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestRecommendations_PriorityBoundaries(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		stock    float64 // days of supply = stock / 10
		priority Priority
	}{
		{"2.9 days is critical", 29, PriorityCritical},
		{"6.9 days is high", 69, PriorityHigh},
		{"7.0 days is medium", 70, PriorityMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := product("Layer Feed 25kg", 8, 0)
			engine, _ := newTestEngine(
				[]*catalog.Product{p},
				[]velocity.ProductAggregate{soldOver30Days(p.ID, 300, 5000)},
				map[id.ID]types.Quantity{p.ID: types.NewQuantityFromFloat64(tc.stock)},
			)

			recs, err := engine.Recommendations(ctx, RunParams{})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, tc.priority, recs[0].Priority)
			assert.InDelta(t, tc.stock/10, recs[0].DaysOfSupply, 1e-9)
		})
	}
}

func TestRecommendations_NoHistoryPath(t *testing.T) {
	ctx := context.Background()

	t.Run("zero stock is critical and restocks to twice the minimum", func(t *testing.T) {
		p := product("Wormer Paste", 12, 10)
		engine, _ := newTestEngine([]*catalog.Product{p}, nil, map[id.ID]types.Quantity{})

		recs, err := engine.Recommendations(ctx, RunParams{})
		require.NoError(t, err)
		require.Len(t, recs, 1)

		rec := recs[0]
		assert.Equal(t, PriorityCritical, rec.Priority)
		assert.Equal(t, int64(20), rec.RecommendedQty)
		assert.Equal(t, ClassC, rec.ABCClass)
		assert.Equal(t, "No sales history - based on min stock level", rec.Reason())
		assert.True(t, types.NewMoney(240).Equal(rec.EstimatedCost))
	})

	t.Run("partial stock at or below minimum is medium", func(t *testing.T) {
		p := product("Wormer Paste", 12, 10)
		engine, _ := newTestEngine([]*catalog.Product{p}, nil, map[id.ID]types.Quantity{
			p.ID: types.NewQuantityFromInt(5),
		})

		recs, err := engine.Recommendations(ctx, RunParams{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, PriorityMedium, recs[0].Priority)
		assert.Equal(t, int64(15), recs[0].RecommendedQty)
	})

	t.Run("stock above minimum is skipped", func(t *testing.T) {
		p := product("Wormer Paste", 12, 10)
		engine, _ := newTestEngine([]*catalog.Product{p}, nil, map[id.ID]types.Quantity{
			p.ID: types.NewQuantityFromInt(11),
		})

		recs, err := engine.Recommendations(ctx, RunParams{})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("default minimum applies when product has none", func(t *testing.T) {
		p := product("Salt Lick Block", 3, 0)
		engine, _ := newTestEngine([]*catalog.Product{p}, nil, map[id.ID]types.Quantity{
			p.ID: types.NewQuantityFromInt(7),
		})

		recs, err := engine.Recommendations(ctx, RunParams{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, int64(13), recs[0].RecommendedQty) // 2*10 - 7
	})
}

func TestRecommendations_DaysOfSupplySentinel(t *testing.T) {
	ctx := context.Background()
	p := product("Hoof Oil", 9, 0)

	// History row present but zero quantity sold: velocity is zero, supply
	// is effectively infinite.
	engine, _ := newTestEngine(
		[]*catalog.Product{p},
		[]velocity.ProductAggregate{soldOver30Days(p.ID, 0, 0)},
		map[id.ID]types.Quantity{},
	)

	recs, err := engine.Recommendations(ctx, RunParams{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, DaysOfSupplySentinel, recs[0].DaysOfSupply)
	assert.Equal(t, PriorityMedium, recs[0].Priority)
	assert.Zero(t, recs[0].RecommendedQty)
}

func TestRecommendations_ABCClassification(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name         string
		costPrice    float64
		class        ABCClass
		maxStockDays float64
	}{
		// revenue = 300 sold * cost price
		{"class A above 10000", 50, ClassA, 30},
		{"class B above 1000", 10, ClassB, 60},
		{"class C otherwise", 1, ClassC, 90},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := product("Calf Milk Replacer", tc.costPrice, 0)
			engine, _ := newTestEngine(
				[]*catalog.Product{p},
				[]velocity.ProductAggregate{soldOver30Days(p.ID, 300, 0)},
				map[id.ID]types.Quantity{p.ID: types.NewQuantityFromInt(100)},
			)

			recs, err := engine.Recommendations(ctx, RunParams{})
			require.NoError(t, err)
			require.Len(t, recs, 1)

			rec := recs[0]
			assert.Equal(t, tc.class, rec.ABCClass)
			// order qty = avg(10) * class days - current(100)
			assert.Equal(t, int64(10*tc.maxStockDays-100), rec.RecommendedQty)
		})
	}
}

func TestRecommendations_ABCFilter(t *testing.T) {
	ctx := context.Background()
	a := product("Premium Dog Food", 50, 0) // revenue 15000 -> A
	c := product("Bird Grit", 1, 0)         // revenue 300 -> C

	engine, _ := newTestEngine(
		[]*catalog.Product{a, c},
		[]velocity.ProductAggregate{
			soldOver30Days(a.ID, 300, 15000),
			soldOver30Days(c.ID, 300, 300),
		},
		map[id.ID]types.Quantity{
			a.ID: types.NewQuantityFromInt(10),
			c.ID: types.NewQuantityFromInt(10),
		},
	)

	recs, err := engine.Recommendations(ctx, RunParams{ABCFilter: ClassA})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, a.ID, recs[0].ProductID)
}

func TestRecommendations_SortOrder(t *testing.T) {
	ctx := context.Background()
	p1 := product("P1", 2, 0) // 1.5 days
	p2 := product("P2", 2, 0) // 0.5 days
	p3 := product("P3", 2, 0) // 5 days
	p4 := product("P4", 2, 5) // no history, stock 3 -> medium

	engine, _ := newTestEngine(
		[]*catalog.Product{p1, p2, p3, p4},
		[]velocity.ProductAggregate{
			soldOver30Days(p1.ID, 300, 600),
			soldOver30Days(p2.ID, 300, 600),
			soldOver30Days(p3.ID, 300, 600),
		},
		map[id.ID]types.Quantity{
			p1.ID: types.NewQuantityFromInt(15),
			p2.ID: types.NewQuantityFromInt(5),
			p3.ID: types.NewQuantityFromInt(50),
			p4.ID: types.NewQuantityFromInt(3),
		},
	)

	recs, err := engine.Recommendations(ctx, RunParams{})
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, p2.ID, recs[0].ProductID) // CRITICAL, 0.5d
	assert.Equal(t, p1.ID, recs[1].ProductID) // CRITICAL, 1.5d
	assert.Equal(t, p3.ID, recs[2].ProductID) // HIGH, 5d
	assert.Equal(t, p4.ID, recs[3].ProductID) // MEDIUM
}

func TestRecommendations_EstimatedCost(t *testing.T) {
	ctx := context.Background()
	p := product("Cat Litter 10L", 4.5, 0)

	engine, _ := newTestEngine(
		[]*catalog.Product{p},
		[]velocity.ProductAggregate{soldOver30Days(p.ID, 300, 1350)},
		map[id.ID]types.Quantity{p.ID: types.NewQuantityFromInt(100)},
	)

	recs, err := engine.Recommendations(ctx, RunParams{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// class B (revenue 1350): qty = 10*60 - 100 = 500; cost = 500 * 4.5
	assert.Equal(t, int64(500), recs[0].RecommendedQty)
	assert.True(t, types.NewMoney(2250).Equal(recs[0].EstimatedCost))
}

func TestRecommendations_InvalidWindow(t *testing.T) {
	engine, _ := newTestEngine(nil, nil, nil)

	_, err := engine.Recommendations(context.Background(), RunParams{WindowDays: -5})
	assert.Error(t, err)
}

func TestRecommendations_SingleSnapshot(t *testing.T) {
	p := product("Amoxicillin 500mg", 5, 0)
	rows := []velocity.ProductAggregate{soldOver30Days(p.ID, 300, 3000)}
	stock := &snapshotStock{stocks: map[id.ID]types.Quantity{p.ID: types.NewQuantityFromInt(130)}}
	snap := &fakeSnapshot{}

	agg := velocity.NewAggregator(&fakeHistory{rows: rows}).WithClock(clock)
	engine := NewEngine(&fakeCatalog{products: []*catalog.Product{p}}, agg, stock, newFakeRecLog(), nil, snap, DefaultConfig()).WithClock(clock)

	recs, err := engine.Recommendations(context.Background(), RunParams{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Stock, velocity and catalog reads all ran inside one read-only
	// transaction, not as independent pool queries.
	assert.Equal(t, 1, snap.calls)
	assert.True(t, stock.inSnapshot)
}

func TestLogRun(t *testing.T) {
	ctx := context.Background()
	p := product("Rabbit Pellets", 2, 10)
	engine, recLog := newTestEngine([]*catalog.Product{p}, nil, map[id.ID]types.Quantity{})

	recs, err := engine.Recommendations(ctx, RunParams{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	runID, err := engine.LogRun(ctx, recs)
	require.NoError(t, err)

	stored, err := recLog.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, runID, stored[0].RunID)
	assert.Equal(t, StatusPending, stored[0].Status)

	// A second run appends a fresh row instead of mutating the first.
	recs2, err := engine.Recommendations(ctx, RunParams{})
	require.NoError(t, err)
	runID2, err := engine.LogRun(ctx, recs2)
	require.NoError(t, err)
	assert.NotEqual(t, runID, runID2)

	pending, err := recLog.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestLogRun_RepoFailure(t *testing.T) {
	ctx := context.Background()
	p := product("Rabbit Pellets", 2, 10)
	engine, recLog := newTestEngine([]*catalog.Product{p}, nil, map[id.ID]types.Quantity{})
	recLog.err = assert.AnError

	recs, err := engine.Recommendations(ctx, RunParams{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// The run log is advisory: an insert failure must not take down the
	// computed recommendations, only lose the audit row.
	runID, err := engine.LogRun(ctx, recs)
	require.NoError(t, err)
	assert.False(t, id.IsNil(runID))
	assert.Equal(t, runID, recs[0].RunID)
}

func TestSortByUrgency(t *testing.T) {
	recs := []Recommendation{
		{SKU: "M", Priority: PriorityMedium, DaysOfSupply: 1},
		{SKU: "H-slow", Priority: PriorityHigh, DaysOfSupply: 5},
		{SKU: "C", Priority: PriorityCritical, DaysOfSupply: 999},
		{SKU: "H-fast", Priority: PriorityHigh, DaysOfSupply: 2},
	}

	SortByUrgency(recs)

	var skus []string
	for _, r := range recs {
		skus = append(skus, r.SKU)
	}
	// Rank decides first, days of supply breaks ties; a MEDIUM about to
	// run out never outranks a CRITICAL.
	assert.Equal(t, []string{"C", "H-fast", "H-slow", "M"}, skus)
}
