package reorder

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/tx"
	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/catalog"
	"pharmstock/internal/domain/velocity"
	"pharmstock/pkg/logger"
)

// Config holds the tunable thresholds of the engine. The defaults mirror
// long-standing purchasing practice; nothing here is derived at runtime.
type Config struct {
	LeadTimeDays    int
	SafetyStockDays int

	// DefaultMinStock applies to products with no sales history and no
	// min_stock_level of their own.
	DefaultMinStock int64

	// ABC revenue thresholds over the trailing window (total sold at cost).
	ClassAThreshold types.Money
	ClassBThreshold types.Money

	// MaxStockDays caps the target stock per ABC class, in days of supply.
	MaxStockDays map[ABCClass]int

	// Priority boundaries in days of supply, strict less-than.
	CriticalDays float64
	HighDays     float64
}

// DefaultConfig returns the stock thresholds used in production.
func DefaultConfig() Config {
	return Config{
		LeadTimeDays:    7,
		SafetyStockDays: 7,
		DefaultMinStock: 10,
		ClassAThreshold: types.NewMoney(10000),
		ClassBThreshold: types.NewMoney(1000),
		MaxStockDays: map[ABCClass]int{
			ClassA: 30,
			ClassB: 60,
			ClassC: 90,
		},
		CriticalDays: 3,
		HighDays:     7,
	}
}

// maxStockDays falls back to the class B multiplier for unknown classes.
func (c Config) maxStockDays(class ABCClass) int {
	if days, ok := c.MaxStockDays[class]; ok {
		return days
	}
	return c.MaxStockDays[ClassB]
}

// StockReader supplies current eligible stock per product. Satisfied by the
// batch repository.
type StockReader interface {
	SumEligibleRemainingAll(ctx context.Context, today time.Time) (map[id.ID]types.Quantity, error)
}

// RunParams controls a single recommendation computation.
type RunParams struct {
	// WindowDays is the trailing sales window; 0 means the default.
	WindowDays int

	// ABCFilter restricts the historical path to one class when set.
	ABCFilter ABCClass

	// Filter is an optional compiled expression applied to every
	// recommendation before sorting.
	Filter *Filter
}

// Engine computes reorder recommendations. It is a pure read over catalog,
// velocity and stock data; persisting a run is a separate explicit step.
type Engine struct {
	catalog  catalog.Catalog
	velocity *velocity.Aggregator
	stock    StockReader
	log      Repository
	archive  Archiver
	snapshot tx.ReadOnlyManager
	cfg      Config
	now      func() time.Time
}

// NewEngine creates a reorder engine. The archiver and snapshot manager may
// be nil; without a snapshot manager each source is read independently.
func NewEngine(cat catalog.Catalog, vel *velocity.Aggregator, stock StockReader, log Repository, archive Archiver, snapshot tx.ReadOnlyManager, cfg Config) *Engine {
	if cfg.MaxStockDays == nil {
		cfg.MaxStockDays = DefaultConfig().MaxStockDays
	}
	return &Engine{
		catalog:  cat,
		velocity: vel,
		stock:    stock,
		log:      log,
		archive:  archive,
		snapshot: snapshot,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Recommendations walks every active product and returns the ones that need
// replenishment, sorted by (priority rank, days of supply) ascending. With a
// snapshot manager configured, the velocity, stock and catalog reads all run
// inside one read-only repeatable-read transaction so the figures come from
// a single consistent point in time.
func (e *Engine) Recommendations(ctx context.Context, params RunParams) ([]Recommendation, error) {
	if e.snapshot == nil {
		return e.recommend(ctx, params)
	}

	var recs []Recommendation
	err := e.snapshot.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		recs, err = e.recommend(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (e *Engine) recommend(ctx context.Context, params RunParams) ([]Recommendation, error) {
	windowDays := params.WindowDays
	if windowDays == 0 {
		windowDays = velocity.DefaultWindowDays
	}

	stats, err := e.velocity.WindowStats(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	stocks, err := e.stock.SumEligibleRemainingAll(ctx, e.now())
	if err != nil {
		return nil, fmt.Errorf("load current stock: %w", err)
	}

	products, err := e.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}

	generatedAt := e.now()
	recs := make([]Recommendation, 0, len(products))
	for _, product := range products {
		current := stocks[product.ID]

		var rec *Recommendation
		if productStats, ok := stats[product.ID]; ok {
			rec = e.recommendHistorical(product, productStats, current, windowDays, params.ABCFilter)
		} else {
			rec = e.recommendNoHistory(product, current)
		}
		if rec == nil {
			continue
		}

		rec.ID = id.New()
		rec.Status = StatusPending
		rec.GeneratedAt = generatedAt
		recs = append(recs, *rec)
	}

	if params.Filter != nil {
		recs, err = params.Filter.Apply(recs)
		if err != nil {
			return nil, err
		}
	}

	SortByUrgency(recs)
	return recs, nil
}

// recommendNoHistory handles products with zero sales in the window. They
// are restocked up to twice the minimum level once they fall to it.
func (e *Engine) recommendNoHistory(product *catalog.Product, current types.Quantity) *Recommendation {
	effectiveMin := product.MinStockLevel.Float64()
	if effectiveMin == 0 {
		effectiveMin = float64(e.cfg.DefaultMinStock)
	}
	if current.Float64() > effectiveMin {
		return nil
	}

	orderQty := int64(math.Max(2*effectiveMin-current.Float64(), 0))
	priority := PriorityMedium
	if current.IsZero() {
		priority = PriorityCritical
	}

	return &Recommendation{
		ProductID:      product.ID,
		SKU:            product.SKU,
		ProductName:    product.Name,
		SupplierID:     product.SupplierID,
		CurrentStock:   current,
		ReorderPoint:   int64(effectiveMin),
		RecommendedQty: orderQty,
		DaysOfSupply:   0,
		Priority:       priority,
		ABCClass:       ClassC,
		EstimatedCost:  product.CostPrice.Mul(decimal.NewFromInt(orderQty)),
		Basis:          NoHistoryBasis{MinLevel: types.NewQuantityFromFloat64(effectiveMin)},
	}
}

// recommendHistorical applies the velocity-based formula.
func (e *Engine) recommendHistorical(product *catalog.Product, stats velocity.ProductStats, current types.Quantity, windowDays int, abcFilter ABCClass) *Recommendation {
	avg := stats.AvgDailySales

	reorderPoint := int64(avg * float64(e.cfg.LeadTimeDays+e.cfg.SafetyStockDays))
	if avg > 0 && reorderPoint < 1 {
		reorderPoint = 1
	}
	if current.Float64() > float64(reorderPoint) {
		return nil
	}

	// Window revenue at cost drives the ABC class.
	revenue := product.CostPrice.Mul(stats.TotalSold.Decimal())
	class := e.classify(revenue)
	if abcFilter != "" && class != abcFilter {
		return nil
	}

	maxStock := avg * float64(e.cfg.maxStockDays(class))
	orderQty := int64(math.Max(maxStock-current.Float64(), 0))

	days := DaysOfSupplySentinel
	if avg > 0 {
		days = current.Float64() / avg
	}

	priority := PriorityMedium
	switch {
	case days < e.cfg.CriticalDays:
		priority = PriorityCritical
	case days < e.cfg.HighDays:
		priority = PriorityHigh
	}

	return &Recommendation{
		ProductID:      product.ID,
		SKU:            product.SKU,
		ProductName:    product.Name,
		SupplierID:     product.SupplierID,
		CurrentStock:   current,
		ReorderPoint:   reorderPoint,
		RecommendedQty: orderQty,
		DaysOfSupply:   days,
		Priority:       priority,
		ABCClass:       class,
		EstimatedCost:  product.CostPrice.Mul(decimal.NewFromInt(orderQty)),
		Basis:          HistoricalBasis{AvgDailySales: avg, Class: class},
	}
}

func (e *Engine) classify(revenue types.Money) ABCClass {
	switch {
	case revenue.GreaterThan(e.cfg.ClassAThreshold):
		return ClassA
	case revenue.GreaterThan(e.cfg.ClassBThreshold):
		return ClassB
	default:
		return ClassC
	}
}

// LogRun persists a computed recommendation list as one immutable run and
// archives the payload. Persistence failures are logged and do not fail the
// run; the recommendations themselves are already in the caller's hands.
func (e *Engine) LogRun(ctx context.Context, recs []Recommendation) (id.ID, error) {
	runID := id.New()
	for i := range recs {
		recs[i].RunID = runID
	}

	if err := e.log.AppendRun(ctx, runID, recs); err != nil {
		logger.Error(ctx, "failed to log recommendation run",
			"run_id", runID, "count", len(recs), "error", err)
		return runID, nil
	}

	if e.archive != nil {
		if err := e.archive.ArchiveRun(ctx, runID, recs); err != nil {
			logger.Warn(ctx, "failed to archive recommendation run",
				"run_id", runID, "error", err)
		}
	}

	logger.Info(ctx, "recommendation run logged", "run_id", runID, "count", len(recs))
	return runID, nil
}
