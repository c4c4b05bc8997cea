// Package velocity computes per-product sales velocity over a trailing
// window. The reorder engine feeds on its output; the aggregator itself is
// a pure read and may be safely retried.
package velocity

import (
	"context"
	"fmt"
	"time"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

// DefaultWindowDays is the trailing window used when the caller does not
// specify one.
const DefaultWindowDays = 30

// ProductStats holds aggregated sales figures for one product.
type ProductStats struct {
	TotalSold  types.Quantity `json:"totalSold"`
	OrderCount int            `json:"orderCount"`

	// AvgDailySales = TotalSold / window days.
	AvgDailySales float64 `json:"avgDailySales"`

	// Revenue is the sale-line revenue within the window, used for ABC
	// classification.
	Revenue types.Money `json:"revenue"`
}

// SaleLine is one historical sale-line fact as returned by the history
// collaborator.
type SaleLine struct {
	LineID    id.ID          `db:"id"`
	SaleID    id.ID          `db:"sale_id"`
	ProductID id.ID          `db:"product_id"`
	Quantity  types.Quantity `db:"quantity"`
	Revenue   types.Money    `db:"revenue"`
	SoldAt    time.Time      `db:"sold_at"`
}

// History is the outbound collaborator that owns sale-line data.
type History interface {
	// AggregateByProduct returns per-product totals for sale lines with
	// sold_at in [from, to).
	AggregateByProduct(ctx context.Context, from, to time.Time) ([]ProductAggregate, error)
}

// Recorder ingests sale-line facts from the point of sale.
type Recorder interface {
	// ImportLines bulk-inserts sale lines atomically.
	ImportLines(ctx context.Context, lines []SaleLine) error
}

// ProductAggregate is the raw per-product rollup from the history query.
type ProductAggregate struct {
	ProductID  id.ID          `db:"product_id"`
	TotalSold  types.Quantity `db:"total_sold"`
	OrderCount int            `db:"order_count"`
	Revenue    types.Money    `db:"revenue"`
}

// Aggregator computes trailing-window sales velocity.
type Aggregator struct {
	history History
	now     func() time.Time
}

// NewAggregator creates a sales velocity aggregator.
func NewAggregator(history History) *Aggregator {
	return &Aggregator{history: history, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// WindowStats returns per-product stats over the trailing windowDays.
// Products with no sales in the window are absent from the map; callers
// must treat "absent" and "zero sales" identically.
func (a *Aggregator) WindowStats(ctx context.Context, windowDays int) (map[id.ID]ProductStats, error) {
	if windowDays <= 0 {
		return nil, apperror.NewInvalidWindow(windowDays)
	}

	to := a.now()
	from := to.AddDate(0, 0, -windowDays)

	rows, err := a.history.AggregateByProduct(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate sale lines: %w", err)
	}

	stats := make(map[id.ID]ProductStats, len(rows))
	for _, row := range rows {
		stats[row.ProductID] = ProductStats{
			TotalSold:     row.TotalSold,
			OrderCount:    row.OrderCount,
			AvgDailySales: row.TotalSold.Float64() / float64(windowDays),
			Revenue:       row.Revenue,
		}
	}
	return stats, nil
}
