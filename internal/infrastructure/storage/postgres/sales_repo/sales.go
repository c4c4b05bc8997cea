// Package sales_repo provides the PostgreSQL sale-line history used by the
// velocity aggregator. Sale lines arrive from the POS integration; this
// module only reads and bulk-imports them.
package sales_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmstock/internal/domain/velocity"
	"pharmstock/internal/infrastructure/storage/postgres"
)

const saleLinesTable = "sale_lines"

var saleLineColumns = []string{
	"id", "sale_id", "product_id", "quantity", "revenue", "sold_at",
}

// SalesRepo implements velocity.History.
type SalesRepo struct {
	txManager *postgres.TxManager
}

var _ velocity.History = (*SalesRepo)(nil)
var _ velocity.Recorder = (*SalesRepo)(nil)

// NewSalesRepo creates a new sales history repository.
func NewSalesRepo(txManager *postgres.TxManager) *SalesRepo {
	return &SalesRepo{txManager: txManager}
}

// AggregateByProduct rolls up sale lines with sold_at in [from, to).
func (r *SalesRepo) AggregateByProduct(ctx context.Context, from, to time.Time) ([]velocity.ProductAggregate, error) {
	sql := `
		SELECT product_id,
		       COALESCE(SUM(quantity), 0)        AS total_sold,
		       COUNT(DISTINCT sale_id)::int      AS order_count,
		       COALESCE(SUM(revenue), 0)         AS revenue
		FROM sale_lines
		WHERE sold_at >= $1 AND sold_at < $2
		GROUP BY product_id
	`

	var rows []velocity.ProductAggregate
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, from, to); err != nil {
		return nil, fmt.Errorf("aggregate sale lines: %w", err)
	}
	return rows, nil
}

// ImportLines bulk-inserts sale lines. Must run inside a transaction so a
// failed import leaves no partial history.
func (r *SalesRepo) ImportLines(ctx context.Context, lines []velocity.SaleLine) error {
	if len(lines) == 0 {
		return nil
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inserter := postgres.NewBulkInserter(r.txManager)
		rows := make([][]any, 0, len(lines))
		for _, line := range lines {
			rows = append(rows, []any{
				line.LineID, line.SaleID, line.ProductID, line.Quantity, line.Revenue, line.SoldAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, saleLinesTable, saleLineColumns, rows); err != nil {
			return fmt.Errorf("copy sale lines: %w", err)
		}
		return nil
	})
}
