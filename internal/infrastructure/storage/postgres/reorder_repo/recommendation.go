// Package reorder_repo provides the PostgreSQL recommendation log. Runs are
// append-only; only the per-row status column advances as purchasing acts.
package reorder_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/reorder"
	"pharmstock/internal/infrastructure/storage/postgres"
)

const recommendationsTable = "reorder_recommendations"

var recommendationColumns = []string{
	"id", "run_id", "product_id", "sku", "product_name", "supplier_id",
	"current_stock", "reorder_point", "recommended_qty", "days_of_supply",
	"priority", "abc_class", "estimated_cost",
	"basis_kind", "avg_daily_sales", "min_level",
	"status", "generated_at",
}

const (
	basisKindNoHistory  = "no_history"
	basisKindHistorical = "historical"
)

// recommendationRow is the flat storage shape; the basis variant is encoded
// in basis_kind plus its payload columns.
type recommendationRow struct {
	ID             id.ID           `db:"id"`
	RunID          id.ID           `db:"run_id"`
	ProductID      id.ID           `db:"product_id"`
	SKU            string          `db:"sku"`
	ProductName    string          `db:"product_name"`
	SupplierID     *id.ID          `db:"supplier_id"`
	CurrentStock   types.Quantity  `db:"current_stock"`
	ReorderPoint   int64           `db:"reorder_point"`
	RecommendedQty int64           `db:"recommended_qty"`
	DaysOfSupply   float64         `db:"days_of_supply"`
	Priority       string          `db:"priority"`
	ABCClass       string          `db:"abc_class"`
	EstimatedCost  decimal.Decimal `db:"estimated_cost"`
	BasisKind      string          `db:"basis_kind"`
	AvgDailySales  float64         `db:"avg_daily_sales"`
	MinLevel       types.Quantity  `db:"min_level"`
	Status         string          `db:"status"`
	GeneratedAt    time.Time       `db:"generated_at"`
}

func toRow(rec reorder.Recommendation) recommendationRow {
	row := recommendationRow{
		ID:             rec.ID,
		RunID:          rec.RunID,
		ProductID:      rec.ProductID,
		SKU:            rec.SKU,
		ProductName:    rec.ProductName,
		SupplierID:     rec.SupplierID,
		CurrentStock:   rec.CurrentStock,
		ReorderPoint:   rec.ReorderPoint,
		RecommendedQty: rec.RecommendedQty,
		DaysOfSupply:   rec.DaysOfSupply,
		Priority:       string(rec.Priority),
		ABCClass:       string(rec.ABCClass),
		EstimatedCost:  rec.EstimatedCost,
		Status:         string(rec.Status),
		GeneratedAt:    rec.GeneratedAt,
	}

	switch basis := rec.Basis.(type) {
	case reorder.NoHistoryBasis:
		row.BasisKind = basisKindNoHistory
		row.MinLevel = basis.MinLevel
	case reorder.HistoricalBasis:
		row.BasisKind = basisKindHistorical
		row.AvgDailySales = basis.AvgDailySales
	}
	return row
}

func fromRow(row recommendationRow) reorder.Recommendation {
	rec := reorder.Recommendation{
		ID:             row.ID,
		RunID:          row.RunID,
		ProductID:      row.ProductID,
		SKU:            row.SKU,
		ProductName:    row.ProductName,
		SupplierID:     row.SupplierID,
		CurrentStock:   row.CurrentStock,
		ReorderPoint:   row.ReorderPoint,
		RecommendedQty: row.RecommendedQty,
		DaysOfSupply:   row.DaysOfSupply,
		Priority:       reorder.Priority(row.Priority),
		ABCClass:       reorder.ABCClass(row.ABCClass),
		EstimatedCost:  row.EstimatedCost,
		Status:         reorder.Status(row.Status),
		GeneratedAt:    row.GeneratedAt,
	}

	switch row.BasisKind {
	case basisKindNoHistory:
		rec.Basis = reorder.NoHistoryBasis{MinLevel: row.MinLevel}
	case basisKindHistorical:
		rec.Basis = reorder.HistoricalBasis{
			AvgDailySales: row.AvgDailySales,
			Class:         reorder.ABCClass(row.ABCClass),
		}
	}
	return rec
}

// RecommendationRepo implements reorder.Repository.
type RecommendationRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ reorder.Repository = (*RecommendationRepo)(nil)

// NewRecommendationRepo creates a new recommendation log repository.
func NewRecommendationRepo(txManager *postgres.TxManager) *RecommendationRepo {
	return &RecommendationRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *RecommendationRepo) AppendRun(ctx context.Context, runID id.ID, recs []reorder.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inserter := postgres.NewBulkInserter(r.txManager)
		rows := make([][]any, 0, len(recs))
		for _, rec := range recs {
			row := toRow(rec)
			row.RunID = runID
			rows = append(rows, []any{
				row.ID, row.RunID, row.ProductID, row.SKU, row.ProductName, row.SupplierID,
				row.CurrentStock, row.ReorderPoint, row.RecommendedQty, row.DaysOfSupply,
				row.Priority, row.ABCClass, row.EstimatedCost,
				row.BasisKind, row.AvgDailySales, row.MinLevel,
				row.Status, row.GeneratedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, recommendationsTable, recommendationColumns, rows); err != nil {
			return fmt.Errorf("copy recommendations: %w", err)
		}
		return nil
	})
}

func (r *RecommendationRepo) ListByRun(ctx context.Context, runID id.ID) ([]reorder.Recommendation, error) {
	q := r.builder.Select(recommendationColumns...).
		From(recommendationsTable).
		Where(squirrel.Eq{"run_id": runID})

	recs, err := r.list(ctx, q)
	if err != nil {
		return nil, err
	}
	// Priority rank is a domain notion; alphabetical SQL ordering would
	// only match it by accident.
	reorder.SortByUrgency(recs)
	return recs, nil
}

func (r *RecommendationRepo) ListPending(ctx context.Context, limit int) ([]reorder.Recommendation, error) {
	q := r.builder.Select(recommendationColumns...).
		From(recommendationsTable).
		Where(squirrel.Eq{"status": string(reorder.StatusPending)}).
		OrderBy("generated_at DESC", "days_of_supply ASC")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	return r.list(ctx, q)
}

func (r *RecommendationRepo) list(ctx context.Context, q squirrel.SelectBuilder) ([]reorder.Recommendation, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []recommendationRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select recommendations: %w", err)
	}

	recs := make([]reorder.Recommendation, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, fromRow(row))
	}
	return recs, nil
}

func (r *RecommendationRepo) UpdateStatus(ctx context.Context, recIDs []id.ID, status reorder.Status) error {
	if len(recIDs) == 0 {
		return nil
	}

	q := r.builder.Update(recommendationsTable).
		Set("status", string(status)).
		Where(squirrel.Eq{"id": recIDs})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update recommendation status: %w", err)
	}
	return nil
}
