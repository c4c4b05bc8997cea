// Package batch_repo provides the PostgreSQL implementation of the batch
// repository.
package batch_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/batch"
	"pharmstock/internal/infrastructure/storage/postgres"
)

const batchesTable = "batches"

var batchColumns = []string{
	"id", "product_id", "batch_number", "store_id",
	"manufacture_date", "expiry_date",
	"quantity_received", "quantity_remaining", "quantity_sold",
	"quantity_returned", "quantity_damaged",
	"purchase_price", "selling_price", "purchase_id",
	"rack_number", "notes", "is_active", "is_expired",
	"created_at", "updated_at",
}

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ batch.Repository = (*BatchRepo)(nil)

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	q := r.builder.Insert(batchesTable).
		Columns(batchColumns...).
		Values(
			b.ID, b.ProductID, b.BatchNumber, b.StoreID,
			b.ManufactureDate, b.ExpiryDate,
			b.QuantityReceived, b.QuantityRemaining, b.QuantitySold,
			b.QuantityReturned, b.QuantityDamaged,
			b.PurchasePrice, b.SellingPrice, b.PurchaseID,
			b.RackNumber, b.Notes, b.IsActive, b.IsExpired,
			b.CreatedAt, b.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicateBatch(b.ProductID.String(), b.BatchNumber).WithCause(err)
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) Update(ctx context.Context, b *batch.Batch) error {
	b.UpdatedAt = time.Now().UTC()

	q := r.builder.Update(batchesTable).
		Set("quantity_remaining", b.QuantityRemaining).
		Set("quantity_sold", b.QuantitySold).
		Set("quantity_returned", b.QuantityReturned).
		Set("quantity_damaged", b.QuantityDamaged).
		Set("rack_number", b.RackNumber).
		Set("notes", b.Notes).
		Set("is_active", b.IsActive).
		Set("is_expired", b.IsExpired).
		Set("updated_at", b.UpdatedAt).
		Where(squirrel.Eq{"id": b.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(batchesTable, b.ID.String())
	}
	return nil
}

func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": batchID}).
		Limit(1)

	return r.getOne(ctx, q, batchID)
}

func (r *BatchRepo) GetByIDForUpdate(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": batchID}).
		Suffix("FOR UPDATE")

	return r.getOne(ctx, q, batchID)
}

func (r *BatchRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, batchID id.ID) (*batch.Batch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b batch.Batch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(batchesTable, batchID.String())
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &b, nil
}

func (r *BatchRepo) Exists(ctx context.Context, productID id.ID, batchNumber string, storeID *id.ID) (bool, error) {
	q := r.builder.Select("1").
		From(batchesTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"batch_number": batchNumber}).
		Limit(1)

	if storeID != nil {
		q = q.Where(squirrel.Eq{"store_id": *storeID})
	} else {
		q = q.Where(squirrel.Eq{"store_id": nil})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var exists int
	err = querier.QueryRow(ctx, sql, args...).Scan(&exists)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

func (r *BatchRepo) ListEligibleForUpdate(ctx context.Context, productID id.ID, asOf time.Time) ([]*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Eq{"is_expired": false}).
		Where(squirrel.GtOrEq{"expiry_date": dateOf(asOf)}).
		Where(squirrel.Gt{"quantity_remaining": int64(0)}).
		OrderBy("expiry_date ASC", "created_at ASC").
		Suffix("FOR UPDATE")

	return r.list(ctx, q)
}

func (r *BatchRepo) ListByProduct(ctx context.Context, productID id.ID, includeInactive bool) ([]*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("expiry_date ASC", "created_at ASC")

	if !includeInactive {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	return r.list(ctx, q)
}

func (r *BatchRepo) ListExpiredUnflagged(ctx context.Context, asOf time.Time) ([]*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Lt{"expiry_date": dateOf(asOf)}).
		Where(squirrel.Gt{"quantity_remaining": int64(0)}).
		Where(squirrel.Eq{"is_expired": false}).
		OrderBy("expiry_date ASC").
		Suffix("FOR UPDATE")

	return r.list(ctx, q)
}

func (r *BatchRepo) ListExpiringWithin(ctx context.Context, from, to time.Time) ([]*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Eq{"is_expired": false}).
		Where(squirrel.Gt{"quantity_remaining": int64(0)}).
		Where(squirrel.GtOrEq{"expiry_date": dateOf(from)}).
		Where(squirrel.Lt{"expiry_date": dateOf(to)}).
		OrderBy("expiry_date ASC")

	return r.list(ctx, q)
}

func (r *BatchRepo) ExpiredStock(ctx context.Context, asOf time.Time) ([]*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Lt{"expiry_date": dateOf(asOf)}).
		Where(squirrel.Gt{"quantity_remaining": int64(0)}).
		OrderBy("expiry_date ASC")

	return r.list(ctx, q)
}

func (r *BatchRepo) list(ctx context.Context, q squirrel.SelectBuilder) ([]*batch.Batch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []*batch.Batch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	return batches, nil
}

func (r *BatchRepo) SumEligibleRemaining(ctx context.Context, productID id.ID, asOf time.Time) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(quantity_remaining), 0)
		FROM batches
		WHERE product_id = $1
		  AND is_active = true
		  AND is_expired = false
		  AND expiry_date >= $2
		  AND quantity_remaining > 0
	`

	var total int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, productID, dateOf(asOf)).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum remaining: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(total), nil
}

func (r *BatchRepo) SumEligibleRemainingAll(ctx context.Context, asOf time.Time) (map[id.ID]types.Quantity, error) {
	sql := `
		SELECT product_id, COALESCE(SUM(quantity_remaining), 0) AS total
		FROM batches
		WHERE is_active = true
		  AND is_expired = false
		  AND expiry_date >= $1
		  AND quantity_remaining > 0
		GROUP BY product_id
	`

	type row struct {
		ProductID id.ID `db:"product_id"`
		Total     int64 `db:"total"`
	}

	var rows []row
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, dateOf(asOf)); err != nil {
		return nil, fmt.Errorf("sum remaining all: %w", err)
	}

	stocks := make(map[id.ID]types.Quantity, len(rows))
	for _, r := range rows {
		stocks[r.ProductID] = types.NewQuantityFromInt64Scaled(r.Total)
	}
	return stocks, nil
}

// dateOf truncates to a calendar date in UTC. Expiry comparisons are by
// date: a batch expiring today is still sellable.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
