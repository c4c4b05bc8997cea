// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository. The ledger table is append-only: this package contains
// no UPDATE or DELETE statements.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/ledger"
	"pharmstock/internal/infrastructure/storage/postgres"
)

const ledgerTable = "stock_ledger"

var ledgerColumns = []string{
	"id", "batch_id", "product_id", "entry_type", "delta",
	"reference_id", "reference_type", "notes", "created_by", "created_at",
}

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LedgerRepo) Append(ctx context.Context, entries ...ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction. A single goods receipt or
	// import can produce many entries.
	if tx := r.txManager.GetTx(ctx); tx != nil && len(entries) > 1 {
		inserter := postgres.NewBulkInserter(r.txManager)
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{
				e.ID, e.BatchID, e.ProductID, e.Type, e.Delta,
				e.ReferenceID, e.ReferenceType, e.Notes, e.CreatedBy, e.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, ledgerTable, ledgerColumns, rows); err != nil {
			return fmt.Errorf("copy ledger entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(ledgerTable).Columns(ledgerColumns...)
	for _, e := range entries {
		q = q.Values(
			e.ID, e.BatchID, e.ProductID, e.Type, e.Delta,
			e.ReferenceID, e.ReferenceType, e.Notes, e.CreatedBy, e.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

func (r *LedgerRepo) GetByID(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgerTable).
		Where(squirrel.Eq{"id": entryID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e ledger.Entry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(ledgerTable, entryID.String())
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &e, nil
}

func (r *LedgerRepo) ListByBatch(ctx context.Context, batchID id.ID) ([]ledger.Entry, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgerTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		OrderBy("created_at ASC", "id ASC")

	return r.list(ctx, q)
}

func (r *LedgerRepo) ListByProduct(ctx context.Context, productID id.ID, from, to time.Time) ([]ledger.Entry, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgerTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.GtOrEq{"created_at": from}).
		Where(squirrel.Lt{"created_at": to}).
		OrderBy("created_at ASC", "id ASC")

	return r.list(ctx, q)
}

func (r *LedgerRepo) list(ctx context.Context, q squirrel.SelectBuilder) ([]ledger.Entry, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []ledger.Entry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	return entries, nil
}

// SumDeltaByBatch excludes expiry_writeoff entries: a write-off records the
// loss in the ledger but the batch row keeps its remaining quantity as
// value-at-risk, so including it would break the reconstruction.
func (r *LedgerRepo) SumDeltaByBatch(ctx context.Context, batchID id.ID) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(delta), 0)
		FROM stock_ledger
		WHERE batch_id = $1
		  AND entry_type <> $2
	`

	var total int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, batchID, string(ledger.EntryExpiryWriteoff)).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum ledger deltas: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(total), nil
}
