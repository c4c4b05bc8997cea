package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BulkInserter provides efficient bulk insert operations using the COPY
// protocol. Used for ledger entries and sale-line imports, where a single
// receipt or import can carry many rows.
type BulkInserter struct {
	txManager *TxManager
}

// NewBulkInserter creates a new bulk inserter.
func NewBulkInserter(txManager *TxManager) *BulkInserter {
	return &BulkInserter{txManager: txManager}
}

// CopyFromSlice performs bulk insert from a slice of rows. Requires an
// active transaction in ctx: COPY cannot run on the pool directly while
// preserving atomicity with the surrounding writes.
func (b *BulkInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	t := b.txManager.GetTx(ctx)
	if t == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}

	return t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}
