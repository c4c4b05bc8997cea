package ledger

import (
	"context"
	"time"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

// Repository persists ledger entries. Implementations must be append-only:
// no update or delete statements exist for the ledger table.
type Repository interface {
	// Append inserts entries. Called inside the batch mutation transaction
	// so entries and batch rows commit together.
	Append(ctx context.Context, entries ...Entry) error

	// GetByID returns a single entry. NOT_FOUND when absent.
	GetByID(ctx context.Context, entryID id.ID) (*Entry, error)

	// ListByBatch returns all entries for a batch in creation order.
	ListByBatch(ctx context.Context, batchID id.ID) ([]Entry, error)

	// ListByProduct returns entries for a product within [from, to).
	ListByProduct(ctx context.Context, productID id.ID, from, to time.Time) ([]Entry, error)

	// SumDeltaByBatch returns the signed sum of entry deltas for a batch,
	// excluding expiry_writeoff entries (the batch row keeps its remaining
	// quantity as value-at-risk after a write-off). Used to reconstruct
	// quantity_remaining independently of the mutable batch row.
	SumDeltaByBatch(ctx context.Context, batchID id.ID) (types.Quantity, error)
}

// ReplayRemaining reconstructs a batch's remaining quantity from the ledger.
// The result must equal the batch row's quantity_remaining; a mismatch
// indicates a mutation that bypassed the allocator.
func ReplayRemaining(ctx context.Context, repo Repository, batchID id.ID) (types.Quantity, error) {
	return repo.SumDeltaByBatch(ctx, batchID)
}
