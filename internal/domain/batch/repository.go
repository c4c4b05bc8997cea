package batch

import (
	"context"
	"time"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

// Repository persists batches. Mutating reads take row locks so the
// read-modify-write of quantity_remaining is serialized per product.
type Repository interface {
	Create(ctx context.Context, b *Batch) error
	Update(ctx context.Context, b *Batch) error

	// GetByID returns a batch. NOT_FOUND when absent.
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)

	// GetByIDForUpdate locks the row (SELECT ... FOR UPDATE). Must be
	// called within a transaction.
	GetByIDForUpdate(ctx context.Context, batchID id.ID) (*Batch, error)

	// Exists reports whether (product, batch number, store) is taken.
	Exists(ctx context.Context, productID id.ID, batchNumber string, storeID *id.ID) (bool, error)

	// ListEligibleForUpdate returns lockable allocation candidates:
	// active, not flagged expired, expiry >= asOf date, remaining > 0,
	// ordered by expiry_date ASC then created_at ASC. Must be called
	// within a transaction; rows are locked FOR UPDATE.
	ListEligibleForUpdate(ctx context.Context, productID id.ID, asOf time.Time) ([]*Batch, error)

	// ListByProduct returns all batches of a product, newest expiry last.
	ListByProduct(ctx context.Context, productID id.ID, includeInactive bool) ([]*Batch, error)

	// ListExpiredUnflagged locks batches with expiry_date < asOf date,
	// quantity_remaining > 0 and is_expired = false. Used by the expiry
	// sweep; the flag makes the sweep idempotent.
	ListExpiredUnflagged(ctx context.Context, asOf time.Time) ([]*Batch, error)

	// ListExpiringWithin returns active batches with remaining stock whose
	// expiry falls in [from, to), soonest first.
	ListExpiringWithin(ctx context.Context, from, to time.Time) ([]*Batch, error)

	// SumEligibleRemaining returns total sellable stock for a product.
	SumEligibleRemaining(ctx context.Context, productID id.ID, asOf time.Time) (types.Quantity, error)

	// SumEligibleRemainingAll returns sellable stock for every product
	// with at least one eligible batch. Feeds the reorder engine.
	SumEligibleRemainingAll(ctx context.Context, asOf time.Time) (map[id.ID]types.Quantity, error)

	// ExpiredStock returns expired batches still holding stock
	// (value-at-risk).
	ExpiredStock(ctx context.Context, asOf time.Time) ([]*Batch, error)
}
