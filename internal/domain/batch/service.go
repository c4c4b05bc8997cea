package batch

import (
	"context"
	"fmt"
	"time"

	"pharmstock/internal/core/apperror"
	appctx "pharmstock/internal/core/context"
	"pharmstock/internal/core/id"
	"pharmstock/internal/core/tx"
	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/ledger"
	"pharmstock/pkg/logger"
)

// Allocator applies signed quantity changes to a product's batches while
// preserving the per-batch invariant and the expiry-first consumption order.
// All mutations run in a transaction with row locks, so concurrent sales
// drawing from the same batches serialize instead of losing updates.
type Allocator struct {
	batches   Repository
	entries   ledger.Repository
	txManager tx.Manager

	// maxRetries bounds retry attempts on lock conflicts.
	maxRetries int

	// now is injectable for tests.
	now func() time.Time
}

// NewAllocator creates a batch allocator.
func NewAllocator(batches Repository, entries ledger.Repository, txManager tx.Manager) *Allocator {
	return &Allocator{
		batches:    batches,
		entries:    entries,
		txManager:  txManager,
		maxRetries: 3,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Receive creates a batch from a purchase receipt and records the initial
// purchase ledger entry. Fails with DUPLICATE_BATCH when the
// (product, batch number, store) triple already exists.
func (a *Allocator) Receive(ctx context.Context, in ReceiveInput) (*Batch, error) {
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}

	now := a.now()
	b := &Batch{
		ID:                id.New(),
		ProductID:         in.ProductID,
		BatchNumber:       in.BatchNumber,
		StoreID:           in.StoreID,
		ManufactureDate:   in.ManufactureDate,
		ExpiryDate:        in.ExpiryDate,
		QuantityReceived:  in.Quantity,
		QuantityRemaining: in.Quantity,
		PurchasePrice:     in.PurchasePrice,
		SellingPrice:      in.SellingPrice,
		PurchaseID:        in.PurchaseID,
		RackNumber:        in.RackNumber,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// A batch received already past its expiry date is kept for the
	// record but never enters allocation.
	b.IsExpired = b.ExpiredAsOf(now)
	b.IsActive = !b.IsExpired

	if err := b.Validate(ctx); err != nil {
		return nil, err
	}

	err := a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := a.batches.Exists(ctx, in.ProductID, in.BatchNumber, in.StoreID)
		if err != nil {
			return fmt.Errorf("check batch number: %w", err)
		}
		if exists {
			return apperror.NewDuplicateBatch(in.ProductID.String(), in.BatchNumber)
		}

		if err := a.batches.Create(ctx, b); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}

		entry := ledger.Entry{
			ID:            id.New(),
			BatchID:       b.ID,
			ProductID:     b.ProductID,
			Type:          ledger.EntryPurchase,
			Delta:         in.Quantity,
			ReferenceID:   in.PurchaseID,
			ReferenceType: "purchase",
			Notes:         fmt.Sprintf("Initial stock for batch %s", b.BatchNumber),
			CreatedBy:     appctx.GetActorID(ctx),
			CreatedAt:     now,
		}
		if err := a.entries.Append(ctx, entry); err != nil {
			return fmt.Errorf("append purchase entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch received",
		"batch_id", b.ID,
		"product_id", b.ProductID,
		"batch_number", b.BatchNumber,
		"quantity", b.QuantityReceived,
		"expired_on_arrival", b.IsExpired,
	)
	return b, nil
}

// Consume draws qty from a product's eligible batches, earliest expiry
// first, and records one sale ledger entry per batch touched.
//
// All-or-nothing: when total eligible stock is below qty the transaction
// rolls back with INSUFFICIENT_STOCK and no batch is mutated.
func (a *Allocator) Consume(ctx context.Context, productID id.ID, qty types.Quantity, ref ConsumeRef) ([]Consumption, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}

	var result []Consumption
	err := a.withRetry(ctx, func(ctx context.Context) error {
		result = nil
		return a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			consumed, err := a.consumeLocked(ctx, productID, qty, ref)
			if err != nil {
				return err
			}
			result = consumed
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock consumed",
		"product_id", productID,
		"quantity", qty,
		"batches_touched", len(result),
	)
	return result, nil
}

func (a *Allocator) consumeLocked(ctx context.Context, productID id.ID, qty types.Quantity, ref ConsumeRef) ([]Consumption, error) {
	now := a.now()

	candidates, err := a.batches.ListEligibleForUpdate(ctx, productID, now)
	if err != nil {
		return nil, fmt.Errorf("list eligible batches: %w", err)
	}

	var available types.Quantity
	for _, b := range candidates {
		available = available.Add(b.QuantityRemaining)
	}
	if available < qty {
		return nil, apperror.NewInsufficientStock(productID.String(), qty.Float64(), available.Float64())
	}

	actor := appctx.GetActorID(ctx)
	remaining := qty
	consumptions := make([]Consumption, 0, 1)
	entries := make([]ledger.Entry, 0, 1)

	for _, b := range candidates {
		if remaining.IsZero() {
			break
		}

		take := b.QuantityRemaining.Min(remaining)
		b.QuantityRemaining = b.QuantityRemaining.Sub(take)
		b.QuantitySold = b.QuantitySold.Add(take)
		b.UpdatedAt = now
		b.retire()

		if err := a.batches.Update(ctx, b); err != nil {
			return nil, fmt.Errorf("update batch %s: %w", b.ID, err)
		}

		entry := ledger.Entry{
			ID:            id.New(),
			BatchID:       b.ID,
			ProductID:     productID,
			Type:          ledger.EntrySale,
			Delta:         take.Neg(),
			ReferenceID:   ref.ID,
			ReferenceType: ref.Type,
			CreatedBy:     actor,
			CreatedAt:     now,
		}
		entries = append(entries, entry)
		consumptions = append(consumptions, Consumption{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			UnitCost:    b.PurchasePrice,
			EntryID:     entry.ID,
		})

		remaining = remaining.Sub(take)
	}

	if err := a.entries.Append(ctx, entries...); err != nil {
		return nil, fmt.Errorf("append sale entries: %w", err)
	}
	return consumptions, nil
}

// Reverse restores the quantity of a prior sale or damage entry to its
// batch and appends a compensating entry of the opposite sign.
func (a *Allocator) Reverse(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	var compensating *ledger.Entry

	err := a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		original, err := a.entries.GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		if !original.IsReversible() {
			return apperror.NewNotReversible(entryID.String(),
				fmt.Sprintf("%s entries cannot be reversed", original.Type))
		}

		// Reject double reversals: any prior compensating entry
		// referencing this one means the quantity is already back.
		prior, err := a.entries.ListByBatch(ctx, original.BatchID)
		if err != nil {
			return fmt.Errorf("list batch entries: %w", err)
		}
		for _, e := range prior {
			if e.ReferenceID != nil && *e.ReferenceID == original.ID && e.ReferenceType == "reversal" {
				return apperror.NewNotReversible(entryID.String(), "entry already reversed")
			}
		}

		b, err := a.batches.GetByIDForUpdate(ctx, original.BatchID)
		if err != nil {
			return err
		}
		if !b.IsActive && !b.QuantityRemaining.IsZero() {
			return apperror.NewNotReversible(entryID.String(), "batch is inactive")
		}
		if b.IsExpired {
			return apperror.NewNotReversible(entryID.String(), "batch is expired")
		}

		now := a.now()
		restored := original.Delta.Neg() // sale/damage deltas are negative

		b.QuantityRemaining = b.QuantityRemaining.Add(restored)
		switch original.Type {
		case ledger.EntrySale:
			b.QuantitySold = b.QuantitySold.Sub(restored)
		case ledger.EntryDamage:
			b.QuantityDamaged = b.QuantityDamaged.Sub(restored)
		}
		// Restocking a retired batch brings it back into allocation.
		if b.QuantityRemaining.IsPositive() {
			b.IsActive = true
		}
		b.UpdatedAt = now

		if err := a.batches.Update(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		refID := original.ID
		entry := ledger.Entry{
			ID:            id.New(),
			BatchID:       b.ID,
			ProductID:     b.ProductID,
			Type:          original.ReversalType(),
			Delta:         restored,
			ReferenceID:   &refID,
			ReferenceType: "reversal",
			Notes:         fmt.Sprintf("Reversal of %s entry %s", original.Type, original.ID),
			CreatedBy:     appctx.GetActorID(ctx),
			CreatedAt:     now,
		}
		if err := a.entries.Append(ctx, entry); err != nil {
			return fmt.Errorf("append reversal entry: %w", err)
		}
		compensating = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "ledger entry reversed",
		"entry_id", entryID,
		"reversal_id", compensating.ID,
		"batch_id", compensating.BatchID,
	)
	return compensating, nil
}

// RecordDamage writes damaged stock out of a batch.
func (a *Allocator) RecordDamage(ctx context.Context, batchID id.ID, qty types.Quantity, reason string) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}

	return a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := a.batches.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if b.QuantityRemaining < qty {
			return apperror.NewInsufficientStock(b.ProductID.String(), qty.Float64(), b.QuantityRemaining.Float64())
		}

		now := a.now()
		b.QuantityRemaining = b.QuantityRemaining.Sub(qty)
		b.QuantityDamaged = b.QuantityDamaged.Add(qty)
		b.UpdatedAt = now
		b.retire()

		if err := a.batches.Update(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		entry := ledger.Entry{
			ID:            id.New(),
			BatchID:       b.ID,
			ProductID:     b.ProductID,
			Type:          ledger.EntryDamage,
			Delta:         qty.Neg(),
			ReferenceType: "waste",
			Notes:         fmt.Sprintf("Waste: %s", reason),
			CreatedBy:     appctx.GetActorID(ctx),
			CreatedAt:     now,
		}
		if err := a.entries.Append(ctx, entry); err != nil {
			return fmt.Errorf("append damage entry: %w", err)
		}

		logger.Info(ctx, "damage recorded",
			"batch_id", b.ID,
			"quantity", qty,
			"reason", reason,
		)
		return nil
	})
}

// Adjust applies a signed stocktake correction to a batch.
func (a *Allocator) Adjust(ctx context.Context, batchID id.ID, delta types.Quantity, reason string) error {
	if delta.IsZero() {
		return apperror.NewValidation("delta cannot be zero").WithDetail("field", "delta")
	}

	return a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := a.batches.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return err
		}

		next := b.QuantityRemaining.Add(delta)
		if next.IsNegative() {
			return apperror.NewInsufficientStock(b.ProductID.String(), delta.Abs().Float64(), b.QuantityRemaining.Float64())
		}

		now := a.now()
		b.QuantityRemaining = next
		b.UpdatedAt = now
		if next.IsPositive() && !b.IsExpired {
			b.IsActive = true
		}
		b.retire()

		if err := a.batches.Update(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		entry := ledger.Entry{
			ID:            id.New(),
			BatchID:       b.ID,
			ProductID:     b.ProductID,
			Type:          ledger.EntryAdjustment,
			Delta:         delta,
			ReferenceType: "stock_adjustment",
			Notes:         reason,
			CreatedBy:     appctx.GetActorID(ctx),
			CreatedAt:     now,
		}
		if err := a.entries.Append(ctx, entry); err != nil {
			return fmt.Errorf("append adjustment entry: %w", err)
		}

		logger.Info(ctx, "batch adjusted",
			"batch_id", b.ID,
			"delta", delta,
			"reason", reason,
		)
		return nil
	})
}

// WriteOffExpired flags every batch past its expiry date that still holds
// stock and records one expiry_writeoff entry per batch for the full
// remaining quantity. Idempotent: flagged batches are skipped, so a second
// sweep is a no-op.
func (a *Allocator) WriteOffExpired(ctx context.Context) ([]WriteOff, error) {
	var writeOffs []WriteOff

	err := a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		writeOffs = nil
		now := a.now()
		actor := appctx.GetActorID(ctx)

		expired, err := a.batches.ListExpiredUnflagged(ctx, now)
		if err != nil {
			return fmt.Errorf("list expired batches: %w", err)
		}

		for _, b := range expired {
			b.IsExpired = true
			b.IsActive = false
			b.UpdatedAt = now

			if err := a.batches.Update(ctx, b); err != nil {
				return fmt.Errorf("update batch %s: %w", b.ID, err)
			}

			entry := ledger.Entry{
				ID:            id.New(),
				BatchID:       b.ID,
				ProductID:     b.ProductID,
				Type:          ledger.EntryExpiryWriteoff,
				Delta:         b.QuantityRemaining.Neg(),
				ReferenceType: "expiry_sweep",
				Notes:         fmt.Sprintf("Expired %s", b.ExpiryDate.Format("2006-01-02")),
				CreatedBy:     actor,
				CreatedAt:     now,
			}
			if err := a.entries.Append(ctx, entry); err != nil {
				return fmt.Errorf("append writeoff entry: %w", err)
			}

			writeOffs = append(writeOffs, WriteOff{
				BatchID:     b.ID,
				BatchNumber: b.BatchNumber,
				ProductID:   b.ProductID,
				Quantity:    b.QuantityRemaining,
				Value:       b.RemainingValue(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(writeOffs) > 0 {
		logger.Info(ctx, "expired batches written off", "count", len(writeOffs))
	}
	return writeOffs, nil
}

// AvailableStock returns total sellable stock for a product across
// eligible batches.
func (a *Allocator) AvailableStock(ctx context.Context, productID id.ID) (types.Quantity, error) {
	return a.batches.SumEligibleRemaining(ctx, productID, a.now())
}

// ExpiringWithin returns batches with stock expiring in the next N days,
// soonest first.
func (a *Allocator) ExpiringWithin(ctx context.Context, days int) ([]*Batch, error) {
	if days <= 0 {
		return nil, apperror.NewValidation("days must be positive").WithDetail("field", "days")
	}
	now := a.now()
	return a.batches.ListExpiringWithin(ctx, now, now.AddDate(0, 0, days))
}

// ValueAtRisk returns the purchase value locked in expired batches that
// still hold stock.
func (a *Allocator) ValueAtRisk(ctx context.Context) (types.Money, error) {
	expired, err := a.batches.ExpiredStock(ctx, a.now())
	if err != nil {
		return types.Zero(), fmt.Errorf("expired stock: %w", err)
	}

	total := types.Zero()
	for _, b := range expired {
		total = total.Add(b.RemainingValue())
	}
	return total, nil
}

// withRetry retries fn a bounded number of times on lock conflicts.
// Anything else surfaces immediately.
func (a *Allocator) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn(ctx, "retrying after lock conflict", "attempt", attempt)
		}
		err = fn(ctx)
		if err == nil || !apperror.IsConcurrentModification(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
