// Package batch provides batch-level stock tracking and allocation.
// Each received lot of a product is tracked as its own Batch with expiry
// date and cost; consumption depletes earliest-expiring stock first.
package batch

import (
	"context"
	"time"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

// Batch represents a received lot of a product.
//
// Invariant: QuantityRemaining = QuantityReceived - QuantitySold -
// QuantityDamaged - QuantityReturned, always >= 0. The allocator is the
// only writer; all mutations happen under a row lock.
type Batch struct {
	ID        id.ID `db:"id" json:"id"`
	ProductID id.ID `db:"product_id" json:"productId"`

	// BatchNumber is unique per (product, store).
	BatchNumber string `db:"batch_number" json:"batchNumber"`
	StoreID     *id.ID `db:"store_id" json:"storeId,omitempty"`

	ManufactureDate *time.Time `db:"manufacture_date" json:"manufactureDate,omitempty"`
	ExpiryDate      time.Time  `db:"expiry_date" json:"expiryDate"`

	QuantityReceived  types.Quantity `db:"quantity_received" json:"quantityReceived"`
	QuantityRemaining types.Quantity `db:"quantity_remaining" json:"quantityRemaining"`
	QuantitySold      types.Quantity `db:"quantity_sold" json:"quantitySold"`
	QuantityReturned  types.Quantity `db:"quantity_returned" json:"quantityReturned"`
	QuantityDamaged   types.Quantity `db:"quantity_damaged" json:"quantityDamaged"`

	PurchasePrice types.Money `db:"purchase_price" json:"purchasePrice"`
	SellingPrice  types.Money `db:"selling_price" json:"sellingPrice"`

	// PurchaseID references the receiving document, when known.
	PurchaseID *id.ID `db:"purchase_id" json:"purchaseId,omitempty"`

	RackNumber string `db:"rack_number" json:"rackNumber,omitempty"`
	Notes      string `db:"notes" json:"notes,omitempty"`

	IsActive  bool `db:"is_active" json:"isActive"`
	IsExpired bool `db:"is_expired" json:"isExpired"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ExpiredAsOf reports whether the batch's expiry date has passed.
// Comparison is by calendar date: a batch expiring today is still sellable.
func (b *Batch) ExpiredAsOf(today time.Time) bool {
	return b.ExpiryDate.Before(startOfDay(today))
}

// Eligible reports whether the batch may be drawn from for a sale.
func (b *Batch) Eligible(today time.Time) bool {
	return b.IsActive && !b.IsExpired && b.QuantityRemaining.IsPositive() && !b.ExpiredAsOf(today)
}

// RemainingValue returns purchase value of the remaining quantity.
func (b *Batch) RemainingValue() types.Money {
	return b.PurchasePrice.Mul(b.QuantityRemaining.Decimal())
}

// retire soft-deactivates a batch once it holds no stock.
func (b *Batch) retire() {
	if b.QuantityRemaining.IsZero() {
		b.IsActive = false
	}
}

// Validate checks structural requirements before persistence.
func (b *Batch) Validate(ctx context.Context) error {
	if id.IsNil(b.ProductID) {
		return apperror.NewValidation("product_id is required").WithDetail("field", "productId")
	}
	if b.BatchNumber == "" {
		return apperror.NewValidation("batch_number is required").WithDetail("field", "batchNumber")
	}
	if b.ExpiryDate.IsZero() {
		return apperror.NewValidation("expiry_date is required").WithDetail("field", "expiryDate")
	}
	if b.QuantityReceived.IsNegative() || b.QuantityRemaining.IsNegative() {
		return apperror.NewValidation("quantities cannot be negative")
	}
	return nil
}

// Consumption describes one allocation step of a consume call.
type Consumption struct {
	BatchID     id.ID          `json:"batchId"`
	BatchNumber string         `json:"batchNumber"`
	Quantity    types.Quantity `json:"quantity"`
	UnitCost    types.Money    `json:"unitCost"`

	// EntryID is the sale ledger entry recorded for this step.
	EntryID id.ID `json:"entryId"`
}

// WriteOff describes one batch written off by an expiry sweep.
type WriteOff struct {
	BatchID     id.ID          `json:"batchId"`
	BatchNumber string         `json:"batchNumber"`
	ProductID   id.ID          `json:"productId"`
	Quantity    types.Quantity `json:"quantity"`
	Value       types.Money    `json:"value"`
}

// ReceiveInput carries everything needed to record a purchase receipt.
type ReceiveInput struct {
	ProductID       id.ID          `json:"productId"`
	BatchNumber     string         `json:"batchNumber"`
	StoreID         *id.ID         `json:"storeId,omitempty"`
	ManufactureDate *time.Time     `json:"manufactureDate,omitempty"`
	ExpiryDate      time.Time      `json:"expiryDate"`
	Quantity        types.Quantity `json:"quantity"`
	PurchasePrice   types.Money    `json:"purchasePrice"`
	SellingPrice    types.Money    `json:"sellingPrice"`
	PurchaseID      *id.ID         `json:"purchaseId,omitempty"`
	RackNumber      string         `json:"rackNumber,omitempty"`
	Notes           string         `json:"notes,omitempty"`
}

// ConsumeRef identifies the document that triggered a consumption.
type ConsumeRef struct {
	ID   *id.ID
	Type string // "sale", "transfer", ...
}

// startOfDay truncates to a calendar date in UTC, matching the truncation
// the storage layer applies in its expiry predicates.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
