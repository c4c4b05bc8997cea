// Package ledger provides the append-only stock ledger. Every
// quantity-affecting event is recorded as an immutable entry; corrections
// are modeled as compensating entries, never as updates or deletes.
package ledger

import (
	"time"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

// EntryType classifies a quantity-affecting event.
type EntryType string

const (
	EntryPurchase       EntryType = "purchase"
	EntrySale           EntryType = "sale"
	EntryReturn         EntryType = "return"
	EntryDamage         EntryType = "damage"
	EntryAdjustment     EntryType = "adjustment"
	EntryExpiryWriteoff EntryType = "expiry_writeoff"
)

// IsValid reports whether t is a known entry type.
func (t EntryType) IsValid() bool {
	switch t {
	case EntryPurchase, EntrySale, EntryReturn, EntryDamage, EntryAdjustment, EntryExpiryWriteoff:
		return true
	}
	return false
}

// Entry is an immutable stock ledger fact.
type Entry struct {
	ID        id.ID     `db:"id" json:"id"`
	BatchID   id.ID     `db:"batch_id" json:"batchId"`
	ProductID id.ID     `db:"product_id" json:"productId"`
	Type      EntryType `db:"entry_type" json:"type"`

	// Delta is the signed quantity change: positive for stock in
	// (purchase, return, adjustment up), negative for stock out.
	Delta types.Quantity `db:"delta" json:"delta"`

	// ReferenceID/ReferenceType link to the originating document
	// (sale id, purchase id, reversal target, ...).
	ReferenceID   *id.ID `db:"reference_id" json:"referenceId,omitempty"`
	ReferenceType string `db:"reference_type" json:"referenceType,omitempty"`

	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// inbound entry types add stock, everything else removes it.
var inboundTypes = map[EntryType]bool{
	EntryPurchase:   true,
	EntryReturn:     true,
	EntryAdjustment: true, // adjustment delta carries its own sign
}

// IsInbound reports whether the entry type normally increases stock.
// Adjustments carry their own sign and are classified by delta.
func (e Entry) IsInbound() bool {
	if e.Type == EntryAdjustment {
		return e.Delta.IsPositive()
	}
	return inboundTypes[e.Type]
}

// IsReversible reports whether a compensating entry may be appended for e.
// Only consumption-like events can be reversed; purchases are corrected
// through adjustments, write-offs are terminal.
func (e Entry) IsReversible() bool {
	return e.Type == EntrySale || e.Type == EntryDamage
}

// reversalType returns the entry type of the compensating entry.
func (e Entry) ReversalType() EntryType {
	switch e.Type {
	case EntrySale:
		return EntryReturn
	case EntryDamage:
		return EntryAdjustment
	default:
		return EntryAdjustment
	}
}
