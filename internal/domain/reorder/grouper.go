package reorder

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

// UnknownSupplier groups recommendations whose product has no supplier
// assigned. Purchasing resolves these by hand.
var UnknownSupplier = id.Nil()

// GroupBySupplier partitions recommendations by supplier, preserving the
// input order within each group.
func GroupBySupplier(recs []Recommendation) map[id.ID][]Recommendation {
	groups := make(map[id.ID][]Recommendation)
	for _, rec := range recs {
		key := UnknownSupplier
		if rec.SupplierID != nil {
			key = *rec.SupplierID
		}
		groups[key] = append(groups[key], rec)
	}
	return groups
}

// POStatusDraft is the only status the drafter emits. Confirming a draft
// into a real purchase order belongs to the purchasing collaborator.
const POStatusDraft = "DRAFT"

// POLine is one product line of a draft purchase order.
type POLine struct {
	ProductID   id.ID       `json:"productId"`
	SKU         string      `json:"sku"`
	ProductName string      `json:"productName"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   types.Money `json:"unitPrice"`
	TotalPrice  types.Money `json:"totalPrice"`
	Priority    Priority    `json:"priority"`
}

// PODraft is an unpersisted purchase order proposal for one supplier.
type PODraft struct {
	Number      string      `json:"number"`
	SupplierID  id.ID       `json:"supplierId"`
	Lines       []POLine    `json:"lines"`
	TotalItems  int64       `json:"totalItems"`
	TotalAmount types.Money `json:"totalAmount"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Numberer issues draft document numbers.
type Numberer interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Drafter turns a supplier's recommendations into a draft purchase order.
type Drafter struct {
	numbers Numberer
	now     func() time.Time
}

// NewDrafter creates a PO drafter. numbers may be nil; drafts then carry an
// empty number and purchasing assigns one on confirmation.
func NewDrafter(numbers Numberer) *Drafter {
	return &Drafter{numbers: numbers, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (d *Drafter) WithClock(now func() time.Time) *Drafter {
	d.now = now
	return d
}

// Draft builds a purchase order draft from the given recommendations. Every
// recommendation must belong to supplierID (nil supplier matches the
// unknown-supplier key).
func (d *Drafter) Draft(ctx context.Context, supplierID id.ID, recs []Recommendation) (*PODraft, error) {
	if len(recs) == 0 {
		return nil, apperror.NewValidation("cannot draft a purchase order from zero recommendations")
	}

	lines := make([]POLine, 0, len(recs))
	totalItems := int64(0)
	totalAmount := types.Zero()

	for _, rec := range recs {
		recSupplier := UnknownSupplier
		if rec.SupplierID != nil {
			recSupplier = *rec.SupplierID
		}
		if recSupplier != supplierID {
			return nil, apperror.NewValidation("recommendation belongs to another supplier").
				WithDetail("product_id", rec.ProductID.String()).
				WithDetail("supplier_id", recSupplier.String())
		}

		unitPrice := types.Zero()
		if rec.RecommendedQty > 0 {
			unitPrice = rec.EstimatedCost.Div(decimal.NewFromInt(rec.RecommendedQty))
		}

		lines = append(lines, POLine{
			ProductID:   rec.ProductID,
			SKU:         rec.SKU,
			ProductName: rec.ProductName,
			Quantity:    rec.RecommendedQty,
			UnitPrice:   unitPrice,
			TotalPrice:  rec.EstimatedCost,
			Priority:    rec.Priority,
		})
		totalItems += rec.RecommendedQty
		totalAmount = totalAmount.Add(rec.EstimatedCost)
	}

	number := ""
	if d.numbers != nil {
		var err error
		number, err = d.numbers.Next(ctx, "POD")
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("number purchase order draft: %w", err))
		}
	}

	return &PODraft{
		Number:      number,
		SupplierID:  supplierID,
		Lines:       lines,
		TotalItems:  totalItems,
		TotalAmount: totalAmount,
		Status:      POStatusDraft,
		CreatedAt:   d.now(),
	}, nil
}
