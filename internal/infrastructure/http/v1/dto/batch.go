package dto

import (
	"time"

	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/batch"
	"pharmstock/internal/domain/ledger"
)

// --- Requests ---

// ReceiveBatchRequest creates a new batch from a goods receipt.
type ReceiveBatchRequest struct {
	ProductID       string         `json:"productId" binding:"required,uuid"`
	BatchNumber     string         `json:"batchNumber" binding:"required"`
	StoreID         *string        `json:"storeId,omitempty" binding:"omitempty,uuid"`
	ManufactureDate *time.Time     `json:"manufactureDate,omitempty"`
	ExpiryDate      time.Time      `json:"expiryDate" binding:"required"`
	Quantity        types.Quantity `json:"quantity" binding:"required"`
	PurchasePrice   types.Money    `json:"purchasePrice"`
	SellingPrice    types.Money    `json:"sellingPrice"`
	PurchaseID      *string        `json:"purchaseId,omitempty" binding:"omitempty,uuid"`
	RackNumber      string         `json:"rackNumber,omitempty"`
	Notes           string         `json:"notes,omitempty"`
}

// ConsumeStockRequest draws stock of one product across batches.
type ConsumeStockRequest struct {
	ProductID     string         `json:"productId" binding:"required,uuid"`
	Quantity      types.Quantity `json:"quantity" binding:"required"`
	ReferenceID   *string        `json:"referenceId,omitempty" binding:"omitempty,uuid"`
	ReferenceType string         `json:"referenceType,omitempty"`
}

// RecordDamageRequest writes off damaged stock from one batch.
type RecordDamageRequest struct {
	BatchID  string         `json:"batchId" binding:"required,uuid"`
	Quantity types.Quantity `json:"quantity" binding:"required"`
	Reason   string         `json:"reason" binding:"required"`
}

// AdjustStockRequest applies a signed correction to one batch.
type AdjustStockRequest struct {
	BatchID string         `json:"batchId" binding:"required,uuid"`
	Delta   types.Quantity `json:"delta" binding:"required"`
	Reason  string         `json:"reason" binding:"required"`
}

// --- Responses ---

// BatchResponse represents a batch in API responses.
type BatchResponse struct {
	ID                string     `json:"id"`
	ProductID         string     `json:"productId"`
	BatchNumber       string     `json:"batchNumber"`
	StoreID           *string    `json:"storeId,omitempty"`
	ManufactureDate   *time.Time `json:"manufactureDate,omitempty"`
	ExpiryDate        time.Time  `json:"expiryDate"`
	QuantityReceived  float64    `json:"quantityReceived"`
	QuantityRemaining float64    `json:"quantityRemaining"`
	QuantitySold      float64    `json:"quantitySold"`
	QuantityReturned  float64    `json:"quantityReturned"`
	QuantityDamaged   float64    `json:"quantityDamaged"`
	PurchasePrice     string     `json:"purchasePrice"`
	SellingPrice      string     `json:"sellingPrice"`
	RackNumber        string     `json:"rackNumber,omitempty"`
	IsActive          bool       `json:"isActive"`
	IsExpired         bool       `json:"isExpired"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// FromBatch converts a batch to its response DTO.
func FromBatch(b *batch.Batch) BatchResponse {
	var storeID *string
	if b.StoreID != nil {
		s := b.StoreID.String()
		storeID = &s
	}

	return BatchResponse{
		ID:                b.ID.String(),
		ProductID:         b.ProductID.String(),
		BatchNumber:       b.BatchNumber,
		StoreID:           storeID,
		ManufactureDate:   b.ManufactureDate,
		ExpiryDate:        b.ExpiryDate,
		QuantityReceived:  b.QuantityReceived.Float64(),
		QuantityRemaining: b.QuantityRemaining.Float64(),
		QuantitySold:      b.QuantitySold.Float64(),
		QuantityReturned:  b.QuantityReturned.Float64(),
		QuantityDamaged:   b.QuantityDamaged.Float64(),
		PurchasePrice:     b.PurchasePrice.String(),
		SellingPrice:      b.SellingPrice.String(),
		RackNumber:        b.RackNumber,
		IsActive:          b.IsActive,
		IsExpired:         b.IsExpired,
		CreatedAt:         b.CreatedAt,
	}
}

// ConsumptionResponse is one batch drawn from during a consume.
type ConsumptionResponse struct {
	BatchID     string  `json:"batchId"`
	BatchNumber string  `json:"batchNumber"`
	Quantity    float64 `json:"quantity"`
	UnitCost    string  `json:"unitCost"`
	EntryID     string  `json:"entryId"`
}

// FromConsumptions converts allocation results.
func FromConsumptions(consumptions []batch.Consumption) []ConsumptionResponse {
	out := make([]ConsumptionResponse, len(consumptions))
	for i, c := range consumptions {
		out[i] = ConsumptionResponse{
			BatchID:     c.BatchID.String(),
			BatchNumber: c.BatchNumber,
			Quantity:    c.Quantity.Float64(),
			UnitCost:    c.UnitCost.String(),
			EntryID:     c.EntryID.String(),
		}
	}
	return out
}

// WriteOffResponse is one expired batch written off by the sweep.
type WriteOffResponse struct {
	BatchID     string  `json:"batchId"`
	BatchNumber string  `json:"batchNumber"`
	ProductID   string  `json:"productId"`
	Quantity    float64 `json:"quantity"`
	Value       string  `json:"value"`
}

// FromWriteOffs converts sweep results.
func FromWriteOffs(writeOffs []batch.WriteOff) []WriteOffResponse {
	out := make([]WriteOffResponse, len(writeOffs))
	for i, w := range writeOffs {
		out[i] = WriteOffResponse{
			BatchID:     w.BatchID.String(),
			BatchNumber: w.BatchNumber,
			ProductID:   w.ProductID.String(),
			Quantity:    w.Quantity.Float64(),
			Value:       w.Value.String(),
		}
	}
	return out
}

// StockResponse is the aggregate sellable stock of one product.
type StockResponse struct {
	ProductID string  `json:"productId"`
	Available float64 `json:"available"`
}

// LedgerEntryResponse represents one ledger entry.
type LedgerEntryResponse struct {
	ID            string    `json:"id"`
	BatchID       string    `json:"batchId"`
	ProductID     string    `json:"productId"`
	EntryType     string    `json:"entryType"`
	Delta         float64   `json:"delta"`
	ReferenceID   *string   `json:"referenceId,omitempty"`
	ReferenceType string    `json:"referenceType,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FromLedgerEntry converts a ledger entry.
func FromLedgerEntry(e ledger.Entry) LedgerEntryResponse {
	var refID *string
	if e.ReferenceID != nil {
		s := e.ReferenceID.String()
		refID = &s
	}

	return LedgerEntryResponse{
		ID:            e.ID.String(),
		BatchID:       e.BatchID.String(),
		ProductID:     e.ProductID.String(),
		EntryType:     string(e.Type),
		Delta:         e.Delta.Float64(),
		ReferenceID:   refID,
		ReferenceType: e.ReferenceType,
		Notes:         e.Notes,
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
	}
}
