package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/domain/batch"
	"pharmstock/internal/domain/ledger"
	"pharmstock/internal/infrastructure/http/v1/dto"
)

// BatchHandler handles batch lifecycle and stock mutation endpoints.
type BatchHandler struct {
	*BaseHandler
	allocator *batch.Allocator
	batches   batch.Repository
	entries   ledger.Repository
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(base *BaseHandler, allocator *batch.Allocator, batches batch.Repository, entries ledger.Repository) *BatchHandler {
	return &BatchHandler{
		BaseHandler: base,
		allocator:   allocator,
		batches:     batches,
		entries:     entries,
	}
}

// Receive handles POST /batches
func (h *BatchHandler) Receive(c *gin.Context) {
	var req dto.ReceiveBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	in := batch.ReceiveInput{
		ProductID:       productID,
		BatchNumber:     req.BatchNumber,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
		Quantity:        req.Quantity,
		PurchasePrice:   req.PurchasePrice,
		SellingPrice:    req.SellingPrice,
		RackNumber:      req.RackNumber,
		Notes:           req.Notes,
	}

	if req.StoreID != nil {
		storeID, err := id.Parse(*req.StoreID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid storeId format"))
			return
		}
		in.StoreID = &storeID
	}
	if req.PurchaseID != nil {
		purchaseID, err := id.Parse(*req.PurchaseID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid purchaseId format"))
			return
		}
		in.PurchaseID = &purchaseID
	}

	created, err := h.allocator.Receive(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, created.ID.String())
}

// Get handles GET /batches/:batchId
func (h *BatchHandler) Get(c *gin.Context) {
	batchID, err := id.Parse(c.Param("batchId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid batchId format"))
		return
	}

	b, err := h.batches.GetByID(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBatch(b))
}

// ListByProduct handles GET /batches?productId=&includeInactive=
func (h *BatchHandler) ListByProduct(c *gin.Context) {
	productID, err := id.Parse(c.Query("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	includeInactive := c.Query("includeInactive") == "true"

	batches, err := h.batches.ListByProduct(c.Request.Context(), productID, includeInactive)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.BatchResponse, len(batches))
	for i, b := range batches {
		items[i] = dto.FromBatch(b)
	}
	h.OK(c, dto.ListResponse{Items: items, TotalCount: len(items)})
}

// Expiring handles GET /batches/expiring?days=30
func (h *BatchHandler) Expiring(c *gin.Context) {
	days := h.ParseIntQuery(c, "days", 30)

	batches, err := h.allocator.ExpiringWithin(c.Request.Context(), days)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.BatchResponse, len(batches))
	for i, b := range batches {
		items[i] = dto.FromBatch(b)
	}
	h.OK(c, dto.ListResponse{Items: items, TotalCount: len(items)})
}

// WriteOffExpired handles POST /batches/write-off-expired
func (h *BatchHandler) WriteOffExpired(c *gin.Context) {
	writeOffs, err := h.allocator.WriteOffExpired(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"writtenOff": dto.FromWriteOffs(writeOffs),
		"count":      len(writeOffs),
	})
}

// Consume handles POST /stock/consume
func (h *BatchHandler) Consume(c *gin.Context) {
	var req dto.ConsumeStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	ref := batch.ConsumeRef{Type: req.ReferenceType}
	if req.ReferenceID != nil {
		refID, err := id.Parse(*req.ReferenceID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid referenceId format"))
			return
		}
		ref.ID = &refID
	}

	consumptions, err := h.allocator.Consume(c.Request.Context(), productID, req.Quantity, ref)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"consumptions": dto.FromConsumptions(consumptions)})
}

// Damage handles POST /stock/damage
func (h *BatchHandler) Damage(c *gin.Context) {
	var req dto.RecordDamageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	batchID, err := id.Parse(req.BatchID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid batchId format"))
		return
	}

	if err := h.allocator.RecordDamage(c.Request.Context(), batchID, req.Quantity, req.Reason); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "damage recorded")
}

// Adjust handles POST /stock/adjust
func (h *BatchHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	batchID, err := id.Parse(req.BatchID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid batchId format"))
		return
	}

	if err := h.allocator.Adjust(c.Request.Context(), batchID, req.Delta, req.Reason); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "adjustment recorded")
}

// AvailableStock handles GET /stock/:productId
func (h *BatchHandler) AvailableStock(c *gin.Context) {
	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	available, err := h.allocator.AvailableStock(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.StockResponse{
		ProductID: productID.String(),
		Available: available.Float64(),
	})
}

// ValueAtRisk handles GET /stock/value-at-risk
func (h *BatchHandler) ValueAtRisk(c *gin.Context) {
	value, err := h.allocator.ValueAtRisk(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"valueAtRisk": value.String()})
}

// Reverse handles POST /ledger/:entryId/reverse
func (h *BatchHandler) Reverse(c *gin.Context) {
	entryID, err := id.Parse(c.Param("entryId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid entryId format"))
		return
	}

	compensating, err := h.allocator.Reverse(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromLedgerEntry(*compensating))
}

// LedgerByBatch handles GET /ledger/batch/:batchId
func (h *BatchHandler) LedgerByBatch(c *gin.Context) {
	batchID, err := id.Parse(c.Param("batchId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid batchId format"))
		return
	}

	entries, err := h.entries.ListByBatch(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = dto.FromLedgerEntry(e)
	}
	h.OK(c, dto.ListResponse{Items: items, TotalCount: len(items)})
}

// LedgerByProduct handles GET /ledger/product/:productId?from=&to=
// Timestamps are RFC 3339; to defaults to now, from to 30 days before to.
func (h *BatchHandler) LedgerByProduct(c *gin.Context) {
	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	to := time.Now().UTC()
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid 'to' timestamp, expected RFC 3339"))
			return
		}
	}

	from := to.AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid 'from' timestamp, expected RFC 3339"))
			return
		}
	}

	entries, err := h.entries.ListByProduct(c.Request.Context(), productID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = dto.FromLedgerEntry(e)
	}
	h.OK(c, dto.ListResponse{Items: items, TotalCount: len(items)})
}

// ReplayBatch handles GET /ledger/batch/:batchId/replay
// Reconstructs remaining quantity from the ledger and compares it against
// the batch row.
func (h *BatchHandler) ReplayBatch(c *gin.Context) {
	batchID, err := id.Parse(c.Param("batchId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid batchId format"))
		return
	}

	ctx := c.Request.Context()
	b, err := h.batches.GetByID(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	replayed, err := ledger.ReplayRemaining(ctx, h.entries, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"batchId":           batchID.String(),
		"recordedRemaining": b.QuantityRemaining,
		"ledgerRemaining":   replayed,
		"consistent":        replayed == b.QuantityRemaining,
	})
}
