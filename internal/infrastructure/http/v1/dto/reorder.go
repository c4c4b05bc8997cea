package dto

import (
	"time"

	"pharmstock/internal/core/id"
	"pharmstock/internal/domain/reorder"
)

// --- Requests ---

// ReorderQuery controls a recommendation computation.
type ReorderQuery struct {
	WindowDays int    `form:"windowDays" binding:"omitempty,min=1"`
	ABCClass   string `form:"abcClass" binding:"omitempty,oneof=A B C"`
	Filter     string `form:"filter"`
}

// PODraftRequest builds a draft purchase order for one supplier from a
// logged run.
type PODraftRequest struct {
	RunID string `json:"runId" binding:"required,uuid"`

	// SupplierID empty means the unknown-supplier group.
	SupplierID string `json:"supplierId,omitempty" binding:"omitempty,uuid"`
}

// --- Responses ---

// RecommendationResponse represents one reorder recommendation.
type RecommendationResponse struct {
	ID             string    `json:"id"`
	RunID          string    `json:"runId,omitempty"`
	ProductID      string    `json:"productId"`
	SKU            string    `json:"sku"`
	ProductName    string    `json:"productName"`
	SupplierID     *string   `json:"supplierId,omitempty"`
	CurrentStock   float64   `json:"currentStock"`
	ReorderPoint   int64     `json:"reorderPoint"`
	RecommendedQty int64     `json:"recommendedQty"`
	DaysOfSupply   float64   `json:"daysOfSupply"`
	Priority       string    `json:"priority"`
	ABCClass       string    `json:"abcClass"`
	EstimatedCost  string    `json:"estimatedCost"`
	Reason         string    `json:"reason"`
	Status         string    `json:"status,omitempty"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// FromRecommendation converts a recommendation.
func FromRecommendation(rec reorder.Recommendation) RecommendationResponse {
	var supplierID *string
	if rec.SupplierID != nil {
		s := rec.SupplierID.String()
		supplierID = &s
	}

	runID := ""
	if !id.IsNil(rec.RunID) {
		runID = rec.RunID.String()
	}

	return RecommendationResponse{
		ID:             rec.ID.String(),
		RunID:          runID,
		ProductID:      rec.ProductID.String(),
		SKU:            rec.SKU,
		ProductName:    rec.ProductName,
		SupplierID:     supplierID,
		CurrentStock:   rec.CurrentStock.Float64(),
		ReorderPoint:   rec.ReorderPoint,
		RecommendedQty: rec.RecommendedQty,
		DaysOfSupply:   rec.DaysOfSupply,
		Priority:       string(rec.Priority),
		ABCClass:       string(rec.ABCClass),
		EstimatedCost:  rec.EstimatedCost.String(),
		Reason:         rec.Reason(),
		Status:         string(rec.Status),
		GeneratedAt:    rec.GeneratedAt,
	}
}

// FromRecommendations converts a recommendation list.
func FromRecommendations(recs []reorder.Recommendation) []RecommendationResponse {
	out := make([]RecommendationResponse, len(recs))
	for i, rec := range recs {
		out[i] = FromRecommendation(rec)
	}
	return out
}

// RunResponse is a logged recommendation run.
type RunResponse struct {
	RunID           string                   `json:"runId"`
	Recommendations []RecommendationResponse `json:"recommendations"`
}

// GroupedResponse partitions recommendations by supplier. The empty-string
// key holds products with no supplier assigned.
type GroupedResponse struct {
	Suppliers map[string][]RecommendationResponse `json:"suppliers"`
}

// POLineResponse is one line of a draft purchase order.
type POLineResponse struct {
	ProductID   string `json:"productId"`
	SKU         string `json:"sku"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TotalPrice  string `json:"totalPrice"`
	Priority    string `json:"priority"`
}

// PODraftResponse is an unpersisted purchase order proposal.
type PODraftResponse struct {
	Number      string           `json:"number"`
	SupplierID  string           `json:"supplierId"`
	Lines       []POLineResponse `json:"lines"`
	TotalItems  int64            `json:"totalItems"`
	TotalAmount string           `json:"totalAmount"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// FromPODraft converts a draft purchase order.
func FromPODraft(draft *reorder.PODraft) PODraftResponse {
	lines := make([]POLineResponse, len(draft.Lines))
	for i, line := range draft.Lines {
		lines[i] = POLineResponse{
			ProductID:   line.ProductID.String(),
			SKU:         line.SKU,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.String(),
			TotalPrice:  line.TotalPrice.String(),
			Priority:    string(line.Priority),
		}
	}

	return PODraftResponse{
		Number:      draft.Number,
		SupplierID:  draft.SupplierID.String(),
		Lines:       lines,
		TotalItems:  draft.TotalItems,
		TotalAmount: draft.TotalAmount.String(),
		Status:      draft.Status,
		CreatedAt:   draft.CreatedAt,
	}
}
