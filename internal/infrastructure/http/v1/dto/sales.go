package dto

import (
	"time"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
	"pharmstock/internal/domain/velocity"
)

// --- Requests ---

// SaleLineRequest is one sale-line fact from the point of sale.
type SaleLineRequest struct {
	SaleID    string         `json:"saleId" binding:"required,uuid"`
	ProductID string         `json:"productId" binding:"required,uuid"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	Revenue   types.Money    `json:"revenue"`
	SoldAt    time.Time      `json:"soldAt" binding:"required"`
}

// ImportSalesRequest bulk-imports sale lines.
type ImportSalesRequest struct {
	Lines []SaleLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToSaleLines converts the request into domain sale lines, assigning ids.
func (r ImportSalesRequest) ToSaleLines() ([]velocity.SaleLine, error) {
	lines := make([]velocity.SaleLine, len(r.Lines))
	for i, in := range r.Lines {
		saleID, err := id.Parse(in.SaleID)
		if err != nil {
			return nil, err
		}
		productID, err := id.Parse(in.ProductID)
		if err != nil {
			return nil, err
		}
		lines[i] = velocity.SaleLine{
			LineID:    id.New(),
			SaleID:    saleID,
			ProductID: productID,
			Quantity:  in.Quantity,
			Revenue:   in.Revenue,
			SoldAt:    in.SoldAt,
		}
	}
	return lines, nil
}

// --- Responses ---

// ProductVelocityResponse is the trailing-window velocity of one product.
type ProductVelocityResponse struct {
	ProductID     string  `json:"productId"`
	TotalSold     float64 `json:"totalSold"`
	OrderCount    int     `json:"orderCount"`
	AvgDailySales float64 `json:"avgDailySales"`
	Revenue       string  `json:"revenue"`
}

// FromWindowStats converts an aggregator result into response items ordered
// by the caller.
func FromWindowStats(stats map[id.ID]velocity.ProductStats) []ProductVelocityResponse {
	out := make([]ProductVelocityResponse, 0, len(stats))
	for productID, s := range stats {
		out = append(out, ProductVelocityResponse{
			ProductID:     productID.String(),
			TotalSold:     s.TotalSold.Float64(),
			OrderCount:    s.OrderCount,
			AvgDailySales: s.AvgDailySales,
			Revenue:       s.Revenue.String(),
		})
	}
	return out
}
