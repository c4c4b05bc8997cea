package handlers

import (
	"sort"

	"github.com/gin-gonic/gin"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/domain/velocity"
	"pharmstock/internal/infrastructure/http/v1/dto"
)

// SalesHandler handles sale-line ingestion and velocity queries.
type SalesHandler struct {
	*BaseHandler
	recorder   velocity.Recorder
	aggregator *velocity.Aggregator
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, recorder velocity.Recorder, aggregator *velocity.Aggregator) *SalesHandler {
	return &SalesHandler{
		BaseHandler: base,
		recorder:    recorder,
		aggregator:  aggregator,
	}
}

// Import handles POST /sales/import
func (h *SalesHandler) Import(c *gin.Context) {
	var req dto.ImportSalesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lines, err := req.ToSaleLines()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id in sale lines"))
		return
	}

	if err := h.recorder.ImportLines(c.Request.Context(), lines); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"imported": len(lines)})
}

// Velocity handles GET /sales/velocity?windowDays=
func (h *SalesHandler) Velocity(c *gin.Context) {
	windowDays := h.ParseIntQuery(c, "windowDays", velocity.DefaultWindowDays)

	stats, err := h.aggregator.WindowStats(c.Request.Context(), windowDays)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := dto.FromWindowStats(stats)
	sort.Slice(items, func(i, j int) bool {
		return items[i].AvgDailySales > items[j].AvgDailySales
	})

	h.OK(c, dto.ListResponse{Items: items, TotalCount: len(items)})
}
