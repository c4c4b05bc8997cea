package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/domain/reorder"
	"pharmstock/internal/infrastructure/http/v1/dto"
	"pharmstock/internal/infrastructure/storage/postgres"
)

// ReorderHandler handles reorder engine endpoints.
type ReorderHandler struct {
	*BaseHandler
	engine  *reorder.Engine
	drafter *reorder.Drafter
	recLog  reorder.Repository
	archive *postgres.RunArchive
}

// NewReorderHandler creates a new reorder handler.
func NewReorderHandler(base *BaseHandler, engine *reorder.Engine, drafter *reorder.Drafter, recLog reorder.Repository, archive *postgres.RunArchive) *ReorderHandler {
	return &ReorderHandler{
		BaseHandler: base,
		engine:      engine,
		drafter:     drafter,
		recLog:      recLog,
		archive:     archive,
	}
}

func (h *ReorderHandler) runParams(c *gin.Context) (reorder.RunParams, bool) {
	var query dto.ReorderQuery
	if !h.BindQuery(c, &query) {
		return reorder.RunParams{}, false
	}

	params := reorder.RunParams{
		WindowDays: query.WindowDays,
		ABCFilter:  reorder.ABCClass(query.ABCClass),
	}

	if query.Filter != "" {
		filter, err := reorder.CompileFilter(query.Filter)
		if err != nil {
			h.Error(c, err)
			return reorder.RunParams{}, false
		}
		params.Filter = filter
	}
	return params, true
}

// Recommendations handles GET /reorder/recommendations
// Pure computation; nothing is persisted.
func (h *ReorderHandler) Recommendations(c *gin.Context) {
	params, ok := h.runParams(c)
	if !ok {
		return
	}

	recs, err := h.engine.Recommendations(c.Request.Context(), params)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: dto.FromRecommendations(recs), TotalCount: len(recs)})
}

// CreateRun handles POST /reorder/runs
// Computes recommendations and logs them as one immutable run.
func (h *ReorderHandler) CreateRun(c *gin.Context) {
	params, ok := h.runParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	recs, err := h.engine.Recommendations(ctx, params)
	if err != nil {
		h.Error(c, err)
		return
	}

	runID, err := h.engine.LogRun(ctx, recs)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.RunResponse{
		RunID:           runID.String(),
		Recommendations: dto.FromRecommendations(recs),
	})
}

// GetRun handles GET /reorder/runs/:runId
func (h *ReorderHandler) GetRun(c *gin.Context) {
	runID, err := id.Parse(c.Param("runId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid runId format"))
		return
	}

	recs, err := h.recLog.ListByRun(c.Request.Context(), runID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if len(recs) == 0 {
		h.Error(c, apperror.NewNotFound("reorder run", runID.String()))
		return
	}

	h.OK(c, dto.RunResponse{
		RunID:           runID.String(),
		Recommendations: dto.FromRecommendations(recs),
	})
}

// GetRunArchive handles GET /reorder/runs/:runId/archive
// Returns the archived snapshot payload as stored, already JSON.
func (h *ReorderHandler) GetRunArchive(c *gin.Context) {
	runID, err := id.Parse(c.Param("runId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid runId format"))
		return
	}

	payload, err := h.archive.ReadRun(c.Request.Context(), runID)
	if err != nil {
		h.Error(c, apperror.NewNotFound("reorder run archive", runID.String()))
		return
	}

	c.Data(http.StatusOK, "application/json", payload)
}

// Pending handles GET /reorder/pending?limit=
func (h *ReorderHandler) Pending(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 100)

	recs, err := h.recLog.ListPending(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: dto.FromRecommendations(recs), TotalCount: len(recs)})
}

// Grouped handles GET /reorder/grouped
// Computes recommendations and partitions them by supplier.
func (h *ReorderHandler) Grouped(c *gin.Context) {
	params, ok := h.runParams(c)
	if !ok {
		return
	}

	recs, err := h.engine.Recommendations(c.Request.Context(), params)
	if err != nil {
		h.Error(c, err)
		return
	}

	groups := reorder.GroupBySupplier(recs)
	out := make(map[string][]dto.RecommendationResponse, len(groups))
	for supplierID, supplierRecs := range groups {
		key := ""
		if supplierID != reorder.UnknownSupplier {
			key = supplierID.String()
		}
		out[key] = dto.FromRecommendations(supplierRecs)
	}

	h.OK(c, dto.GroupedResponse{Suppliers: out})
}

// DraftPO handles POST /reorder/po-draft
// Builds a draft purchase order for one supplier from a logged run and
// marks the used recommendations po_created.
func (h *ReorderHandler) DraftPO(c *gin.Context) {
	var req dto.PODraftRequest
	if !h.BindJSON(c, &req) {
		return
	}

	runID, err := id.Parse(req.RunID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid runId format"))
		return
	}

	supplierID := reorder.UnknownSupplier
	if req.SupplierID != "" {
		supplierID, err = id.Parse(req.SupplierID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid supplierId format"))
			return
		}
	}

	ctx := c.Request.Context()
	recs, err := h.recLog.ListByRun(ctx, runID)
	if err != nil {
		h.Error(c, err)
		return
	}

	supplierRecs := reorder.GroupBySupplier(recs)[supplierID]
	if len(supplierRecs) == 0 {
		h.Error(c, apperror.NewNotFound("recommendations for supplier", supplierID.String()))
		return
	}

	draft, err := h.drafter.Draft(ctx, supplierID, supplierRecs)
	if err != nil {
		h.Error(c, err)
		return
	}

	recIDs := make([]id.ID, len(supplierRecs))
	for i, rec := range supplierRecs {
		recIDs[i] = rec.ID
	}
	if err := h.recLog.UpdateStatus(ctx, recIDs, reorder.StatusPOCreated); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPODraft(draft))
}
