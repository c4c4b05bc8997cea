// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"pharmstock/internal/domain/batch"
	"pharmstock/internal/domain/ledger"
	"pharmstock/internal/domain/reorder"
	"pharmstock/internal/domain/velocity"
	"pharmstock/internal/infrastructure/http/v1/handlers"
	"pharmstock/internal/infrastructure/http/v1/middleware"
	"pharmstock/internal/infrastructure/storage/postgres"
	"pharmstock/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the shared database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// Allocator runs all stock-mutating operations
	Allocator *batch.Allocator

	// Batches for batch read endpoints
	Batches batch.Repository

	// Entries for ledger read endpoints
	Entries ledger.Repository

	// Sales ingests sale-line facts
	Sales velocity.Recorder

	// Velocity answers trailing-window velocity queries
	Velocity *velocity.Aggregator

	// Engine computes reorder recommendations
	Engine *reorder.Engine

	// Drafter builds purchase order drafts from recommendations
	Drafter *reorder.Drafter

	// RecLog stores logged recommendation runs
	RecLog reorder.Repository

	// Archive serves archived run snapshots
	Archive *postgres.RunArchive
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.ActorContext())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		registerBatchRoutes(v1, cfg)
		registerSalesRoutes(v1, cfg)
		registerReorderRoutes(v1, cfg)
	}

	return router
}

// registerBatchRoutes registers batch, stock and ledger endpoints.
func registerBatchRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewBatchHandler(baseHandler, cfg.Allocator, cfg.Batches, cfg.Entries)

	batches := rg.Group("/batches")
	{
		batches.POST("", handler.Receive)
		batches.GET("", handler.ListByProduct)
		batches.GET("/expiring", handler.Expiring)
		batches.GET("/:batchId", handler.Get)
		batches.POST("/write-off-expired", handler.WriteOffExpired)
	}

	stock := rg.Group("/stock")
	{
		stock.POST("/consume", handler.Consume)
		stock.POST("/damage", handler.Damage)
		stock.POST("/adjust", handler.Adjust)
		stock.GET("/value-at-risk", handler.ValueAtRisk)
		stock.GET("/:productId", handler.AvailableStock)
	}

	entries := rg.Group("/ledger")
	{
		entries.GET("/batch/:batchId", handler.LedgerByBatch)
		entries.GET("/batch/:batchId/replay", handler.ReplayBatch)
		entries.GET("/product/:productId", handler.LedgerByProduct)
		entries.POST("/:entryId/reverse", handler.Reverse)
	}
}

// registerSalesRoutes registers sale-line ingestion and velocity endpoints.
func registerSalesRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewSalesHandler(baseHandler, cfg.Sales, cfg.Velocity)

	sales := rg.Group("/sales")
	{
		sales.POST("/import", handler.Import)
		sales.GET("/velocity", handler.Velocity)
	}
}

// registerReorderRoutes registers reorder engine endpoints.
func registerReorderRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewReorderHandler(baseHandler, cfg.Engine, cfg.Drafter, cfg.RecLog, cfg.Archive)

	reorderGroup := rg.Group("/reorder")
	{
		reorderGroup.GET("/recommendations", handler.Recommendations)
		reorderGroup.GET("/grouped", handler.Grouped)
		reorderGroup.GET("/pending", handler.Pending)
		reorderGroup.POST("/runs", handler.CreateRun)
		reorderGroup.GET("/runs/:runId", handler.GetRun)
		reorderGroup.GET("/runs/:runId/archive", handler.GetRunArchive)
		reorderGroup.POST("/po-draft", handler.DraftPO)
	}
}
