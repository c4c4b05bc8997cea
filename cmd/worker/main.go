// Package main is the entry point for the pharmstock background worker.
// It sweeps expired batches and logs a daily reorder recommendation run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pharmstock/internal/core/id"
	"pharmstock/internal/domain/batch"
	"pharmstock/internal/domain/reorder"
	"pharmstock/internal/domain/velocity"
	"pharmstock/internal/infrastructure/storage/postgres"
	"pharmstock/internal/infrastructure/storage/postgres/batch_repo"
	"pharmstock/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmstock/internal/infrastructure/storage/postgres/ledger_repo"
	"pharmstock/internal/infrastructure/storage/postgres/reorder_repo"
	"pharmstock/internal/infrastructure/storage/postgres/sales_repo"
	"pharmstock/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting pharmstock worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	batchRepo := batch_repo.NewBatchRepo(txManager)
	ledgerRepo := ledger_repo.NewLedgerRepo(txManager)
	salesRepo := sales_repo.NewSalesRepo(txManager)
	productRepo := catalog_repo.NewProductRepo(txManager)
	recRepo := reorder_repo.NewRecommendationRepo(txManager)

	runArchive, err := postgres.NewRunArchive(txManager)
	if err != nil {
		log.Fatalw("failed to initialize run archive", "error", err)
	}

	allocator := batch.NewAllocator(batchRepo, ledgerRepo, txManager)
	engine := reorder.NewEngine(
		productRepo,
		velocity.NewAggregator(salesRepo),
		batchRepo,
		recRepo,
		runArchive,
		txManager,
		reorder.DefaultConfig(),
	)

	worker := NewWorker(allocator, engine, &LogNotifier{log: log}, log)
	worker.interval = getEnvDuration("SWEEP_INTERVAL", 24*time.Hour)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx, pool)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the daily stock maintenance cycle: expired batches are written
// off first so the reorder run sees only sellable stock.
type Worker struct {
	allocator *batch.Allocator
	engine    *reorder.Engine
	notifier  reorder.Notifier
	log       *logger.Logger
	interval  time.Duration
}

func NewWorker(allocator *batch.Allocator, engine *reorder.Engine, notifier reorder.Notifier, log *logger.Logger) *Worker {
	return &Worker{
		allocator: allocator,
		engine:    engine,
		notifier:  notifier,
		log:       log.WithComponent("worker"),
		interval:  24 * time.Hour,
	}
}

// Run executes one cycle immediately, then on every tick.
func (w *Worker) Run(ctx context.Context, pool *postgres.Pool) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(1 * time.Hour)
	defer statsTicker.Stop()

	w.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cycle(ctx)
		case <-statsTicker.C:
			postgres.LogPoolStats(ctx, pool.Pool)
		}
	}
}

func (w *Worker) cycle(ctx context.Context) {
	w.sweepExpired(ctx)
	w.runReorder(ctx)
}

func (w *Worker) sweepExpired(ctx context.Context) {
	writeOffs, err := w.allocator.WriteOffExpired(ctx)
	if err != nil {
		w.log.Errorw("expired batch sweep failed", "error", err)
		return
	}
	if len(writeOffs) > 0 {
		w.log.Infow("wrote off expired batches", "count", len(writeOffs))
	}
}

func (w *Worker) runReorder(ctx context.Context) {
	recs, err := w.engine.Recommendations(ctx, reorder.RunParams{})
	if err != nil {
		w.log.Errorw("reorder computation failed", "error", err)
		return
	}
	if len(recs) == 0 {
		w.log.Info("no reorder recommendations")
		return
	}

	runID, err := w.engine.LogRun(ctx, recs)
	if err != nil {
		w.log.Errorw("failed to log reorder run", "run_id", runID, "error", err)
		return
	}

	if err := w.notifier.Notify(ctx, runID, recs); err != nil {
		w.log.Warnw("reorder notification failed", "run_id", runID, "error", err)
	}
}

// LogNotifier reports urgent recommendations through the structured log.
// A messaging integration can replace it without touching the worker.
type LogNotifier struct {
	log *logger.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, runID id.ID, recs []reorder.Recommendation) error {
	critical := 0
	for _, rec := range recs {
		if rec.Priority == reorder.PriorityCritical {
			critical++
			n.log.Warnw("critical stock level",
				"run_id", runID,
				"sku", rec.SKU,
				"product", rec.ProductName,
				"current_stock", rec.CurrentStock.String(),
				"recommended_qty", rec.RecommendedQty,
				"reason", rec.Reason(),
			)
		}
	}

	n.log.Infow("reorder run complete",
		"run_id", runID,
		"recommendations", len(recs),
		"critical", critical,
	)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
