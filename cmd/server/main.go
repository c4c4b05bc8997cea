// Package main is the entry point for the pharmstock API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmstock/internal/domain/batch"
	"pharmstock/internal/domain/reorder"
	"pharmstock/internal/domain/velocity"
	v1 "pharmstock/internal/infrastructure/http/v1"
	"pharmstock/internal/infrastructure/storage/postgres"
	"pharmstock/internal/infrastructure/storage/postgres/batch_repo"
	"pharmstock/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmstock/internal/infrastructure/storage/postgres/ledger_repo"
	"pharmstock/internal/infrastructure/storage/postgres/reorder_repo"
	"pharmstock/internal/infrastructure/storage/postgres/sales_repo"
	"pharmstock/pkg/logger"
	"pharmstock/pkg/numerator"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting pharmstock server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	batchRepo := batch_repo.NewBatchRepo(txManager)
	ledgerRepo := ledger_repo.NewLedgerRepo(txManager)
	salesRepo := sales_repo.NewSalesRepo(txManager)
	productRepo := catalog_repo.NewProductRepo(txManager)
	recRepo := reorder_repo.NewRecommendationRepo(txManager)

	runArchive, err := postgres.NewRunArchive(txManager)
	if err != nil {
		log.Fatalw("failed to initialize run archive", "error", err)
	}

	// --- Domain services ---
	allocator := batch.NewAllocator(batchRepo, ledgerRepo, txManager)
	aggregator := velocity.NewAggregator(salesRepo)

	engine := reorder.NewEngine(
		productRepo,
		aggregator,
		batchRepo,
		recRepo,
		runArchive,
		txManager,
		reorder.DefaultConfig(),
	)

	drafter := reorder.NewDrafter(numerator.New(pool))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:      pool,
		Logger:    log,
		Allocator: allocator,
		Batches:   batchRepo,
		Entries:   ledgerRepo,
		Sales:     salesRepo,
		Velocity:  aggregator,
		Engine:    engine,
		Drafter:   drafter,
		RecLog:    recRepo,
		Archive:   runArchive,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
