package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heavenslive/cred-parity-service/internal/api"
	"github.com/heavenslive/cred-parity-service/internal/config"
	"github.com/heavenslive/cred-parity-service/internal/logger"
	"github.com/heavenslive/cred-parity-service/internal/parity"
	"github.com/heavenslive/cred-parity-service/internal/platform"
	"github.com/heavenslive/cred-parity-service/internal/ratelimit"
	"github.com/heavenslive/cred-parity-service/internal/source"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Connect to the currency metadata store
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to create database pool: %v", err)
	}
	defer pool.Close()

	// Initialize the parity system
	currencySource := source.NewPostgresSource(pool, cfg.SourceTimeout)
	parityCache := parity.NewCache(currencySource, logger, cfg.ParityCacheTTL)
	conversionEngine := parity.NewEngine(parityCache, logger)
	rateLimiter := ratelimit.NewLimiter(cfg, logger)

	// Warm the cache; a failure here is not fatal, reads will retry the source
	warmupCtx, cancelWarmup := context.WithTimeout(context.Background(), cfg.SourceTimeout)
	if err := parityCache.LoadCurrencies(warmupCtx); err != nil {
		logger.Warnf("Initial currency load failed: %v", err)
	}
	cancelWarmup()

	// Initialize HTTP handlers
	handlerConfig := api.HandlerConfig{
		Logger:      logger,
		Cache:       parityCache,
		Engine:      conversionEngine,
		RateLimiter: rateLimiter,
	}
	handlers := api.NewHandlers(handlerConfig)

	// Setup Gin router
	router := handlers.SetupRoutes()

	// Setup HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting parity service on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Create a shutdown context that works across platforms
	shutdownCtx, stop := platform.NewShutdownContext(context.Background())
	defer stop()
	<-shutdownCtx.Done()

	logger.Info("Shutting down server...")

	// Stop rate limiter cleanup
	rateLimiter.Stop()

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
