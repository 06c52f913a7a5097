package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/forkful/pantry-service/internal/config"
	"github.com/forkful/pantry-service/internal/database"
	"github.com/forkful/pantry-service/internal/handlers"
	"github.com/forkful/pantry-service/internal/jobs"
	"github.com/forkful/pantry-service/internal/recipes"
	"github.com/forkful/pantry-service/internal/service"
	"github.com/forkful/pantry-service/internal/storage"
	"github.com/forkful/pantry-service/pkg/logger"
	"github.com/forkful/pantry-service/pkg/metrics"
	"github.com/forkful/pantry-service/pkg/telemetry"
)

func main() {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Starting pantry-service", "config", cfg.String())

	metricsCollector := metrics.New()
	metricsCollector.Initialize()

	if cfg.TracingEnabled {
		shutdownTracing, err := telemetry.Setup("pantry-service", log)
		if err != nil {
			log.Error("Failed to set up tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				log.Error("Failed to flush traces", "error", err)
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)

	postgres, err := database.NewPostgresDB(cfg.DatabaseURL, cfg.DatabaseMaxConns, log, metricsCollector)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgres.Close()

	sqlxDB, err := database.NewSqlxDB(cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		log.Error("Failed to initialize sqlx connection", "error", err)
		os.Exit(1)
	}
	defer sqlxDB.Close()

	redis, err := database.NewRedisDB(cfg.RedisURL, cfg.RedisMaxConns, log, metricsCollector)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	// Storage layer
	batchRepo := storage.NewBatchStorage(postgres.Pool(), logger.WithComponent(log, "batch_storage"))
	sessionRepo := storage.NewSessionStorage(postgres.Pool(), logger.WithComponent(log, "session_storage"))
	idempotencyRepo := storage.NewIdempotencyStorage(sqlxDB, logger.WithComponent(log, "idempotency_storage"))

	// Service layer
	deps := &service.ServiceDependencies{
		Repositories: &service.RepositoryInterfaces{
			Batch:       batchRepo,
			Session:     sessionRepo,
			Idempotency: idempotencyRepo,
		},
		Cache:   service.NewRedisCache(redis),
		Metrics: metricsCollector,
		Logger:  logger.WithComponent(log, "service"),
	}

	recipeLookup := recipes.NewHTTPLookup(cfg.RecipeServiceURL)

	pantryService := service.NewPantryService(deps)
	sessionService := service.NewSessionService(deps, recipeLookup)
	orchestrator := service.NewConsumptionOrchestrator(deps)
	idempotencyService := service.NewIdempotencyService(deps)
	sweepService := service.NewSweepService(deps)

	// Background jobs
	scheduler := jobs.NewScheduler(2, logger.WithComponent(log, "jobs"))
	scheduler.Register(jobs.Job{
		Name:     "expiry_sweep",
		Interval: cfg.SweepInterval,
		Run: func(ctx context.Context) (int64, error) {
			return sweepService.RunSweep(ctx, time.Now().UTC())
		},
	})
	scheduler.Register(jobs.Job{
		Name:     "idempotency_cleanup",
		Interval: cfg.IdempotencyCleanupInterval,
		Run: func(ctx context.Context) (int64, error) {
			return idempotencyService.CleanupExpired(ctx, time.Now().UTC())
		},
	})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	// Routers
	routerConfig := &handlers.RouterConfig{
		PantryService:  pantryService,
		SessionService: sessionService,
		Orchestrator:   orchestrator,
		Idempotency:    idempotencyService,
		SweepService:   sweepService,
		Postgres:       postgres,
		Redis:          redis,
		Metrics:        metricsCollector,
		Logger:         logger.WithComponent(log, "http"),
		TracingEnabled: cfg.TracingEnabled,
	}

	publicRouter := gin.New()
	handlers.SetupPublicRoutes(publicRouter, routerConfig)

	internalRouter := gin.New()
	handlers.SetupInternalRoutes(internalRouter, routerConfig)

	publicServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServiceHost, cfg.ServicePort),
		Handler:      publicRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	internalServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServiceHost, cfg.MetricsPort),
		Handler:      internalRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic dependency health refresh keeps the health gauges current
	// even when no request touches a dependency.
	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-healthCtx.Done():
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				metricsCollector.UpdateDependencyHealth("postgres", postgres.Health(ctx) == nil)
				metricsCollector.UpdateDependencyHealth("redis", redis.Health(ctx) == nil)
				cancel()
			}
		}
	}()

	go func() {
		log.Info("Public server starting", "address", publicServer.Addr)
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Public server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		log.Info("Internal server starting", "address", internalServer.Addr)
		if err := internalServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Internal server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	go func() {
		if err := publicServer.Shutdown(ctx); err != nil {
			log.Error("Public server forced to shutdown", "error", err)
		}
	}()

	if err := internalServer.Shutdown(ctx); err != nil {
		log.Error("Internal server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
