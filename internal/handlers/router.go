package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/forkful/pantry-service/internal/database"
	"github.com/forkful/pantry-service/internal/middleware"
	"github.com/forkful/pantry-service/internal/service"
	"github.com/forkful/pantry-service/pkg/metrics"
)

// RouterConfig contains configuration for setting up routes
type RouterConfig struct {
	PantryService  service.PantryService
	SessionService service.SessionService
	Orchestrator   service.ConsumptionOrchestrator
	Idempotency    service.IdempotencyService
	SweepService   service.SweepService
	Postgres       *database.PostgresDB
	Redis          *database.RedisDB
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	TracingEnabled bool
}

// SetupPublicRoutes configures the caller-facing API surface
func SetupPublicRoutes(router *gin.Engine, config *RouterConfig) {
	pantryHandler := NewPantryHandler(config.PantryService, config.Logger)
	sessionHandler := NewSessionHandler(config.SessionService, config.Orchestrator, config.Logger)

	loggingMiddleware := middleware.NewLoggingMiddleware(config.Logger)
	idempotencyMiddleware := middleware.NewIdempotencyMiddleware(config.Idempotency, config.Logger)

	router.Use(gin.Recovery())
	if config.TracingEnabled {
		router.Use(otelgin.Middleware("pantry-service"))
	}
	router.Use(loggingMiddleware.LogRequests())
	router.Use(middleware.MetricsMiddleware(config.Metrics))

	pantry := router.Group("/api/pantry")
	pantry.Use(middleware.RequireCaller())
	{
		pantry.GET("/batches", pantryHandler.ListBatches)
		pantry.POST("/batches", pantryHandler.AddBatch)
		pantry.GET("/batches/:batchID", pantryHandler.GetBatch)
		pantry.POST("/batches/:batchID/reserve", pantryHandler.ReserveBatch)
		pantry.POST("/batches/:batchID/freeze", pantryHandler.FreezeBatch)
		pantry.POST("/batches/:batchID/quarantine", pantryHandler.QuarantineBatch)
		pantry.POST("/batches/:batchID/discard", pantryHandler.DiscardBatch)
		pantry.GET("/fefo", pantryHandler.FindFEFO)
		pantry.GET("/expiring", pantryHandler.FindExpiringSoon)
	}

	cooking := router.Group("/api/cooking")
	cooking.Use(middleware.RequireCaller())
	{
		cooking.POST("/sessions", sessionHandler.StartSession)
		cooking.GET("/sessions/:sessionID", sessionHandler.GetSession)

		// Step completion and finish both mutate batch quantities, so clients
		// retry them blindly; both require an Idempotency-Key.
		cooking.POST("/sessions/:sessionID/steps/:stepID/complete",
			idempotencyMiddleware.Guard("complete_step"),
			sessionHandler.CompleteStep)
		cooking.POST("/sessions/:sessionID/finish",
			idempotencyMiddleware.Guard("finish_session"),
			sessionHandler.FinishSession)
	}
}

// SetupInternalRoutes configures the operational surface: health, metrics
// and admin endpoints. Served on a separate port, never exposed publicly.
func SetupInternalRoutes(router *gin.Engine, config *RouterConfig) {
	healthHandler := NewHealthHandler(config.Logger, config.Postgres, config.Redis)
	adminHandler := NewAdminHandler(config.SweepService, config.Logger)

	router.Use(gin.Recovery())

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("/api/pantry/admin")
	{
		admin.POST("/sweep", adminHandler.RunSweep)
	}
}
