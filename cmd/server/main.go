package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	settlementapp "github.com/rentward/backoffice/internal/application/settlement"
	"github.com/rentward/backoffice/internal/domain/settlement"
	"github.com/rentward/backoffice/internal/infrastructure/cache"
	"github.com/rentward/backoffice/internal/infrastructure/config"
	"github.com/rentward/backoffice/internal/infrastructure/event"
	"github.com/rentward/backoffice/internal/infrastructure/logger"
	"github.com/rentward/backoffice/internal/infrastructure/persistence"
	"github.com/rentward/backoffice/internal/infrastructure/telemetry"
	"github.com/rentward/backoffice/internal/interfaces/http/handler"
	"github.com/rentward/backoffice/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting RentWard Backoffice",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Scope lock keeps concurrent passes over the same contract/partner pair serialized
	scopeLock := buildScopeLock(cfg, log)

	// Event bus with audit logging for terminal settlement events
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewSettlementAuditHandler(log))
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		_ = eventBus.Stop(context.Background())
	}()

	// Repositories and services
	claimRepo := persistence.NewGormClaimRepository(db.DB)
	payoutRepo := persistence.NewGormPayoutRepository(db.DB)
	uow := persistence.NewSettlementUnitOfWork(db.DB)
	reconciler := settlement.NewReconciler()

	settlementService := settlementapp.NewSettlementService(
		claimRepo,
		payoutRepo,
		reconciler,
		uow,
		eventBus,
		settlementapp.WithScopeLock(scopeLock),
		settlementapp.WithShortfallPayouts(cfg.Settlement.ShortfallEnabled),
	)
	registrationService := settlementapp.NewRegistrationService(claimRepo, payoutRepo, uow, eventBus)
	queryService := settlementapp.NewSettlementQueryService(claimRepo, payoutRepo)

	// HTTP engine and routes
	engine := router.NewEngine(cfg, log)
	engine.GET("/health/db", healthHandler(db))

	r := router.NewRouter(engine)
	r.Register(handler.NewSettlementHandler(settlementService, registrationService, queryService))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// buildScopeLock selects the scope lock implementation from configuration.
// Redis backs multi-instance deployments; a single instance can opt out.
func buildScopeLock(cfg *config.Config, log *zap.Logger) cache.ScopeLock {
	if cfg.Settlement.ScopeLockDisabled {
		log.Warn("Scope locking disabled, falling back to in-process locks")
		return cache.NewInMemoryScopeLock(cfg.Settlement.ScopeLockTTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	log.Info("Redis connected successfully", zap.String("addr", cfg.Redis.RedisAddr()))

	return cache.NewRedisScopeLock(client, cfg.Settlement.ScopeLockTTL)
}

// healthHandler reports database connectivity
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
