package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appbom "github.com/erp/bomsync/internal/application/bom"
	"github.com/erp/bomsync/internal/infrastructure/cache"
	"github.com/erp/bomsync/internal/infrastructure/config"
	"github.com/erp/bomsync/internal/infrastructure/ecommerce"
	"github.com/erp/bomsync/internal/infrastructure/event"
	"github.com/erp/bomsync/internal/infrastructure/logger"
	"github.com/erp/bomsync/internal/infrastructure/persistence"
	"github.com/erp/bomsync/internal/infrastructure/scheduler"
	"github.com/erp/bomsync/internal/infrastructure/telemetry"
	"github.com/erp/bomsync/internal/interfaces/http/handler"
	"github.com/erp/bomsync/internal/interfaces/http/router"
)

//	@title			BOM Sync API
//	@version		1.0
//	@description	Keeps composite product stock on the commerce platform consistent with its bill of materials

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	TenantHeader
//	@in							header
//	@name						X-Tenant-ID

const shutdownTimeout = 30 * time.Second

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
		_ = log.Sync()
	}()

	ctx := context.Background()

	// Telemetry
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, cfg.Telemetry.ServiceName, zapcore.InfoLevel)

	log.Info("Starting BOM sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database connection", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	retry := persistence.RetryPolicy{
		MaxAttempts: cfg.Sync.RetryAttempts,
		Delay:       cfg.Sync.RetryDelay,
		Logger:      log,
	}
	bomRepo := persistence.NewGormBOMRepository(db.DB, retry)
	productRepo := persistence.NewGormProductRepository(db.DB, retry)
	auditRepo := persistence.NewGormStockAuditRepository(db.DB, retry)

	// Commerce platform
	stockSource, err := newStockSource(cfg.Platform)
	if err != nil {
		log.Fatal("Failed to configure commerce platform", zap.Error(err))
	}
	if cfg.Platform.BaseURL == "" {
		log.Warn("No default platform store configured; syncs fail until tenants are configured")
	}

	// Redis is optional; without it locks and idempotency are process-local
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = client.Close()
		}()
		redisClient = client
	}
	syncLock := cache.NewSyncLock(redisClient, cache.WithLockLogger(log))
	idempotencyStore := cache.NewIdempotencyStore(redisClient, log)

	// Application services
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter(telemetry.SyncMetricsMeterName))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	resolver := appbom.NewResolver(bomRepo, log)
	calculator := appbom.NewStockCalculator(resolver, bomRepo, productRepo, stockSource, log)
	calculator.SetRecorder(syncMetrics)

	syncService := appbom.NewSyncService(calculator, productRepo, bomRepo, auditRepo, stockSource, syncLock, log)
	syncService.SetRecorder(syncMetrics)
	syncService.SetLockTiming(cfg.Sync.LockTTL, cfg.Sync.LockWait)

	bulkService := appbom.NewBulkSyncService(bomRepo, syncService, log)
	bulkService.SetRecorder(syncMetrics)

	// Order-triggered re-sync
	bus := event.NewInMemoryBus(log)
	orderHandler := appbom.NewOrderCompletedHandler(productRepo, bomRepo, syncService, log)
	bus.Subscribe(event.NewIdempotentHandler(orderHandler, idempotencyStore, log,
		event.WithDedupeTTL(cfg.Sync.IdempotencyTTL),
	))

	// Background bulk sync
	schedulerCfg := scheduler.DefaultConfig()
	schedulerCfg.WorkerCount = cfg.Sync.WorkerCount
	schedulerCfg.RetryAttempts = cfg.Sync.JobRetryAttempts
	schedulerCfg.JobTimeout = cfg.Sync.JobTimeout
	jobScheduler, err := scheduler.NewScheduler(schedulerCfg, bulkService, log)
	if err != nil {
		log.Fatal("Failed to create bulk sync scheduler", zap.Error(err))
	}
	if err := jobScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start bulk sync scheduler", zap.Error(err))
	}

	var trigger *scheduler.IntervalTrigger
	if cfg.Sync.ScheduleEnabled {
		trigger = scheduler.NewIntervalTrigger(cfg.Sync.ScheduleInterval, jobScheduler, bomRepo, log)
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduled bulk sync", zap.Error(err))
		}
	}

	// HTTP
	healthChecks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		healthChecks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
	}, log)
	router.NewRouter(engine, router.WithHealth(handler.NewHealthHandler(healthChecks))).
		Register(handler.NewBOMHandler(calculator, syncService, bulkService, auditRepo, jobScheduler)).
		Register(handler.NewWebhookHandler(bus)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping scheduled bulk sync", zap.Error(err))
		}
	}
	if err := jobScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping bulk sync scheduler", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logger": loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// newStockSource builds the WooCommerce adapter. An empty base URL leaves the
// default store unset so only tenant-specific stores work.
func newStockSource(cfg config.PlatformConfig) (*ecommerce.WooCommerceAdapter, error) {
	var storeCfg *ecommerce.WooCommerceConfig
	if cfg.BaseURL != "" {
		storeCfg = ecommerce.NewWooCommerceConfig(cfg.BaseURL, cfg.ConsumerKey, cfg.ConsumerSecret)
		if cfg.Timeout > 0 {
			storeCfg.TimeoutSeconds = int(cfg.Timeout / time.Second)
		}
		if cfg.VariantsPageSize > 0 {
			storeCfg.PageSize = cfg.VariantsPageSize
		}
	}
	return ecommerce.NewWooCommerceAdapter(storeCfg, ecommerce.WithRateLimit(cfg.RateLimit, cfg.RateBurst))
}
