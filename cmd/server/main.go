package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	numberingapp "github.com/erp/settlement/internal/application/numbering"
	"github.com/erp/settlement/internal/application/retry"
	settlementapp "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/cache"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/migration"
	"github.com/erp/settlement/internal/infrastructure/persistence"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/erp/settlement/internal/interfaces/http/handler"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := providers.BridgeLogger(baseLog, logger.ParseLevel(cfg.Log.Level))
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting settlement service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("driver", cfg.Database.Driver),
	)

	db, err := openDatabase(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	guard, err := cache.NewGuardFactory(cfg.Redis,
		cache.WithLogger(logger.Component(log, "cache")),
	).CreateGuard()
	if err != nil {
		log.Fatal("Failed to create in-flight guard", zap.Error(err))
	}
	defer func() {
		_ = guard.Close()
	}()

	metrics, err := telemetry.NewSettlementMetrics(otel.GetMeterProvider())
	if err != nil {
		log.Fatal("Failed to create settlement metrics", zap.Error(err))
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.Settlement.RetryAttempts,
		InitialInterval: cfg.Settlement.RetryInitialInterval,
		MaxInterval:     cfg.Settlement.RetryMaxInterval,
	}

	// Repositories
	scope := persistence.NewGormTransactionScope(db.DB, persistence.ApplicationStatuses{
		Ready:   cfg.Settlement.ReadyStatus,
		Settled: cfg.Settlement.SettledStatus,
	})
	seriesRepo := persistence.NewGormSeriesRepository(db.DB)
	receivableRepo := persistence.NewGormReceivableRepository(db.DB)
	creditRepo := persistence.NewGormCreditAccountRepository(db.DB)
	transactionRepo := persistence.NewGormTransactionRepository(db.DB)

	// Services
	seriesService := numberingapp.NewSeriesService(seriesRepo, scope.Numbering(), transactionRepo,
		numberingapp.WithLogger(logger.Component(log, "numbering")),
		numberingapp.WithMetrics(metrics),
		numberingapp.WithRetryPolicy(policy),
		numberingapp.WithRendering(cfg.Numbering.DefaultWidth, cfg.Numbering.NearLimitPercent),
	)
	settlementService := settlementapp.NewSettlementService(
		receivableRepo, creditRepo, transactionRepo, scope, seriesService,
		settlement.NewRecognizedBanks(cfg.Settlement.RecognizedBanks),
		settlementapp.WithLogger(logger.Component(log, "settlement")),
		settlementapp.WithMetrics(metrics),
		settlementapp.WithRetryPolicy(policy),
		settlementapp.WithGuard(guard, cfg.Settlement.GuardTTL),
	)
	receivableService := settlementapp.NewReceivableService(receivableRepo, scope, logger.Component(log, "receivable"))

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpLog := logger.Component(log, "http")
	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MeterProvider:  otel.GetMeterProvider(),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Logger:         httpLog,
	}, router.Handlers{
		Series:      handler.NewSeriesHandler(seriesService, httpLog),
		Settlements: handler.NewSettlementHandler(settlementService, httpLog),
		Receivables: handler.NewReceivableHandler(receivableService, httpLog),
		Health:      handler.NewHealthHandler(db, version),
	})

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// openDatabase connects with the zap-backed gorm logger and the tracing
// plugin. A SQLite database is brought up to date with AutoMigrate; PostgreSQL
// is migrated separately with cmd/migrate.
func openDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	sqlLog := logger.NewSQLLogger(log, cfg.Log.Level, cfg.Telemetry.DBSlowQueryThresh)
	opts := []persistence.Option{persistence.WithGormLogger(sqlLog)}
	if cfg.Telemetry.DBTraceEnabled {
		dbSystem := "postgresql"
		if cfg.Database.Driver == config.DriverSQLite {
			dbSystem = "sqlite"
		}
		opts = append(opts, persistence.WithPlugins(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        dbSystem,
		}, logger.Component(log, "db"))))
	}

	db, err := persistence.NewDatabase(&cfg.Database, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == config.DriverSQLite {
		if err := migration.AutoMigrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("SQLite schema up to date", zap.String("path", cfg.Database.SQLitePath))
	}
	return db, nil
}
