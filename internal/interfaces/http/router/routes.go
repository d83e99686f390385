package router

import (
	"time"

	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/interfaces/http/handler"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers bundles the HTTP handlers served by the engine
type Handlers struct {
	Series      *handler.SeriesHandler
	Settlements *handler.SettlementHandler
	Receivables *handler.ReceivableHandler
	Health      *handler.HealthHandler
}

// EngineConfig controls the middleware stack built by NewEngine
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	MeterProvider  metric.MeterProvider
	MaxBodySize    int64
	RequestTimeout time.Duration
	TrustedProxies []string
	Logger         *zap.Logger
}

// NewEngine builds the gin engine with the middleware stack and every route.
//
// Middleware order:
//  1. Recovery - catch panics
//  2. Tracing - open the server span
//  3. Logger - assign the request ID and log the request
//  4. Span enrichment and error marking
//  5. Metrics
//  6. Security headers, body limit and request timeout
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	engine.Use(logger.RequestLogger(log))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(cfg.MeterProvider))
	engine.Use(middleware.SecureHeaders())
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	engine.Use(middleware.Timeout(cfg.RequestTimeout))

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}

	NewRouter(engine, WithAPIVersion("v1")).Mount(resources(h)...)

	return engine
}

func resources(h Handlers) []*Resource {
	var groups []*Resource

	if h.Series != nil {
		series := NewResource("numbering", "/series")
		series.POST("", h.Series.Create).
			GET("", h.Series.List).
			POST("/issue", h.Series.Issue).
			GET("/:id", h.Series.Get).
			PUT("/:id", h.Series.Update).
			POST("/:id/activate", h.Series.Activate).
			POST("/:id/deactivate", h.Series.Deactivate).
			GET("/:id/statistics", h.Series.Statistics)

		documents := NewResource("documents", "/documents")
		documents.GET("/:number/availability", h.Series.CheckAvailability)

		groups = append(groups, series, documents)
	}

	if h.Settlements != nil {
		settlements := NewResource("settlement", "/settlements")
		settlements.POST("", h.Settlements.Settle).
			GET("/:id", h.Settlements.GetTransaction)

		customers := NewResource("customers", "/customers")
		customers.GET("/:id/credit", h.Settlements.GetCreditBalance).
			GET("/:id/credit/entries", h.Settlements.ListCreditEntries).
			GET("/:id/receivables", h.Settlements.ListReceivables).
			GET("/:id/settlements", h.Settlements.ListCustomerTransactions)

		groups = append(groups, settlements, customers)
	}

	if h.Receivables != nil {
		receivables := NewResource("receivables", "/receivables")
		receivables.POST("", h.Receivables.Create).
			GET("/:id", h.Receivables.Get).
			POST("/:id/cancel", h.Receivables.Cancel).
			POST("/:id/refund", h.Receivables.Refund)

		groups = append(groups, receivables)
	}

	return groups
}
