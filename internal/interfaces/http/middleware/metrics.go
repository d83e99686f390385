package middleware

import (
	"time"

	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics counts requests and records their latency by route pattern, so
// /settlements/:id is one series however many IDs are requested. Unmatched
// paths are reported as "unknown". A nil provider or an instrument failure
// yields a pass-through middleware.
func HTTPMetrics(mp metric.MeterProvider) gin.HandlerFunc {
	passThrough := func(c *gin.Context) { c.Next() }
	if mp == nil {
		return passThrough
	}

	in := telemetry.NewInstruments(mp.Meter("http.server"))
	total := in.Counter("http_server_request_total", "Total number of HTTP requests", "{request}")
	duration := in.Histogram("http_server_request_duration_seconds", "HTTP request latency distribution in seconds", "s",
		telemetry.HTTPDurationBuckets)
	inFlight := in.Gauge("http_server_active_requests", "Number of currently active HTTP requests", "{request}")
	if in.Err() != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		inFlight.Add(ctx, 1)
		c.Next()
		inFlight.Add(ctx, -1)

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := telemetry.AttrHTTPMethod.String(c.Request.Method)
		routeAttr := telemetry.AttrHTTPRoute.String(route)
		duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(method, routeAttr))
		total.Add(ctx, 1, metric.WithAttributes(method, routeAttr, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status())))
	}
}
