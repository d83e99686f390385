package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments declares instruments on one meter and remembers the first
// failure, so a constructor can create all of its instruments and check Err
// once at the end.
type Instruments struct {
	meter metric.Meter
	err   error
}

func NewInstruments(meter metric.Meter) *Instruments {
	return &Instruments{meter: meter}
}

func (in *Instruments) fail(name string, err error) {
	if err != nil && in.err == nil {
		in.err = fmt.Errorf("create instrument %s: %w", name, err)
	}
}

// Counter declares a monotonic int64 counter
func (in *Instruments) Counter(name, description, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	in.fail(name, err)
	return c
}

// Gauge declares an int64 up-down counter
func (in *Instruments) Gauge(name, description, unit string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	in.fail(name, err)
	return g
}

// Histogram declares a float64 histogram with explicit bucket boundaries
func (in *Instruments) Histogram(name, description, unit string, bounds []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.fail(name, err)
	return h
}

// Err is the first creation failure, if any
func (in *Instruments) Err() error {
	return in.err
}

// Metric attribute keys.
var (
	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBLock = attribute.Key("db.lock")

	AttrSeriesID    = attribute.Key("series_id")
	AttrPaymentMode = attribute.Key("payment_mode")
	AttrReplayed    = attribute.Key("replayed")
	AttrErrorCode   = attribute.Key("error_code")
)

var (
	// HTTPDurationBuckets are request latency boundaries in seconds
	HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

	// AmountBuckets cover settlement totals in currency units
	AmountBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000}
)
