package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "numbering_series", "issue_next")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "numbering_series.issue_next", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)
}

func TestNestedServiceSpans(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, settle := telemetry.StartServiceSpan(context.Background(), "settlement", "settle")
	_, issue := telemetry.StartServiceSpan(ctx, "numbering_series", "issue_next")
	issue.End()
	settle.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	seriesID := uuid.New()

	_, span := telemetry.StartServiceSpan(context.Background(), "settlement", "settle")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSeriesID, seriesID,
		telemetry.SpanAttrReceivableCount, 3,
		telemetry.SpanAttrNumericValue, int64(42),
		telemetry.SpanAttrAmount, "1250.50",
		"ratio", 0.5,
		"replayed", true,
		42, "non-string key is skipped",
		"dangling",
	)
	telemetry.SetAttribute(span, "other", struct{ N int }{N: 7})
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Len(t, attrs, 7)
	assert.Equal(t, seriesID.String(), attrs[telemetry.SpanAttrSeriesID].AsString())
	assert.Equal(t, int64(3), attrs[telemetry.SpanAttrReceivableCount].AsInt64())
	assert.Equal(t, int64(42), attrs[telemetry.SpanAttrNumericValue].AsInt64())
	assert.Equal(t, "1250.50", attrs[telemetry.SpanAttrAmount].AsString())
	assert.Equal(t, 0.5, attrs["ratio"].AsFloat64())
	assert.True(t, attrs["replayed"].AsBool())
	assert.Equal(t, "{7}", attrs["other"].AsString())
}

func TestRecordError(t *testing.T) {
	t.Run("marks the span failed", func(t *testing.T) {
		sr := setupTestTracer(t)
		_, span := telemetry.StartServiceSpan(context.Background(), "numbering_series", "issue_next")
		telemetry.RecordError(span, errors.New("series exhausted"))
		span.End()

		got := sr.Ended()[0]
		assert.Equal(t, codes.Error, got.Status().Code)
		assert.Equal(t, "series exhausted", got.Status().Description)
		require.Len(t, got.Events(), 1)
		assert.Equal(t, "exception", got.Events()[0].Name)
	})

	t.Run("nil error leaves the span alone", func(t *testing.T) {
		sr := setupTestTracer(t)
		_, span := telemetry.StartServiceSpan(context.Background(), "numbering_series", "issue_next")
		telemetry.RecordError(span, nil)
		span.End()

		assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
		assert.Empty(t, sr.Ended()[0].Events())
	})
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
	})
}
