package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	idempotencyKey
)

// WithRequestID stores the request ID on ctx together with a child of base
// tagged with it. The child is returned for the caller's own entries.
func WithRequestID(ctx context.Context, base *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	tagged := base.With(zap.String("request_id", requestID))
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return context.WithValue(ctx, loggerKey, tagged), tagged
}

// FromContext returns the request logger stored by WithRequestID with the
// span and idempotency fields of ctx added. Without one it is a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	base, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}
	return enrich(ctx, base, false)
}

// WithLogger returns base tagged with the correlation fields ctx carries.
// Services use it so their own component loggers still log request_id,
// trace_id and the settlement idempotency key.
func WithLogger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return enrich(ctx, base, true)
}

func enrich(ctx context.Context, base *zap.Logger, withRequestID bool) *zap.Logger {
	fields := traceFields(ctx)
	if id := GetRequestID(ctx); id != "" && withRequestID {
		fields = append(fields, zap.String("request_id", id))
	}
	if key := GetIdempotencyKey(ctx); key != "" {
		fields = append(fields, zap.String("idempotency_key", key))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// WithIdempotencyKey records the client-supplied settlement key on ctx
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKey, key)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func GetIdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey).(string)
	return key
}

func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
