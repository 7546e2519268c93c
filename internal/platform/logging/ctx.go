package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey struct{}

// With stores l as the request-scoped logger.
func With(ctx context.Context, l *zap.Logger) context.Context {
	if l == nil {
		l = zap.NewNop()
	}
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the request-scoped logger, or fallback (a no-op logger when
// nil) if ctx carries none.
func From(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	if ctx == nil {
		return fallback
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// WithTrace adds trace_id and span_id when ctx carries a valid span context.
func WithTrace(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// For is WithTrace(ctx, From(ctx, fallback)).
func For(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	return WithTrace(ctx, From(ctx, fallback))
}
