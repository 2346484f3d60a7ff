package logging

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/errorflow/pkg/domain"
)

// StructuredLogger logs service events with trace correlation. It never logs
// message text or debug information of simulated errors.
type StructuredLogger struct {
	logger *slog.Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *slog.Logger) *StructuredLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredLogger{logger: logger}
}

// Logger returns the underlying slog logger.
func (sl *StructuredLogger) Logger() *slog.Logger {
	return sl.logger
}

// LogGenerated logs the identity of a generated error.
func (sl *StructuredLogger) LogGenerated(ctx context.Context, e domain.AppError, disclosed bool) {
	attrs := []slog.Attr{
		slog.String("error_id", e.ID),
		slog.String("category", string(e.Category)),
		slog.String("severity", e.Severity.String()),
		slog.Int("code", e.Code),
		slog.Bool("debug_disclosed", disclosed),
	}
	attrs = appendTrace(ctx, attrs)

	sl.logger.LogAttrs(ctx, slog.LevelInfo, "Simulated error generated", attrs...)
}

// LogHTTPRequest logs HTTP request details
func (sl *StructuredLogger) LogHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status_code", statusCode),
		slog.Duration("duration", duration),
	}
	attrs = appendTrace(ctx, attrs)

	level := slog.LevelInfo
	if statusCode >= 400 {
		level = slog.LevelWarn
	}
	if statusCode >= 500 {
		level = slog.LevelError
	}

	sl.logger.LogAttrs(ctx, level, "HTTP request", attrs...)
}

func appendTrace(ctx context.Context, attrs []slog.Attr) []slog.Attr {
	if traceID := TraceID(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if spanID := SpanID(ctx); spanID != "" {
		attrs = append(attrs, slog.String("span_id", spanID))
	}
	return attrs
}

// TraceID returns the hex trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID returns the hex span ID of the span in ctx, or "".
func SpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}
