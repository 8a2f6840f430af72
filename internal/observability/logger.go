package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

func InitLogger(serviceName string) {
	InitLoggerWithLevel(serviceName, "info")
}

// InitLoggerWithLevel falls back to info when level does not parse.
func InitLoggerWithLevel(serviceName, level string) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	Log = logger.With(zap.String("service", serviceName))
}

func GetLogger(ctx context.Context) *zap.Logger {
	if Log == nil {
		InitLogger("unknown")
	}

	logger := Log

	// Add trace info if available
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With(
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
		)
	}

	return logger
}
