package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RunIDKey is the context key for the scheduler run ID
	RunIDKey contextKey = "run_id"
	// ItemIDKey is the context key for the catalog item being processed
	ItemIDKey contextKey = "item_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if
// not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRunID adds the run ID to context and returns an enriched logger
func WithRunID(ctx context.Context, logger *zap.Logger, runID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RunIDKey, runID)
	enrichedLogger := logger.With(zap.String("run_id", runID))
	return WithContext(ctx, enrichedLogger), enrichedLogger
}

// WithItemID adds the item ID to context and returns an enriched logger
func WithItemID(ctx context.Context, logger *zap.Logger, itemID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, ItemIDKey, itemID)
	enrichedLogger := logger.With(zap.String("item_id", itemID))
	return WithContext(ctx, enrichedLogger), enrichedLogger
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetItemID retrieves the item ID from context
func GetItemID(ctx context.Context) string {
	if itemID, ok := ctx.Value(ItemIDKey).(string); ok {
		return itemID
	}
	return ""
}
