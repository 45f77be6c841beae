// Package logging carries a request-scoped *slog.Logger through contexts so
// services log with whatever attributes the caller already attached.
package logging

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithLogger returns a derived context carrying the provided logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger attached to ctx, or nil when none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}
