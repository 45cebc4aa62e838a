// Package shield is the HTTP middleware stack of the sitelens API: panic
// recovery, per-request trace IDs and loggers, security headers, request
// body caps and HEAD handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack() {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from ctx, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// DefaultAPIStack returns the middleware every sitelens route goes through,
// outermost first: TraceID, Recover, HeadToGet, SecurityHeaders.
func DefaultAPIStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		TraceID,
		Recover,
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
	}
}
