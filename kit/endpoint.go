// Package kit is the transport-neutral glue between the sitelens service
// layer and its surfaces: an Endpoint is one operation, Middleware wraps it,
// and RegisterMCPTool exposes it as an MCP tool.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is one operation taking a decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Tracing gives calls that arrive without a trace ID one from newID, so
// MCP calls and HTTP requests log the same way.
func Tracing(newID func() string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if GetTraceID(ctx) == "" {
				ctx = WithTraceID(ctx, newID())
			}
			return next(ctx, req)
		}
	}
}

// Logging logs the outcome and duration of every call to name.
func Logging(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if id := GetTraceID(ctx); id != "" {
				attrs = append(attrs, "trace_id", id)
			}
			if err != nil {
				logger.Warn("endpoint failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("endpoint done", attrs...)
			}
			return resp, err
		}
	}
}
