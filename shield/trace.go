package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/sitelens/idgen"
	"github.com/hazyhaar/sitelens/kit"
)

var newTraceID = idgen.Short(12)

// TraceID gives every request a trace ID, stored under kit.TraceIDKey,
// echoed in X-Trace-ID, and bound to a per-request logger under LoggerKey.
// An incoming X-Trace-ID is kept when it is a sane length.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" || len(traceID) > 64 {
			traceID = newTraceID()
		}

		ctx := kit.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Info("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
