package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/okpyeon/idgen"
	"github.com/hazyhaar/okpyeon/kit"
)

var newTraceID = idgen.NanoID(8)

// TraceID generates a random trace ID for each request and injects it into
// the context, the X-Trace-ID response header, and a per-request structured
// logger. The trace ID is stored under kit.TraceIDKey, where the SQL trace
// driver picks it up, and the logger under LoggerKey.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := newTraceID()

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithTransport(ctx, "http")
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

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
