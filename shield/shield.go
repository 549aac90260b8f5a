// Package shield provides the HTTP security middleware for the okpyeon
// serve mode: security headers, request body limits, trace IDs, and per-IP
// rate limiting for the run-triggering endpoints.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(rl) {
//	    r.Use(mw)
//	}
//
// Or pick middlewares individually:
//
//	r.Use(shield.SecurityHeaders())
//	r.Use(shield.MaxBody(1 << 20))
//	r.Use(shield.TraceID)
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// HeadToGet converts HEAD requests to GET so that route handlers registered
// with r.Get() respond with 200 instead of 405 (Method Not Allowed).
// Go's net/http automatically strips the body for HEAD responses.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBody returns middleware that caps the request body size. Oversized
// bodies make the handler's read fail; requests without a body pass through
// untouched.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultStack returns the standard middleware stack for the serve mode.
// Ordered: HeadToGet → SecurityHeaders → MaxBody(1 MiB) → TraceID → RateLimiter.
// Pass a nil limiter to skip rate limiting (e.g. behind a trusted proxy that
// already limits).
func DefaultStack(rl *RateLimiter) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(),
		MaxBody(1 << 20),
		TraceID,
	}
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return stack
}
