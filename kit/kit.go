// Package kit holds the transport-agnostic endpoint plumbing shared by
// the HTTP and MCP surfaces: the Endpoint abstraction, middleware
// composition, context propagation keys, and MCP tool registration.
package kit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "cli", "http", "mcp"
	TraceIDKey   contextKey = "kit_trace_id"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the surface a request arrived on. The HTTP and MCP
// layers stamp theirs; anything unstamped is a direct invocation.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "cli"
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// Endpoint is a transport-agnostic request handler. Transports decode
// their wire format into a typed request, call the endpoint, and encode
// the response back.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares into one; the first argument becomes the
// outermost wrapper.
func Chain(mw ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Recover converts endpoint panics into errors so a broken tool call
// cannot take down the transport loop.
func Recover() Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kit: endpoint panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// Logging logs each endpoint call with its duration and outcome.
func Logging(log *slog.Logger, name string) Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"duration", time.Since(start),
			}
			if tid := GetTraceID(ctx); tid != "" {
				attrs = append(attrs, "trace_id", tid)
			}
			if err != nil {
				log.Error("endpoint failed", append(attrs, "error", err)...)
			} else {
				log.Debug("endpoint ok", attrs...)
			}
			return resp, err
		}
	}
}
