// Package requestcontext carries the request ID and request time from the
// HTTP middleware to the vCon service, which logs the ID and stamps lifecycle
// events with the time. Outside a request both fall back to safe defaults.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// RequestID returns the request ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Now returns the time pinned when the request arrived. Callers without one
// (the CLI, background workers) get the wall clock.
func Now(ctx context.Context) time.Time {
	if at, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return at
	}
	return time.Now()
}

// WithTime pins the request time; tests use it to fix event timestamps.
func WithTime(ctx context.Context, at time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, at)
}
