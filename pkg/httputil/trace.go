package httputil

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID stores a trace ID on the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the request's trace ID, or empty when none was set.
func GetTraceID(r *http.Request) string {
	if v, ok := r.Context().Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// EnsureTraceID reads the X-Trace-ID header, generating a fresh id when the
// client sent none, and returns the request with the id on its context.
func EnsureTraceID(r *http.Request) (*http.Request, string) {
	traceID := r.Header.Get("X-Trace-ID")
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return r.WithContext(WithTraceID(r.Context(), traceID)), traceID
}
