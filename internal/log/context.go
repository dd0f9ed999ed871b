package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Canonical field names.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldEvent     = "event"
)

// ContextWithRequestID stores the request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a component logger carrying the request ID of ctx.
func FromContext(ctx context.Context, component string) zerolog.Logger {
	l := WithComponent(component)
	if rid := RequestIDFromContext(ctx); rid != "" {
		return l.With().Str(FieldRequestID, rid).Logger()
	}
	return l
}
