package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// requestContextKey is the key for RequestContext in context.Context
var requestContextKey = contextKey{}

// RequestContext holds request-scoped logging context
type RequestContext struct {
	TraceID    string    // OpenTelemetry trace ID
	SpanID     string    // OpenTelemetry span ID
	RequestID  string    // Per-accepted-connection UUID
	ClientAddr string    // Remote address of the connection
	Operation  string    // Operation name being dispatched
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context with the given RequestContext
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext retrieves the RequestContext from context, or nil if not present
func FromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(requestContextKey).(*RequestContext)
	return rc
}

// NewRequestContext creates a new RequestContext for an accepted connection
func NewRequestContext(requestID, clientAddr string) *RequestContext {
	return &RequestContext{
		RequestID:  requestID,
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the RequestContext
func (rc *RequestContext) Clone() *RequestContext {
	if rc == nil {
		return nil
	}
	cp := *rc
	return &cp
}

// WithOperation returns a copy with the operation set
func (rc *RequestContext) WithOperation(op string) *RequestContext {
	clone := rc.Clone()
	if clone != nil {
		clone.Operation = op
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (rc *RequestContext) WithTrace(traceID, spanID string) *RequestContext {
	clone := rc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (rc *RequestContext) DurationMs() float64 {
	if rc == nil || rc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(rc.StartTime).Microseconds()) / 1000.0
}
