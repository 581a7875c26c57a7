package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so the host, the
// auxiliary API server, and dispatchers produce logs that aggregate cleanly.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// Request lifecycle
	KeyRequestID  = "request_id"  // Per-accepted-connection UUID
	KeyClientAddr = "client_addr" // Remote address of the accepted connection
	KeyBind       = "bind"        // Bind specification passed to Start
	KeyListenAddr = "listen_addr" // Resolved listener address
	KeyOperation  = "operation"   // Operation name being dispatched
	KeyActive     = "active"      // Number of in-flight requests

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyComponent  = "component"   // Subsystem emitting the log line
	KeyPort       = "port"        // TCP port of an auxiliary server
)

// Field constructors for type safety.

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// RequestID returns a slog.Attr for a request identifier
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientAddr returns a slog.Attr for the remote address of a connection
func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

// Bind returns a slog.Attr for a bind specification
func Bind(spec string) slog.Attr {
	return slog.String(KeyBind, spec)
}

// ListenAddr returns a slog.Attr for the resolved listener address
func ListenAddr(addr string) slog.Attr {
	return slog.String(KeyListenAddr, addr)
}

// Operation returns a slog.Attr for an operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Active returns a slog.Attr for the in-flight request count
func Active(n int32) slog.Attr {
	return slog.Int(KeyActive, int(n))
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Component returns a slog.Attr for the subsystem emitting the log line
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Port returns a slog.Attr for a TCP port
func Port(p int) slog.Attr {
	return slog.Int(KeyPort, p)
}
