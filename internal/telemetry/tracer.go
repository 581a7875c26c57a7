package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for listener and request handling spans.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// Client attributes
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"
	AttrClientPort = "client.port"

	// Listener attributes
	AttrBindAddr   = "listener.bind"
	AttrListenAddr = "listener.address"
	AttrScheme     = "listener.scheme"

	// Request attributes
	AttrRequestID    = "request.id"
	AttrOperation    = "request.operation"
	AttrBytesRead    = "request.bytes_read"
	AttrBytesWritten = "request.bytes_written"
	AttrInFlight     = "request.in_flight"

	// Dispatch attributes
	AttrDispatcher  = "dispatch.handler"
	AttrDispatchErr = "dispatch.error"
)

// Span names for listener and request operations.
// Format: <component>.<operation>
const (
	SpanHostStart   = "host.start"
	SpanHostStop    = "host.stop"
	SpanHostDispose = "host.dispose"
	SpanAccept      = "host.accept"
	SpanRequest     = "host.request"
	SpanObserve     = "host.observe"
	SpanDispatch    = "host.dispatch"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// BindAddr returns an attribute for the configured bind specification
func BindAddr(bind string) attribute.KeyValue {
	return attribute.String(AttrBindAddr, bind)
}

// ListenAddr returns an attribute for the resolved listen address
func ListenAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrListenAddr, addr)
}

// Scheme returns an attribute for the listener scheme
func Scheme(scheme string) attribute.KeyValue {
	return attribute.String(AttrScheme, scheme)
}

// RequestID returns an attribute for the request identifier
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// Operation returns an attribute for the operation name
func Operation(name string) attribute.KeyValue {
	return attribute.String(AttrOperation, name)
}

// BytesRead returns an attribute for bytes read from the connection
func BytesRead(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesRead, n)
}

// BytesWritten returns an attribute for bytes written to the connection
func BytesWritten(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesWritten, n)
}

// InFlight returns an attribute for the number of in-flight requests
func InFlight(n int) attribute.KeyValue {
	return attribute.Int(AttrInFlight, n)
}

// Dispatcher returns an attribute for the dispatcher name
func Dispatcher(name string) attribute.KeyValue {
	return attribute.String(AttrDispatcher, name)
}
