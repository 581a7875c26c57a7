package host

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is the per-connection context passed from accept completion
// through observer notification to dispatch. It wraps the accepted
// connection and is not retained by the host past the end of one dispatch
// cycle.
type Request struct {
	// ID uniquely identifies this request for logging and tracing.
	ID string

	// RemoteAddr is the client's address at accept time.
	RemoteAddr string

	// AcceptedAt is the time the connection was accepted.
	AcceptedAt time.Time

	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

// NewRequest wraps an accepted connection. Exposed so dispatcher
// implementations can construct requests in their own tests.
func NewRequest(conn net.Conn) *Request {
	return &Request{
		ID:         uuid.NewString(),
		RemoteAddr: conn.RemoteAddr().String(),
		AcceptedAt: time.Now(),
		conn:       conn,
	}
}

// Read reads from the underlying connection.
func (r *Request) Read(p []byte) (int, error) {
	return r.conn.Read(p)
}

// Write writes to the underlying connection.
func (r *Request) Write(p []byte) (int, error) {
	return r.conn.Write(p)
}

// Close closes the underlying connection. Safe to call multiple times;
// subsequent calls return the first close error.
func (r *Request) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}

// Conn exposes the underlying connection for dispatchers that need
// transport-level control (deadlines, TCP options).
func (r *Request) Conn() net.Conn {
	return r.conn
}

// Age returns how long ago the connection was accepted.
func (r *Request) Age() time.Duration {
	return time.Since(r.AcceptedAt)
}
