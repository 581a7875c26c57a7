// Package host provides lifecycle management for an asynchronous
// accept/dispatch network listener. The Host owns the listen socket, keeps
// accepting inbound connections while prior requests are still in flight,
// hands each accepted connection to a pluggable Dispatcher, and isolates
// per-request failures so one bad request can never stop the accept loop.
package host

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/firstsee/servicehost/internal/logger"
	"github.com/firstsee/servicehost/internal/telemetry"
	"github.com/firstsee/servicehost/pkg/host/runtime"
)

// acceptErrorBuffer bounds the number of undelivered accept errors kept for
// the caller. Further errors are logged and dropped so a slow consumer can
// never stall the accept loop.
const acceptErrorBuffer = 16

// Config holds host configuration.
type Config struct {
	// MaxInFlight limits the number of concurrently dispatched requests.
	// 0 means unlimited.
	MaxInFlight int
}

// Host orchestrates the accept loop: it enforces the process-wide single
// instance, tracks start/stop state, re-arms the accept before each request
// is processed, notifies the observer hook before dispatch, and converts
// per-request failures into diagnostic responses.
//
// Thread safety:
// All exported methods are safe for concurrent use. The listener reference
// is guarded by a mutex; in-flight request goroutines never touch it.
type Host struct {
	// Config holds the admission settings supplied at construction.
	Config Config

	// Metrics is an optional recorder for request lifecycle metrics.
	// If nil, no metrics are collected.
	Metrics MetricsRecorder

	dispatcher Dispatcher
	observer   Observer

	// configure is the optional configuration hook invoked by Initialize
	// with the dependency container.
	configure func(rt *runtime.Runtime) error

	// mu guards listener, started, bind, stopCh and the collaborator
	// references (observer, configure) against concurrent Start/Stop/
	// Dispose, reads from accessors, and reads from request goroutines.
	mu       sync.Mutex
	listener net.Listener
	started  bool
	bind     *BindSpec
	stopCh   chan struct{}

	// inFlight tracks dispatch goroutines for Drain.
	inFlight      sync.WaitGroup
	inFlightCount atomic.Int32

	// sem limits concurrent dispatches when Config.MaxInFlight > 0.
	sem chan struct{}

	// requestCtx is passed to every dispatch; cancelled by Dispose.
	requestCtx     context.Context
	cancelRequests context.CancelFunc

	// acceptErrs delivers accept failures that produced no request
	// context. There is nothing to write a response to, so the error is
	// surfaced to the caller instead of being swallowed.
	acceptErrs chan error

	// listen creates the listener. Tests substitute a failing factory.
	listen func(network, addr string) (net.Listener, error)

	createdAt time.Time
	startedAt time.Time
}

// New creates a Host in a stopped, uninitialized state. Call Initialize to
// register it as the process instance, then Start to begin accepting.
//
// Returns a pointer to avoid copying sync primitives.
func New(dispatcher Dispatcher, config Config) *Host {
	var sem chan struct{}
	if config.MaxInFlight > 0 {
		sem = make(chan struct{}, config.MaxInFlight)
		logger.Debug("request admission limit", "max_in_flight", config.MaxInFlight)
	} else {
		logger.Debug("request admission limit", "max_in_flight", "unlimited")
	}

	requestCtx, cancelRequests := context.WithCancel(context.Background())

	return &Host{
		Config:         config,
		dispatcher:     dispatcher,
		sem:            sem,
		requestCtx:     requestCtx,
		cancelRequests: cancelRequests,
		acceptErrs:     make(chan error, acceptErrorBuffer),
		listen:         net.Listen,
		createdAt:      time.Now(),
	}
}

// SetObserver registers the pre-dispatch notification hook. At most one
// observer is supported; a later call replaces the earlier one. Must be
// called before Start.
func (h *Host) SetObserver(fn Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observer = fn
}

// SetConfigureHook registers the configuration step run by Initialize with
// the dependency container. Must be called before Initialize.
func (h *Host) SetConfigureHook(fn func(rt *runtime.Runtime) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configure = fn
}

// Initialize registers this host as the process-wide instance and runs the
// configuration hook with the supplied dependency container. rt may be nil
// when no container is configured.
//
// A second Initialize in the same process fails with ErrAlreadyInitialized.
func (h *Host) Initialize(rt *runtime.Runtime) error {
	if err := register(h); err != nil {
		return err
	}

	h.mu.Lock()
	configure := h.configure
	h.mu.Unlock()

	if configure != nil {
		if err := configure(rt); err != nil {
			return fmt.Errorf("host configuration: %w", err)
		}
	}

	// Propagate the recognized operation set to the dispatcher.
	if rt != nil && len(rt.Operations) > 0 {
		if aware, ok := h.dispatcher.(OperationAware); ok {
			aware.SetOperations(rt.Operations)
		}
	}

	logger.Info("host initialized", logger.DurationMs(float64(time.Since(h.createdAt).Microseconds())/1000))
	return nil
}

// Start binds the listen socket and launches the accept loop.
//
// bind must be of the form scheme://host:port/path/ with a trailing path
// separator. The listener is created lazily: absent after construction or
// after Stop, it is recreated here. Start is idempotent; if the host is
// already started it returns immediately without rebinding. Start returns
// before any request has been processed.
func (h *Host) Start(bind string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		logger.Debug("host already started", logger.Bind(bind))
		return nil
	}

	spec, err := ParseBindSpec(bind)
	if err != nil {
		return err
	}
	h.bind = spec

	if h.listener == nil {
		listener, err := h.listen("tcp", spec.ListenAddr())
		if err != nil {
			return fmt.Errorf("failed to bind %s: %w", spec, err)
		}
		h.listener = listener
	}

	h.started = true
	h.startedAt = time.Now()
	h.stopCh = make(chan struct{})

	logger.Info("host listening",
		logger.Bind(spec.String()),
		logger.ListenAddr(h.listener.Addr().String()))

	go h.acceptLoop(h.listener, h.stopCh)
	return nil
}

// Stop closes the listen socket and resets the started state.
//
// A no-op when no socket exists, so calling Stop twice is safe. The benign
// shutdown race (socket closed while an accept is pending) is logged and
// swallowed; any other close error is returned. The listener reference and
// started flag are cleared unconditionally, so even a failed close leaves
// the host stopped from the caller's perspective.
//
// Stop does not wait for in-flight dispatches; use Drain for that.
func (h *Host) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener == nil {
		return nil
	}

	err := h.listener.Close()
	close(h.stopCh)
	h.listener = nil
	h.started = false

	if err != nil {
		if isBenignClose(err) {
			logger.Error("listener close raced with pending accept", logger.Err(err))
			return nil
		}
		return fmt.Errorf("failed to close listener: %w", err)
	}

	logger.Info("host stopped")
	return nil
}

// Drain waits for all in-flight dispatches to complete or the context to
// expire. Typically called after Stop during shutdown.
func (h *Host) Drain(ctx context.Context) error {
	active := h.inFlightCount.Load()
	logger.Info("draining in-flight requests", logger.Active(active))

	done := make(chan struct{})
	go func() {
		h.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("drain complete")
		return nil
	case <-ctx.Done():
		remaining := h.inFlightCount.Load()
		logger.Warn("drain cancelled", logger.Active(remaining), logger.Err(ctx.Err()))
		return ctx.Err()
	}
}

// Dispose stops the host, cancels all in-flight request contexts, and
// releases collaborator references. Safe to call multiple times; the stop
// portion is a no-op once the socket is gone.
//
// Dispose does not wait for in-flight dispatches, so the collaborator
// release happens under the same lock the request goroutines read through.
func (h *Host) Dispose() error {
	err := h.Stop()
	h.cancelRequests()

	h.mu.Lock()
	h.observer = nil
	h.configure = nil
	h.mu.Unlock()

	return err
}

// AcceptErrors returns the channel carrying accept failures that produced
// no request context. The channel is buffered; when the buffer is full
// further errors are logged and dropped.
func (h *Host) AcceptErrors() <-chan error {
	return h.acceptErrs
}

// Started reports whether the host is currently accepting connections.
func (h *Host) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Addr returns the resolved listener address, or "" when stopped.
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Bind returns the bind specification registered by the last Start, or nil.
func (h *Host) Bind() *BindSpec {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bind
}

// ActiveRequests returns the current number of in-flight dispatches.
func (h *Host) ActiveRequests() int32 {
	return h.inFlightCount.Load()
}

// Uptime returns the time elapsed since the last successful Start, or 0
// when the host has never started.
func (h *Host) Uptime() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.startedAt.IsZero() {
		return 0
	}
	return time.Since(h.startedAt)
}

// acceptLoop blocks on Accept and spawns one goroutine per accepted
// connection. The loop returns to Accept immediately after spawning, so its
// liveness never depends on the current request's processing: the next
// accept is armed before the current connection is dispatched.
func (h *Host) acceptLoop(listener net.Listener, stopCh chan struct{}) {
	for {
		if h.sem != nil {
			select {
			case h.sem <- struct{}{}:
			case <-stopCh:
				return
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if h.sem != nil {
				<-h.sem
			}

			if isBenignClose(err) {
				// Listener closed while this accept was pending.
				logger.Debug("accept loop exiting", logger.Err(err))
				return
			}

			// Accept failed before a request context existed. There is
			// nothing to write a response to, so surface the error to
			// the caller and keep accepting.
			logger.Error("accept failed", logger.Err(err))
			if h.Metrics != nil {
				h.Metrics.RecordAcceptError()
			}
			select {
			case h.acceptErrs <- err:
			default:
				logger.Warn("accept error buffer full, dropping", logger.Err(err))
			}
			continue
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("failed to set TCP_NODELAY", logger.Err(err))
			}
		}

		req := NewRequest(conn)

		h.inFlight.Add(1)
		active := h.inFlightCount.Add(1)

		if h.Metrics != nil {
			h.Metrics.RecordRequestAccepted()
			h.Metrics.SetInFlight(active)
		}

		logger.Debug("connection accepted",
			logger.RequestID(req.ID),
			logger.ClientAddr(req.RemoteAddr),
			logger.Active(active))

		go h.serveRequest(req)
	}
}

// serveRequest is the per-request failure boundary. It notifies the
// observer, invokes the dispatcher, and catches every error and panic
// raised along the way: the failure is logged, a best-effort diagnostic
// response is written back, and the connection is closed. Nothing escapes
// to the accept loop.
func (h *Host) serveRequest(req *Request) {
	start := time.Now()

	defer func() {
		active := h.inFlightCount.Add(-1)
		h.inFlight.Done()
		if h.sem != nil {
			<-h.sem
		}
		if h.Metrics != nil {
			h.Metrics.RecordRequestCompleted()
			h.Metrics.SetInFlight(active)
			h.Metrics.ObserveDispatchDuration(time.Since(start))
		}
		logger.Debug("connection closed",
			logger.RequestID(req.ID),
			logger.ClientAddr(req.RemoteAddr),
			logger.Active(active))
	}()

	reqCtx := logger.NewRequestContext(req.ID, req.RemoteAddr)
	ctx := logger.WithContext(h.requestCtx, reqCtx)

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRequest)
	span.SetAttributes(
		telemetry.RequestID(req.ID),
		telemetry.ClientAddr(req.RemoteAddr))
	defer span.End()

	var procErr error
	var stack []byte
	func() {
		defer func() {
			if r := recover(); r != nil {
				procErr = fmt.Errorf("panic: %v", r)
				stack = debug.Stack()
			}
		}()

		h.mu.Lock()
		observer := h.observer
		h.mu.Unlock()

		if observer != nil {
			if err := observer(req); err != nil {
				procErr = fmt.Errorf("observer: %w", err)
				return
			}
		}
		procErr = h.dispatcher.Process(ctx, req)
	}()

	if procErr != nil {
		if stack == nil {
			stack = debug.Stack()
		}
		telemetry.RecordError(ctx, procErr)

		logger.ErrorCtx(ctx, "request failed", logger.Err(procErr))
		if h.Metrics != nil {
			h.Metrics.RecordDispatchError()
		}

		h.writeErrorResponse(req, procErr, stack)
		return
	}

	if err := req.Close(); err != nil && !isBenignClose(err) {
		logger.Debug("error closing connection", logger.RequestID(req.ID), logger.Err(err))
	}
}

// writeErrorResponse writes the plain-text diagnostic body to the
// connection and closes it. A failure while writing the diagnostic itself
// is logged and swallowed; it never escapes the request boundary.
func (h *Host) writeErrorResponse(req *Request, cause error, stack []byte) {
	body := fmt.Sprintf("Error: %s\nStackTrace:%s", cause.Error(), stack)

	if _, err := req.Write([]byte(body)); err != nil {
		logger.Error("failed to write diagnostic response",
			logger.RequestID(req.ID), logger.Err(err))
		if h.Metrics != nil {
			h.Metrics.RecordDiagnosticWriteFailed()
		}
	} else if h.Metrics != nil {
		h.Metrics.RecordDiagnosticWritten()
	}

	if err := req.Close(); err != nil && !isBenignClose(err) {
		logger.Debug("error closing connection", logger.RequestID(req.ID), logger.Err(err))
	}
}
