package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstsee/servicehost/internal/logger"
	"github.com/firstsee/servicehost/pkg/host/runtime"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter(io.Discard, "error", "text", false)
	os.Exit(m.Run())
}

// okDispatcher closes the request without touching it.
type okDispatcher struct {
	calls atomic.Int32
}

func (d *okDispatcher) Process(_ context.Context, req *Request) error {
	d.calls.Add(1)
	return nil
}

// failDispatcher always fails.
type failDispatcher struct {
	calls atomic.Int32
}

func (d *failDispatcher) Process(_ context.Context, _ *Request) error {
	d.calls.Add(1)
	return errors.New("boom")
}

// opsDispatcher records the operation set propagated at initialization.
type opsDispatcher struct {
	okDispatcher
	ops []string
}

func (d *opsDispatcher) SetOperations(ops []string) {
	d.ops = ops
}

// startTestHost starts a host on an ephemeral localhost port and registers
// cleanup. Returns the host and its dial address.
func startTestHost(t *testing.T, d Dispatcher, config Config) (*Host, string) {
	t.Helper()

	h := New(d, config)
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	t.Cleanup(func() {
		_ = h.Dispose()
	})

	addr := h.Addr()
	require.NotEmpty(t, addr)
	return h, addr
}

// dialAndRead connects to addr and reads the full response until the server
// closes the connection.
func dialAndRead(t *testing.T, addr string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	body, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(body)
}

func TestInitializeSingleton(t *testing.T) {
	t.Cleanup(resetInstance)

	first := New(&okDispatcher{}, Config{})
	require.NoError(t, first.Initialize(nil))
	assert.Same(t, first, Instance())

	second := New(&okDispatcher{}, Config{})
	err := second.Initialize(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	// The first registration survives the failed second attempt
	assert.Same(t, first, Instance())
}

func TestInitializeRunsConfigureHook(t *testing.T) {
	t.Cleanup(resetInstance)

	rt := runtime.New()
	rt.Operations = []string{"echo", "ping"}
	rt.SetProvider("marker", 42)

	d := &opsDispatcher{}
	h := New(d, Config{})

	var seen *runtime.Runtime
	h.SetConfigureHook(func(rt *runtime.Runtime) error {
		seen = rt
		return nil
	})

	require.NoError(t, h.Initialize(rt))
	assert.Same(t, rt, seen)
	assert.Equal(t, []string{"echo", "ping"}, d.ops)
}

func TestInitializeConfigureFailure(t *testing.T) {
	t.Cleanup(resetInstance)

	h := New(&okDispatcher{}, Config{})
	h.SetConfigureHook(func(_ *runtime.Runtime) error {
		return errors.New("no database")
	})

	err := h.Initialize(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}

func TestStartIdempotent(t *testing.T) {
	h, addr := startTestHost(t, &okDispatcher{}, Config{})

	// Second Start performs no additional bind and does not fail
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	assert.Equal(t, addr, h.Addr())
	assert.True(t, h.Started())
}

func TestStartRejectsMalformedBind(t *testing.T) {
	h := New(&okDispatcher{}, Config{})

	tests := []struct {
		name string
		bind string
	}{
		{"missing scheme", "127.0.0.1:9000/"},
		{"missing port", "tcp://127.0.0.1/"},
		{"missing trailing slash", "tcp://127.0.0.1:9000/api"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Start(tt.bind)
			require.Error(t, err)
			assert.False(t, h.Started())
		})
	}
}

func TestStartBindConflict(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	h := New(&okDispatcher{}, Config{})
	err = h.Start(fmt.Sprintf("tcp://%s/", blocker.Addr()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind")
	assert.False(t, h.Started())
}

func TestStopIdempotent(t *testing.T) {
	h := New(&okDispatcher{}, Config{})

	// Stop with no socket is a no-op
	require.NoError(t, h.Stop())
	assert.False(t, h.Started())

	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	require.NoError(t, h.Stop())
	assert.False(t, h.Started())
	assert.Empty(t, h.Addr())

	// Second Stop in a row leaves state stopped both times
	require.NoError(t, h.Stop())
	assert.False(t, h.Started())
}

func TestRestartAfterStop(t *testing.T) {
	d := &okDispatcher{}
	h := New(d, Config{})
	t.Cleanup(func() { _ = h.Dispose() })

	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	require.NoError(t, h.Stop())

	// The socket is recreated lazily on restart
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	assert.True(t, h.Started())

	_ = dialAndRead(t, h.Addr())
	require.Eventually(t, func() bool {
		return d.calls.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLoopLivenessUnderFailure(t *testing.T) {
	const n = 5

	d := &failDispatcher{}
	h, addr := startTestHost(t, d, Config{})

	// Every connection gets a diagnostic response and the loop survives
	for i := 0; i < n; i++ {
		body := dialAndRead(t, addr)
		assert.True(t, strings.HasPrefix(body, "Error: boom\nStackTrace:"), "unexpected body %q", body)
		assert.Greater(t, len(body), len("Error: boom\nStackTrace:"))
	}
	assert.Equal(t, int32(n), d.calls.Load())

	// The listener is still accepting connection n+1
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_ = conn.Close()
	assert.True(t, h.Started())
}

func TestDispatcherPanicIsolated(t *testing.T) {
	d := DispatcherFunc(func(_ context.Context, _ *Request) error {
		panic("handler exploded")
	})
	_, addr := startTestHost(t, d, Config{})

	body := dialAndRead(t, addr)
	assert.True(t, strings.HasPrefix(body, "Error: panic: handler exploded\nStackTrace:"), "unexpected body %q", body)

	// Loop still live
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestObserverBeforeDispatch(t *testing.T) {
	var mu sync.Mutex
	var order []string

	d := DispatcherFunc(func(_ context.Context, _ *Request) error {
		mu.Lock()
		order = append(order, "dispatch")
		mu.Unlock()
		return nil
	})

	h := New(d, Config{})
	h.SetObserver(func(req *Request) error {
		mu.Lock()
		order = append(order, "observe")
		mu.Unlock()
		assert.NotEmpty(t, req.ID)
		return nil
	})
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	t.Cleanup(func() { _ = h.Dispose() })

	_ = dialAndRead(t, h.Addr())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"observe", "dispatch"}, order)
}

func TestObserverFailureSkipsDispatch(t *testing.T) {
	d := &okDispatcher{}
	h := New(d, Config{})
	h.SetObserver(func(_ *Request) error {
		return errors.New("observer rejected")
	})
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	t.Cleanup(func() { _ = h.Dispose() })

	body := dialAndRead(t, h.Addr())
	assert.True(t, strings.HasPrefix(body, "Error: observer: observer rejected\nStackTrace:"), "unexpected body %q", body)
	assert.Equal(t, int32(0), d.calls.Load())
	assert.True(t, h.Started())
}

// fakeListener simulates accept outcomes without a real socket.
type fakeListener struct {
	accepts  chan acceptResult
	closed   chan struct{}
	closeErr error
	once     sync.Once
}

type acceptResult struct {
	conn net.Conn
	err  error
}

func newFakeListener(closeErr error) *fakeListener {
	return &fakeListener{
		accepts:  make(chan acceptResult, 4),
		closed:   make(chan struct{}),
		closeErr: closeErr,
	}
}

func (l *fakeListener) Accept() (net.Conn, error) {
	select {
	case res := <-l.accepts:
		return res.conn, res.err
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *fakeListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return l.closeErr
}

func (l *fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func TestBenignCloseSwallowed(t *testing.T) {
	fake := newFakeListener(net.ErrClosed)

	h := New(&okDispatcher{}, Config{})
	h.listen = func(_, _ string) (net.Listener, error) {
		return fake, nil
	}
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))

	// Close raising the benign shutdown race completes Stop normally
	require.NoError(t, h.Stop())
	assert.False(t, h.Started())
	assert.Empty(t, h.Addr())
}

func TestNonBenignCloseStillStops(t *testing.T) {
	closeErr := errors.New("close failed")
	fake := newFakeListener(closeErr)

	h := New(&okDispatcher{}, Config{})
	h.listen = func(_, _ string) (net.Listener, error) {
		return fake, nil
	}
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))

	err := h.Stop()
	require.Error(t, err)
	assert.ErrorIs(t, err, closeErr)

	// State is stopped regardless of the close failure
	assert.False(t, h.Started())
	assert.Empty(t, h.Addr())
}

func TestAcceptErrorWithoutContextPropagates(t *testing.T) {
	fake := newFakeListener(nil)
	acceptErr := errors.New("accept torn down")
	fake.accepts <- acceptResult{err: acceptErr}

	h := New(&okDispatcher{}, Config{})
	h.listen = func(_, _ string) (net.Listener, error) {
		return fake, nil
	}
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	t.Cleanup(func() { _ = h.Stop() })

	// The failure had no request context to respond to, so it surfaces
	// to the caller instead of being swallowed
	select {
	case err := <-h.AcceptErrors():
		assert.ErrorIs(t, err, acceptErr)
	case <-time.After(5 * time.Second):
		t.Fatal("accept error was swallowed")
	}

	// The loop keeps accepting after the failure
	assert.True(t, h.Started())
}

func TestMaxInFlightAdmission(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 8)

	d := DispatcherFunc(func(_ context.Context, _ *Request) error {
		started <- struct{}{}
		<-release
		return nil
	})

	h, addr := startTestHost(t, d, Config{MaxInFlight: 2})
	defer close(release)

	conns := make([]net.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	// Only two dispatches start while both slots are held
	<-started
	<-started
	select {
	case <-started:
		t.Fatal("third dispatch started past the admission limit")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, int32(2), h.ActiveRequests())

	// Releasing a slot admits the queued connection
	release <- struct{}{}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("queued connection was never admitted")
	}
}

func TestDrainWaitsForInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	d := DispatcherFunc(func(_ context.Context, _ *Request) error {
		close(started)
		<-release
		return nil
	})

	h, addr := startTestHost(t, d, Config{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	<-started

	require.NoError(t, h.Stop())

	// Drain times out while the dispatch is held
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Drain(ctx), context.DeadlineExceeded)

	close(release)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	require.NoError(t, h.Drain(ctx2))
	assert.Equal(t, int32(0), h.ActiveRequests())
}

func TestDisposeCancelsRequestContext(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})

	d := DispatcherFunc(func(ctx context.Context, _ *Request) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	h, addr := startTestHost(t, d, Config{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	<-started

	require.NoError(t, h.Dispose())

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request context was not cancelled by Dispose")
	}

	// Dispose again is safe
	require.NoError(t, h.Dispose())
}

func TestDisposeConcurrentWithDispatch(t *testing.T) {
	d := DispatcherFunc(func(_ context.Context, _ *Request) error { return nil })
	h := New(d, Config{})
	h.SetObserver(func(_ *Request) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	addr := h.Addr()

	// Hammer the listener while Dispose releases the observer from
	// another goroutine. Dials racing the listener close may fail; the
	// connections that got through still run the observer read path.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, _ = io.ReadAll(conn)
			_ = conn.Close()
		}()
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, h.Dispose())
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Drain(ctx))
}

func TestUptimeAndActiveRequests(t *testing.T) {
	h := New(&okDispatcher{}, Config{})
	assert.Equal(t, time.Duration(0), h.Uptime())
	assert.Equal(t, int32(0), h.ActiveRequests())

	require.NoError(t, h.Start("tcp://127.0.0.1:0/"))
	t.Cleanup(func() { _ = h.Dispose() })

	assert.Greater(t, h.Uptime(), time.Duration(0))
	assert.Equal(t, "tcp", h.Bind().Scheme)
}
