package host

import (
	"context"
)

// Dispatcher is the per-request processing contract. The host invokes
// Process once per accepted connection, after the observer hook.
//
// Implementations must tolerate concurrent invocations: the accept loop
// re-arms before the current request finishes dispatching, so multiple
// requests may be in flight at once. Any error returned here is caught by
// the host's failure boundary and converted into a diagnostic response; it
// never terminates the accept loop.
type Dispatcher interface {
	Process(ctx context.Context, req *Request) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, req *Request) error

// Process calls f(ctx, req).
func (f DispatcherFunc) Process(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// OperationAware is an optional interface a Dispatcher may implement to
// receive the recognized operation set when the host is initialized.
type OperationAware interface {
	SetOperations(ops []string)
}

// Observer is the optional pre-dispatch notification hook. It is invoked
// synchronously, exactly once per accepted connection, before the dispatcher.
// An observer error skips dispatch and is handled at the same failure
// boundary as a dispatch error.
type Observer func(req *Request) error
