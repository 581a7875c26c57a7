package host

import "sync"

// One host owns the listen socket and accept loop state for a process.
// Initialize registers the instance into this one-slot guard; a second
// registration fails rather than silently replacing the first.
var (
	instanceMu sync.Mutex
	instance   *Host
)

func register(h *Host) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return ErrAlreadyInitialized
	}
	instance = h
	return nil
}

// Instance returns the process-wide host, or nil if none has been
// initialized yet.
func Instance() *Host {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// resetInstance clears the process-wide slot so tests can initialize
// fresh hosts.
func resetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
}
