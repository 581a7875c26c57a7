// Package runtime provides the dependency container handed to the host's
// configuration hook. It is a named provider registry: collaborators register
// themselves under a string key and other components look them up without
// importing each other directly.
package runtime

import (
	"context"
	"sync"
)

// AuxiliaryServer is an interface for auxiliary HTTP servers (API, metrics)
// that are managed alongside the listener host.
type AuxiliaryServer interface {
	// Start starts the HTTP server and blocks until context is cancelled or error.
	Start(ctx context.Context) error
	// Stop initiates graceful shutdown.
	Stop(ctx context.Context) error
	// Port returns the TCP port the server is listening on.
	Port() int
}

// Runtime is the dependency container passed to the host at initialization.
// Providers are opaque to the runtime itself; consumers type-assert what
// they registered.
type Runtime struct {
	// Operations is the recognized operation set propagated to the
	// dispatcher at initialization.
	Operations []string

	providers   map[string]any
	providersMu sync.RWMutex
}

// New creates an empty runtime container.
func New() *Runtime {
	return &Runtime{
		providers: make(map[string]any),
	}
}

// SetProvider stores a named provider for later lookup.
func (r *Runtime) SetProvider(key string, p any) {
	r.providersMu.Lock()
	defer r.providersMu.Unlock()
	r.providers[key] = p
}

// Provider returns the provider registered under key, or nil if absent.
func (r *Runtime) Provider(key string) any {
	r.providersMu.RLock()
	defer r.providersMu.RUnlock()
	return r.providers[key]
}

// Providers returns a snapshot of all registered provider keys.
func (r *Runtime) Providers() []string {
	r.providersMu.RLock()
	defer r.providersMu.RUnlock()

	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	return keys
}
