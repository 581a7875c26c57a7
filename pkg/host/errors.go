package host

import (
	"errors"
	"net"
)

// ErrAlreadyInitialized is returned by Initialize when another host has
// already been initialized in this process.
var ErrAlreadyInitialized = errors.New("host: already initialized in this process")

// isBenignClose reports whether err is the expected error produced when the
// listener is closed while an accept is pending.
func isBenignClose(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
