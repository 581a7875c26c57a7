package host

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// BindSpec is a parsed bind specification of the form scheme://host:port/path/.
// The trailing path separator is required by the socket layer contract.
type BindSpec struct {
	// Scheme is the transport scheme (e.g., "tcp").
	Scheme string

	// Host is the interface address to bind to. Empty or "0.0.0.0" binds
	// to all interfaces.
	Host string

	// Port is the TCP port to listen on.
	Port int

	// Path is the path prefix, always ending with "/".
	Path string
}

// ParseBindSpec parses a bind specification string.
//
// The specification must carry a scheme, a host:port authority, and a path
// ending with "/". Beyond these structural requirements no validation is
// performed; an unresolvable host surfaces later from the listen call.
func ParseBindSpec(spec string) (*BindSpec, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid bind specification %q: %w", spec, err)
	}

	if u.Scheme == "" {
		return nil, fmt.Errorf("bind specification %q: missing scheme", spec)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("bind specification %q: missing host:port", spec)
	}

	portStr := u.Port()
	if portStr == "" {
		return nil, fmt.Errorf("bind specification %q: missing port", spec)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("bind specification %q: invalid port: %w", spec, err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasSuffix(path, "/") {
		return nil, fmt.Errorf("bind specification %q: path must end with %q", spec, "/")
	}

	return &BindSpec{
		Scheme: u.Scheme,
		Host:   u.Hostname(),
		Port:   port,
		Path:   path,
	}, nil
}

// ListenAddr returns the host:port address to pass to net.Listen.
func (b *BindSpec) ListenAddr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// String reassembles the canonical bind specification.
func (b *BindSpec) String() string {
	return fmt.Sprintf("%s://%s%s", b.Scheme, b.ListenAddr(), b.Path)
}
