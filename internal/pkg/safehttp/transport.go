// Package safehttp provides an HTTP transport that refuses to connect to
// private networks. Webhook targets are caller-supplied URLs, so the
// dispatcher can opt into it to reduce SSRF exposure.
package safehttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrPrivateAddress is returned when a dial resolves to a blocked address.
var ErrPrivateAddress = errors.New("access to private address denied")

// IsBlocked reports whether ip is loopback, private, link-local or
// unspecified.
func IsBlocked(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// NewTransport returns a clone of the default transport whose dialer checks
// the connected remote address. The check runs after DNS resolution so
// rebinding to a private address is still caught.
func NewTransport(dialTimeout time.Duration) *http.Transport {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: dialTimeout}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		ip := net.ParseIP(host)
		if ip == nil {
			conn.Close()
			return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
		}

		if IsBlocked(ip) {
			conn.Close()
			return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, ip)
		}

		return conn, nil
	}
	return t
}
