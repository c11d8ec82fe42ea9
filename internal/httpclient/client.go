// Package httpclient builds the shared HTTP client used for probing,
// telemetry collection, and load generation.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// New returns a client tuned for many small requests against a single
// device. Embedded web servers handle few sockets, so idle connections are
// kept low and reused aggressively. The timeout bounds every outbound call;
// a timeout always resolves to an error, never a hang.
func New(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
