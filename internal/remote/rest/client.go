package rest

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client that dials over IPv4 only.
// Mobile carrier networks frequently advertise broken IPv6 routes.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	ipv4Dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return ipv4Dialer.DialContext(ctx, "tcp4", addr)
			},
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		},
	}
}
