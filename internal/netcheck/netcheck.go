// Package netcheck answers whether the remote repositories are reachable.
// Every remote install is gated on it.
package netcheck

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"
)

// Checker reports connectivity.
type Checker interface {
	Connected(ctx context.Context) bool
}

// Dialer checks connectivity by opening a TCP connection to the host of
// target. Results are cached for TTL.
type Dialer struct {
	target  string
	timeout time.Duration
	ttl     time.Duration

	mu      sync.Mutex
	last    time.Time
	lastRes bool
}

// NewDialer returns a Checker probing the host of rawURL.
func NewDialer(rawURL string) *Dialer {
	return &Dialer{target: hostPort(rawURL), timeout: 5 * time.Second, ttl: 30 * time.Second}
}

func (d *Dialer) Connected(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.last.IsZero() && time.Since(d.last) < d.ttl {
		return d.lastRes
	}

	var nd net.Dialer
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	conn, err := nd.DialContext(ctx, "tcp", d.target)
	d.last = time.Now()
	d.lastRes = err == nil
	if conn != nil {
		conn.Close()
	}
	return d.lastRes
}

func hostPort(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return net.JoinHostPort(u.Hostname(), "443")
}

// Static is a Checker with a fixed answer.
type Static bool

func (s Static) Connected(context.Context) bool { return bool(s) }
