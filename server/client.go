package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// LocalClient returns an HTTP client and base URL for reaching a running bot at target,
// which is either an http(s) base URL or a unix socket path.
func LocalClient(target string, timeout time.Duration) (*http.Client, string) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return &http.Client{Timeout: timeout}, strings.TrimRight(target, "/")
	}
	socket := target
	var d net.Dialer
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return d.DialContext(ctx, "unix", socket)
			},
		},
	}, "http://unix"
}
