// Package format provides helpers for formatting and splitting network addresses.
package format

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Addr joins host and port, adding brackets around IPv6 literals.
func Addr(host string, port int) string {
	if strings.ContainsAny(host, ":") { // IPv6
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// SplitAddr splits "host:port" and checks that the port is in [1, 65535].
// The host must not be empty.
func SplitAddr(addr string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	if h == "" {
		return "", 0, fmt.Errorf("missing host in %q", addr)
	}

	port, err = strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("parsing '%s' as port: %s", p, err)
	}
	if port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%d not in [1, 65535]", port)
	}

	return h, port, nil
}

// URLAddr returns the "host:port" a WebSocket URL points to,
// using 80 for ws and 443 for wss when the URL has no port.
func URLAddr(u *url.URL) (string, error) {
	defaultPort := 0
	switch u.Scheme {
	case "ws":
		defaultPort = 80
	case "wss":
		defaultPort = 443
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("missing host in %q", u.String())
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("parsing '%s' as port: %s", p, err)
		}
		if port < 1 || port > 65535 {
			return "", fmt.Errorf("%d not in [1, 65535]", port)
		}
		return Addr(host, port), nil
	}

	return Addr(host, defaultPort), nil
}
