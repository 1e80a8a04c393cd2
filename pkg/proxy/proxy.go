// Package proxy establishes tunnels to a target through SOCKS4, SOCKS5 and
// HTTP CONNECT proxies. The returned connection carries the target's byte
// stream as if it had been dialed directly.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"dominicbreuker/pollcat/pkg/config"
	"dominicbreuker/pollcat/pkg/transport/tcp"
)

var (
	// ErrProxyConnect is returned when the proxy refuses or fails to open the tunnel.
	ErrProxyConnect = errors.New("proxy failed to connect")
	// ErrProxyUnauthorized is returned when the proxy rejects the credentials.
	ErrProxyUnauthorized = errors.New("provided proxy credentials are incorrect")
)

// Dial connects to the proxy described by cfg and asks it to open a tunnel
// to target ("host:port"). The timeout bounds the TCP connect and the whole
// negotiation separately; zero means no timeout. Any failure closes the
// proxy connection.
func Dial(ctx context.Context, cfg *config.Proxy, target string, timeout time.Duration, deps *config.Dependencies) (net.Conn, error) {
	conn, err := tcp.Dial(ctx, cfg.Addr(), timeout, deps)
	if err != nil {
		return nil, fmt.Errorf("connecting to proxy %s: %w", cfg.Addr(), err)
	}

	tunnel, err := negotiate(conn, cfg, target, timeout)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return tunnel, nil
}

func negotiate(conn net.Conn, cfg *config.Proxy, target string, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("SetDeadline(): %w", err)
		}
	}

	var tunnel net.Conn
	var err error
	switch cfg.Type {
	case config.ProxySOCKS4:
		err = socks4Connect(conn, target, "")
		tunnel = conn
	case config.ProxySOCKS5:
		err = socks5Connect(conn, cfg.Username, cfg.Password, target)
		tunnel = conn
	case config.ProxyHTTP:
		tunnel, err = httpConnect(conn, cfg.Username, cfg.Password, target)
	default:
		err = fmt.Errorf("%w: %s", config.ErrUnsupportedProxyType, cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s proxy %s: %w", cfg.Type, cfg.Addr(), err)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clearing deadline: %w", err)
	}
	return tunnel, nil
}
