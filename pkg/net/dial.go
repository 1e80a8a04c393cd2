// Package net runs the connect pipeline behind every connection handle:
// resolve the target, reach it directly or through a proxy, then optionally
// upgrade the stream to TLS and to WebSocket framing.
package net

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"dominicbreuker/pollcat/pkg/config"
	"dominicbreuker/pollcat/pkg/log"
	"dominicbreuker/pollcat/pkg/transport"
)

var (
	// ErrAddress is returned for targets that cannot be parsed or resolved.
	ErrAddress = errors.New("not a valid target")
	// ErrTLS is returned when the TLS handshake fails.
	ErrTLS = errors.New("tls handshake failed")
	// ErrHandshake is returned when the WebSocket handshake fails.
	ErrHandshake = errors.New("websocket handshake failed")
)

// Request describes one connection to establish.
type Request struct {
	// Target is the "host:port" to connect to. Ignored when URL is set.
	Target string
	// URL selects a WebSocket connection (ws:// or wss://).
	URL *url.URL
	// Proxy tunnels the connection through a proxy when not nil.
	Proxy *config.Proxy
	// Timeout bounds each connect step and becomes the initial read and
	// write timeout of the transport. Zero means no timeout.
	Timeout time.Duration
	// ProxyResolve hands host names to the proxy instead of resolving locally.
	ProxyResolve bool
	// TLS upgrades the stream to TLS. Implied by a wss URL.
	TLS bool

	// Traffic records the raw bytes of the connection under Label when set.
	Traffic *log.TrafficLog
	Label   string
}

// UsesTLS reports whether the connection will be upgraded to TLS.
func (r *Request) UsesTLS() bool {
	return r.TLS || (r.URL != nil && r.URL.Scheme == "wss")
}

// Dial establishes the connection described by req.
// The context can be used to cancel the dial at any time.
func Dial(ctx context.Context, req *Request, deps *config.Dependencies, logger *log.Logger) (*transport.Transport, error) {
	return dial(ctx, req, deps, logger, defaultDialDependencies())
}

// dial is the internal implementation that accepts injected steps for testing.
func dial(ctx context.Context, req *Request, deps *config.Dependencies, logger *log.Logger, steps *dialDependencies) (*transport.Transport, error) {
	target, err := targetOf(req)
	if err != nil {
		return nil, err
	}

	addr, err := resolve(ctx, req, target, deps)
	if err != nil {
		return nil, err
	}

	// Step 1: reach the target, directly or through the proxy
	conn, err := establishConnection(ctx, req, addr, deps, logger, steps)
	if err != nil {
		return nil, err
	}
	conn = req.Traffic.Wrap(conn, req.Label)

	// Step 2: upgrade to TLS if requested
	tr := transport.NewTCP(conn)
	if req.UsesTLS() {
		logger.VerboseMsg("Upgrading connection to %s to TLS", target)
		session, err := upgradeTLS(conn, req.Timeout, logger)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %s", ErrTLS, err)
		}
		tr = transport.NewTLS(conn, session)
	}

	_ = tr.SetReadTimeout(req.Timeout)
	_ = tr.SetWriteTimeout(req.Timeout)

	// Step 3: WebSocket handshake over the prepared stream
	if req.URL != nil {
		logger.VerboseMsg("Starting WebSocket handshake with %s", req.URL.Redacted())
		c, err := steps.handshakeWS(ctx, tr.Stream(), req.URL, req.Timeout)
		if err != nil {
			_ = tr.Close()
			return nil, fmt.Errorf("%w: %s", ErrHandshake, err)
		}
		tr = transport.NewWebSocket(tr, c)
	}

	logger.VerboseMsg("Connected to %s (%s)", target, tr.Kind())
	return tr, nil
}
