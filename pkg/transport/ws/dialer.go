// Package ws performs WebSocket handshakes over streams prepared elsewhere.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"dominicbreuker/pollcat/pkg/transport"
)

var errStreamUsed = errors.New("stream already used by a previous request")

// Handshake runs the WebSocket opening handshake for u over stream. The
// stream must already be connected to the server, and TLS must already be
// established on it for wss URLs. A timeout of zero leaves the handshake
// bounded only by ctx.
func Handshake(ctx context.Context, stream net.Conn, u *url.URL, timeout time.Duration) (*websocket.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dial := streamDialer(stream)
	opts := &websocket.DialOptions{
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				DialContext:    dial,
				DialTLSContext: dial,
				Proxy:          nil,
			},
		},
	}

	c, resp, err := websocket.Dial(ctx, u.String(), opts)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket.Dial(%s): status %s: %w", u.Redacted(), resp.Status, err)
		}
		return nil, fmt.Errorf("websocket.Dial(%s): %w", u.Redacted(), err)
	}
	c.SetReadLimit(transport.ReadLimit)
	return c, nil
}

// streamDialer hands out stream to the first dial and fails afterwards.
func streamDialer(stream net.Conn) func(ctx context.Context, network, addr string) (net.Conn, error) {
	var mu sync.Mutex
	used := false
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if used {
			return nil, errStreamUsed
		}
		used = true
		return stream, nil
	}
}
