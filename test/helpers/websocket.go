package helpers

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"testing"

	"github.com/coder/websocket"

	"dominicbreuker/pollcat/pkg/crypto"
	"dominicbreuker/pollcat/pkg/log"
)

// StartWSEchoServer starts a WebSocket server echoing every message with its
// original type. With useTLS the server speaks wss.
func StartWSEchoServer(t testing.TB, useTLS bool) *url.URL {
	t.Helper()
	return ServeWS(t, useTLS, wsEcho)
}

// StartWSGreetServer starts a WebSocket server that sends greeting as a
// binary message and then keeps the connection open without reading.
func StartWSGreetServer(t testing.TB, greeting []byte) *url.URL {
	t.Helper()
	return ServeWS(t, false, func(ctx context.Context, c *websocket.Conn) error {
		if err := c.Write(ctx, websocket.MessageBinary, greeting); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
}

// ServeWS serves WebSocket connections with handler on an ephemeral loopback
// port until the test ends. It returns the URL of the server.
func ServeWS(t testing.TB, useTLS bool, handler WSHandler) *url.URL {
	t.Helper()

	nl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	u := &url.URL{Scheme: "ws", Host: nl.Addr().String(), Path: "/echo"}

	if useTLS {
		cfg, err := crypto.ServerConfig()
		if err != nil {
			nl.Close()
			t.Fatalf("crypto.ServerConfig() error = %v", err)
		}
		nl = tls.NewListener(nl, cfg)
		u.Scheme = "wss"
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ServeWebSocket(ctx, nl, 64, handler, log.NewLogger(false))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return u
}

func wsEcho(ctx context.Context, c *websocket.Conn) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if err := c.Write(ctx, typ, data); err != nil {
			return err
		}
	}
}
