// Package helpers runs loopback servers and proxies for tests. Every server
// listens on 127.0.0.1 with an ephemeral port and stops when the test ends.
package helpers

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"dominicbreuker/pollcat/pkg/crypto"
	"dominicbreuker/pollcat/pkg/log"
)

// Serve listens on an ephemeral loopback port and handles connections with
// handler until the test ends. It returns the listener address.
func Serve(t testing.TB, useTLS bool, handler Handler) string {
	t.Helper()

	nl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := nl.Addr().String()

	if useTLS {
		cfg, err := crypto.ServerConfig()
		if err != nil {
			nl.Close()
			t.Fatalf("crypto.ServerConfig() error = %v", err)
		}
		nl = tls.NewListener(nl, cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ServeListener(ctx, nl, handler, log.NewLogger(false))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return addr
}

// StartEchoServer starts a TCP server writing back everything it reads.
func StartEchoServer(t testing.TB) string {
	t.Helper()
	return Serve(t, false, echo)
}

// StartTLSEchoServer starts a TLS echo server with a self-signed certificate.
func StartTLSEchoServer(t testing.TB) string {
	t.Helper()
	return Serve(t, true, echo)
}

// StartSilentServer starts a TCP server that accepts connections and never
// sends anything. Connections are closed when the peer closes or the test ends.
func StartSilentServer(t testing.TB) string {
	t.Helper()
	return Serve(t, false, func(conn net.Conn) error {
		_, err := io.Copy(io.Discard, conn)
		return err
	})
}

// StartSendServer starts a TCP server that writes payload to every
// connection and closes it.
func StartSendServer(t testing.TB, payload []byte) string {
	t.Helper()
	return Serve(t, false, func(conn net.Conn) error {
		_, err := conn.Write(payload)
		return err
	})
}

// StartTrickleServer starts a TCP server that writes payload one byte at a
// time with interval between bytes and then closes the connection.
func StartTrickleServer(t testing.TB, payload []byte, interval time.Duration) string {
	t.Helper()
	return Serve(t, false, func(conn net.Conn) error {
		for i := range payload {
			if i > 0 {
				time.Sleep(interval)
			}
			if _, err := conn.Write(payload[i : i+1]); err != nil {
				return err
			}
		}
		return nil
	})
}

func echo(conn net.Conn) error {
	_, err := io.Copy(conn, conn)
	return err
}

// pipe copies data between a and b in both directions until either side
// closes, then closes both.
func pipe(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	cp := func(dst, src net.Conn) {
		defer wg.Done()
		io.Copy(dst, src)
		dst.Close()
		src.Close()
	}
	go cp(a, b)
	go cp(b, a)
	wg.Wait()
}
