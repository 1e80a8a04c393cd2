package helpers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/semaphore"

	"dominicbreuker/pollcat/pkg/log"
	"dominicbreuker/pollcat/pkg/transport"
)

// Handler processes one accepted connection. The connection is closed after
// the handler returns.
type Handler func(net.Conn) error

// WSHandler processes one accepted WebSocket connection. The connection is
// closed after the handler returns.
type WSHandler func(ctx context.Context, c *websocket.Conn) error

// ServeListener accepts connections from nl and handles each on its own
// goroutine until ctx is cancelled. Cancelling ctx also closes open
// connections. The listener is closed on return and ServeListener waits for
// running handlers to finish.
func ServeListener(ctx context.Context, nl net.Listener, handle Handler, logger *log.Logger) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { nl.Close() })
	defer stop()
	defer nl.Close()

	for {
		conn, err := nl.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("Accept(): %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			stopConn := context.AfterFunc(ctx, func() { conn.Close() })
			defer stopConn()

			logger.VerboseMsg("New TCP connection from %s", conn.RemoteAddr())
			if err := handle(conn); err != nil {
				logger.VerboseMsg("Handling connection: %s", err)
			}
		}()
	}
}

// ServeWebSocket upgrades HTTP requests on nl to WebSocket connections and
// handles them until ctx is cancelled. Up to maxConns connections are handled
// at once; additional upgrade requests receive HTTP 503. Wrap nl with
// tls.NewListener to serve wss.
func ServeWebSocket(ctx context.Context, nl net.Listener, maxConns int64, handler WSHandler, logger *log.Logger) error {
	server := &http.Server{
		Handler:           wsHandler(ctx, handler, logger, semaphore.NewWeighted(maxConns)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(nl)
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving after cancellation: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http.Server.Serve(): %w", err)
		}
		return nil
	}
}

func wsHandler(ctx context.Context, handler WSHandler, logger *log.Logger, sem *semaphore.Weighted) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sem.TryAcquire(1) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		defer sem.Release(1)

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.ErrorMsg("websocket.Accept(): %s", err)
			return
		}
		defer c.CloseNow()
		c.SetReadLimit(transport.ReadLimit)

		logger.VerboseMsg("New WS connection from %s", r.RemoteAddr)
		if err := handler(ctx, c); err != nil {
			logger.VerboseMsg("Handling websocket conn: %s", err)
		}
	}
}
