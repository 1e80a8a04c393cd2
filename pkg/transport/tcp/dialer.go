// Package tcp establishes plain TCP connections.
package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"dominicbreuker/pollcat/pkg/config"
)

// Dial establishes a TCP connection to addr. A timeout of zero means the
// connection attempt is only bounded by ctx.
func Dial(ctx context.Context, addr string, timeout time.Duration, deps *config.Dependencies) (net.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dialFn := config.GetDialContextFunc(deps)
	conn, err := dialFn(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial(tcp, %s): %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetNoDelay(true)
	}
	return conn, nil
}
