package net

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"dominicbreuker/pollcat/pkg/config"
	"dominicbreuker/pollcat/pkg/format"
	"dominicbreuker/pollcat/pkg/log"
	"dominicbreuker/pollcat/pkg/proxy"
	"dominicbreuker/pollcat/pkg/transport/tcp"
	"dominicbreuker/pollcat/pkg/transport/ws"
)

// dialDependencies holds injectable connect steps for testing.
type dialDependencies struct {
	dialDirect  func(ctx context.Context, addr string, timeout time.Duration, deps *config.Dependencies) (net.Conn, error)
	dialProxy   func(ctx context.Context, cfg *config.Proxy, target string, timeout time.Duration, deps *config.Dependencies) (net.Conn, error)
	handshakeWS func(ctx context.Context, stream net.Conn, u *url.URL, timeout time.Duration) (*websocket.Conn, error)
}

func defaultDialDependencies() *dialDependencies {
	return &dialDependencies{
		dialDirect:  tcp.Dial,
		dialProxy:   proxy.Dial,
		handshakeWS: ws.Handshake,
	}
}

// targetOf returns the "host:port" the request connects to.
func targetOf(req *Request) (string, error) {
	if req.URL == nil {
		if _, _, err := format.SplitAddr(req.Target); err != nil {
			return "", fmt.Errorf("%w: %s", ErrAddress, err)
		}
		return req.Target, nil
	}

	target, err := format.URLAddr(req.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrAddress, err)
	}
	return target, nil
}

// resolve turns target into the address handed to the dialer or proxy.
// Host names stay unresolved only when the proxy resolves them.
func resolve(ctx context.Context, req *Request, target string, deps *config.Dependencies) (string, error) {
	host, port, err := format.SplitAddr(target)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrAddress, err)
	}
	if net.ParseIP(host) != nil || (req.Proxy != nil && req.ProxyResolve) {
		return target, nil
	}

	lookupCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	ips, err := config.GetLookupIPFunc(deps)(lookupCtx, host)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %s", ErrAddress, host, err)
	}

	ip := pickIP(ips, req.Proxy != nil && req.Proxy.Type == config.ProxySOCKS4)
	if ip == nil {
		return "", fmt.Errorf("%w: no usable address for %s", ErrAddress, host)
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}

// pickIP returns the first address, or the first IPv4 address when only
// IPv4 can be used.
func pickIP(ips []net.IP, ipv4Only bool) net.IP {
	for _, ip := range ips {
		if !ipv4Only || ip.To4() != nil {
			return ip
		}
	}
	return nil
}

// establishConnection reaches addr directly or through the proxy and makes
// sure no connect deadline lingers on the returned connection.
func establishConnection(ctx context.Context, req *Request, addr string, deps *config.Dependencies, logger *log.Logger, steps *dialDependencies) (net.Conn, error) {
	var conn net.Conn
	var err error
	if req.Proxy == nil {
		logger.VerboseMsg("Dialing %s", addr)
		conn, err = steps.dialDirect(ctx, addr, req.Timeout, deps)
	} else {
		logger.VerboseMsg("Dialing %s through %s", addr, req.Proxy)
		conn, err = steps.dialProxy(ctx, req.Proxy, addr, req.Timeout, deps)
	}
	if err != nil {
		logger.VerboseMsg("Connection to %s failed: %v", addr, err)
		return nil, err
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

// upgradeTLS wraps conn in a TLS client session. Certificates and host
// names are not verified and no SNI is sent.
func upgradeTLS(conn net.Conn, timeout time.Duration, logger *log.Logger) (*tls.Conn, error) {
	session := tls.Client(conn, &tls.Config{
		InsecureSkipVerify: true,
	})

	if timeout > 0 {
		_ = session.SetDeadline(time.Now().Add(timeout))
	}
	err := session.Handshake()
	if timeout > 0 {
		_ = session.SetDeadline(time.Time{})
	}

	if err != nil {
		logger.VerboseMsg("TLS client handshake failed: %v", err)
		return nil, err
	}
	return session, nil
}
