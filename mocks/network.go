// Package mocks provides in-memory stand-ins for the network and the host
// process, injected through config.Dependencies in tests.
package mocks

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// MockNetwork simulates a TCP network without real sockets. Listeners are
// registered under "host:port" and dials are connected to them with
// in-memory pipes. Host names can be mapped to IPs for resolution.
type MockNetwork struct {
	mu        sync.Mutex
	listeners map[string]*MockListener
	hosts     map[string][]net.IP
	nextPort  atomic.Int32
	dials     atomic.Int64
}

// NewMockNetwork creates an empty mock network.
func NewMockNetwork() *MockNetwork {
	m := &MockNetwork{
		listeners: make(map[string]*MockListener),
		hosts:     make(map[string][]net.IP),
	}
	m.nextPort.Store(50000)
	return m
}

// AddHost makes LookupIP resolve name to ips.
func (m *MockNetwork) AddHost(name string, ips ...net.IP) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts[name] = ips
}

// LookupIP resolves names added with AddHost and IP literals.
func (m *MockNetwork) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ips, ok := m.hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return ips, nil
}

// Listen registers a listener on addr.
func (m *MockNetwork) Listen(addr string) (*MockListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := tcpAddr.String()
	if _, exists := m.listeners[key]; exists {
		return nil, fmt.Errorf("address already in use: %s", key)
	}

	l := &MockListener{
		addr:    tcpAddr,
		connCh:  make(chan net.Conn),
		closeCh: make(chan struct{}),
		network: m,
	}
	m.listeners[key] = l
	return l, nil
}

// DialContext connects to a registered listener. It matches the signature
// of config.DialContextFunc.
func (m *MockNetwork) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network != "tcp" {
		return nil, fmt.Errorf("unsupported network type: %s", network)
	}
	m.dials.Add(1)

	m.mu.Lock()
	l, exists := m.listeners[addr]
	m.mu.Unlock()
	if !exists {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused: no listener on %s", addr)}
	}

	laddr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(m.nextPort.Add(1))}
	client, server := net.Pipe()

	select {
	case l.connCh <- &mockConn{Conn: server, local: l.addr, remote: laddr}:
		return &mockConn{Conn: client, local: laddr, remote: l.addr}, nil
	case <-l.closeCh:
		client.Close()
		server.Close()
		return nil, fmt.Errorf("connection refused: listener closed")
	case <-ctx.Done():
		client.Close()
		server.Close()
		return nil, ctx.Err()
	}
}

// Dials returns the number of dial attempts made on the network.
func (m *MockNetwork) Dials() int64 {
	return m.dials.Load()
}

// MockListener is a listener on a MockNetwork.
type MockListener struct {
	addr      *net.TCPAddr
	connCh    chan net.Conn
	closeCh   chan struct{}
	closeOnce sync.Once
	network   *MockNetwork
}

var _ net.Listener = (*MockListener)(nil)

// Accept waits for the next dialed connection.
func (l *MockListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.connCh:
		return conn, nil
	case <-l.closeCh:
		return nil, net.ErrClosed
	}
}

// Close unregisters the listener.
func (l *MockListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closeCh)
		l.network.mu.Lock()
		delete(l.network.listeners, l.addr.String())
		l.network.mu.Unlock()
	})
	return nil
}

// Addr returns the listener address.
func (l *MockListener) Addr() net.Addr {
	return l.addr
}

type mockConn struct {
	net.Conn
	local, remote net.Addr
}

func (c *mockConn) LocalAddr() net.Addr  { return c.local }
func (c *mockConn) RemoteAddr() net.Addr { return c.remote }
