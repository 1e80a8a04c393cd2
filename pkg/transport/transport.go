// Package transport implements the duplex stream behind every connection
// handle. A Transport is one of three fixed kinds:
//
//   - TCP: a plain socket, possibly a tunnel established through a proxy
//   - TLS: a TLS client session over such a socket
//   - WebSocket: WebSocket framing over either of the above
//
// Byte operations (ReadExact, ReadUntil, ReadToEnd, WriteAll) work on every
// kind. Message operations (SendMessage, ReadMessage) are only available on
// WebSocket transports.
//
// Timeout Handling:
//   - Read and write timeouts are stored as durations
//   - The socket deadline is armed before every underlying read and write,
//     so a timeout bounds how long the peer may stay idle, not the whole call
//   - A zero duration means no deadline
//
// Only one blocking call may be active on a Transport at a time. The engine
// guarantees this by handing the Transport to exactly one task.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// Kind identifies the variant of a Transport.
type Kind int

const (
	// KindTCP is a plain TCP stream.
	KindTCP Kind = iota
	// KindTLS is a TLS session over TCP.
	KindTLS
	// KindWebSocket is WebSocket framing over TCP or TLS.
	KindWebSocket
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindTLS:
		return "tls"
	case KindWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// ErrNotWebSocket is returned by message operations on stream transports.
var ErrNotWebSocket = errors.New("transport is not a websocket")

// ErrInterrupted is returned by byte reads on a WebSocket transport after an
// earlier read failed in the middle of a message.
var ErrInterrupted = errors.New("websocket message interrupted")

// Transport is a connected duplex stream with adjustable timeouts.
type Transport struct {
	kind Kind

	raw  net.Conn      // underlying socket
	conn *deadlineConn // raw or TLS session, with per-call deadlines
	ws   *websocket.Conn
	msgs *messageStream // byte view of the WebSocket message sequence
	br   *bufio.Reader

	timeouts *timeouts

	closeOnce sync.Once
	closeErr  error
}

type timeouts struct {
	read  atomic.Int64
	write atomic.Int64
}

// deadlineConn arms the read or write deadline before every call.
type deadlineConn struct {
	net.Conn
	timeouts *timeouts
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(deadline(time.Duration(c.timeouts.read.Load()))); err != nil {
		return 0, fmt.Errorf("SetReadDeadline(): %w", err)
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(deadline(time.Duration(c.timeouts.write.Load()))); err != nil {
		return 0, fmt.Errorf("SetWriteDeadline(): %w", err)
	}
	return c.Conn.Write(p)
}

// NewTCP wraps a connected socket.
func NewTCP(conn net.Conn) *Transport {
	return newStream(KindTCP, conn, conn)
}

// NewTLS wraps a TLS session established over raw.
func NewTLS(raw net.Conn, session *tls.Conn) *Transport {
	return newStream(KindTLS, raw, session)
}

func newStream(kind Kind, raw, stream net.Conn) *Transport {
	to := &timeouts{}
	conn := &deadlineConn{Conn: stream, timeouts: to}
	return &Transport{
		kind:     kind,
		raw:      raw,
		conn:     conn,
		br:       bufio.NewReader(conn),
		timeouts: to,
	}
}

// NewWebSocket wraps a WebSocket connection established over the stream of
// inner. The new Transport takes ownership of inner and shares its timeouts.
func NewWebSocket(inner *Transport, c *websocket.Conn) *Transport {
	c.SetReadLimit(ReadLimit)
	msgs := &messageStream{c: c}
	return &Transport{
		kind:     KindWebSocket,
		raw:      inner.raw,
		conn:     inner.conn,
		ws:       c,
		msgs:     msgs,
		br:       bufio.NewReader(msgs),
		timeouts: inner.timeouts,
	}
}

// ReadLimit is the maximum size of a single WebSocket message read from a peer.
const ReadLimit = 16 << 20

// Kind returns the variant of the transport.
func (t *Transport) Kind() Kind {
	return t.kind
}

// IsWebSocket reports whether message operations are available.
func (t *Transport) IsWebSocket() bool {
	return t.kind == KindWebSocket
}

// Stream returns the byte stream below any WebSocket framing: the socket or
// the TLS session over it. Reads and writes on it are bounded by the
// transport timeouts and bypass the read buffer used by ReadExact, ReadUntil
// and ReadToEnd.
func (t *Transport) Stream() net.Conn {
	return t.conn
}

// SetReadTimeout sets the idle limit of every read started afterwards.
// Zero disables the timeout.
func (t *Transport) SetReadTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("negative read timeout %s", d)
	}
	t.timeouts.read.Store(int64(d))
	return nil
}

// SetWriteTimeout sets the limit of every write started afterwards.
// Zero disables the timeout.
func (t *Transport) SetWriteTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("negative write timeout %s", d)
	}
	t.timeouts.write.Store(int64(d))
	return nil
}

// ReadTimeout returns the current read timeout.
func (t *Transport) ReadTimeout() time.Duration {
	return time.Duration(t.timeouts.read.Load())
}

// WriteTimeout returns the current write timeout.
func (t *Transport) WriteTimeout() time.Duration {
	return time.Duration(t.timeouts.write.Load())
}

func deadline(d time.Duration) time.Time {
	if d == 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

// Read reads up to len(p) bytes.
func (t *Transport) Read(p []byte) (int, error) {
	return t.br.Read(p)
}

// Write writes all of p. On WebSocket transports p is sent as one binary
// message.
func (t *Transport) Write(p []byte) (int, error) {
	if t.ws != nil {
		if err := t.ws.Write(context.Background(), websocket.MessageBinary, p); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return t.conn.Write(p)
}

// WriteAll writes p completely, failing on short writes.
func (t *Transport) WriteAll(p []byte) error {
	n, err := t.Write(p)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("write: %w", io.ErrShortWrite)
	}
	return nil
}

// ReadExact reads exactly n bytes.
func (t *Transport) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.br, buf); err != nil {
		return nil, fmt.Errorf("read exact %d bytes: %w", n, err)
	}
	return buf, nil
}

// ReadUntil reads until delim has been read and returns the data including
// delim. If the peer closes the stream first, the bytes read so far are
// returned without error.
func (t *Transport) ReadUntil(delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, errors.New("empty delimiter")
	}

	if len(delim) == 1 {
		data, err := t.br.ReadBytes(delim[0])
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read until delimiter: %w", err)
		}
		return data, nil
	}

	var data []byte
	for {
		b, err := t.br.ReadByte()
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read until delimiter: %w", err)
		}
		data = append(data, b)
		if hasSuffix(data, delim) {
			return data, nil
		}
	}
}

func hasSuffix(data, suffix []byte) bool {
	if len(data) < len(suffix) {
		return false
	}
	tail := data[len(data)-len(suffix):]
	for i := range suffix {
		if tail[i] != suffix[i] {
			return false
		}
	}
	return true
}

// ReadToEnd reads until the peer closes the stream or stays idle for longer
// than the read timeout. Both end the read successfully with the data
// received so far.
func (t *Transport) ReadToEnd() ([]byte, error) {
	data, err := io.ReadAll(t.br)
	if err != nil && !IsTimeout(err) {
		return nil, fmt.Errorf("read to end: %w", err)
	}
	return data, nil
}

// Close closes the transport. It is safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.ws != nil {
			t.closeErr = t.ws.CloseNow()
		}
		if err := t.conn.Close(); err != nil && t.closeErr == nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = err
		}
		if t.raw != t.conn.Conn {
			t.raw.Close()
		}
	})
	return t.closeErr
}

// CloseWithReason starts the WebSocket closing handshake with code and
// reason and returns without waiting for the peer. The handshake finishes in
// the background, bounded by the library's close timeout, and the socket is
// closed afterwards. On stream transports it is equivalent to Close.
func (t *Transport) CloseWithReason(code int, reason string) error {
	if t.ws == nil {
		return t.Close()
	}
	t.closeOnce.Do(func() {
		go func() {
			t.ws.Close(websocket.StatusCode(code), reason)
			t.raw.Close()
		}()
	})
	return nil
}

// messageStream presents the data messages of a WebSocket connection as one
// byte stream. Control frames are handled by the connection while reading.
type messageStream struct {
	c   *websocket.Conn
	r   io.Reader // current message, nil between messages
	err error
}

func (s *messageStream) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if s.r == nil {
			_, r, err := s.c.Reader(context.Background())
			if err != nil {
				return 0, endOfStream(err)
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			err = nil
		}
		if err != nil {
			// The frame position is lost once a payload read fails.
			s.err = fmt.Errorf("%w: %s", ErrInterrupted, err)
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
}

// endOfStream maps a regular close by the peer to io.EOF.
func endOfStream(err error) error {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return io.EOF
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return err
}
