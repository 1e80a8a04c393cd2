// Package protocol exposes the engine through flat string entry points. Every
// entry point returns promptly with a single string; failures are encoded as
// ErrPrefix followed by the error message.
package protocol

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dominicbreuker/pollcat/pkg/config"
	"dominicbreuker/pollcat/pkg/engine"
	"dominicbreuker/pollcat/pkg/format"
	"dominicbreuker/pollcat/pkg/log"
	pnet "dominicbreuker/pollcat/pkg/net"
	"dominicbreuker/pollcat/pkg/transport"
)

// Responses of the entry points.
const (
	ErrPrefix       = "ERR|"
	StatusWait      = "WAIT"
	StatusSpawned   = "THREAD_SPAWNED"
	StatusOK        = "OK"
	LabelConnected  = "CONNECTED"
	LabelSent       = "SENT"
	TagText         = "TEXT|"
	TagBinary       = "BINARY|"
	directProxySpec = ":"
)

// Protocol translates string requests into engine operations.
type Protocol struct {
	engine *engine.Engine
	logger *log.Logger
}

// New returns a protocol surface over e.
func New(e *engine.Engine, logger *log.Logger) *Protocol {
	return &Protocol{engine: e, logger: logger}
}

// Fail encodes err as a protocol error response.
func Fail(err error) string {
	return ErrPrefix + err.Error()
}

// IsError reports whether a response is an error.
func IsError(resp string) bool {
	return strings.HasPrefix(resp, ErrPrefix)
}

func (p *Protocol) fail(op string, err error) string {
	p.logger.VerboseMsg("%s: %s", op, err)
	return Fail(err)
}

func spawned(err error) string {
	if err != nil {
		return Fail(err)
	}
	return StatusSpawned
}

func ok(err error) string {
	if err != nil {
		return Fail(err)
	}
	return StatusOK
}

// Connect starts a TCP connection to target, optionally through the proxy
// described by proxySpec ("" or ":" for none) and optionally upgraded to TLS.
// It returns the handle of the connection.
func (p *Protocol) Connect(target, proxySpec, timeoutMs, proxyResolve, useTLS string) string {
	if _, _, err := format.SplitAddr(target); err != nil {
		return p.fail("connect", fmt.Errorf("%w: %s", pnet.ErrAddress, err))
	}
	req, err := request(proxySpec, timeoutMs, proxyResolve)
	if err != nil {
		return p.fail("connect", err)
	}
	req.Target = target
	req.TLS = parseBool(useTLS)

	return p.connect(req)
}

// ConnectWS starts a WebSocket connection to a ws:// or wss:// URL and
// returns the handle of the connection.
func (p *Protocol) ConnectWS(rawURL, proxySpec, timeoutMs, proxyResolve string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return p.fail("connect_ws", fmt.Errorf("%w: %s", pnet.ErrAddress, err))
	}
	if _, err := format.URLAddr(u); err != nil {
		return p.fail("connect_ws", fmt.Errorf("%w: %s", pnet.ErrAddress, err))
	}

	req, err := request(proxySpec, timeoutMs, proxyResolve)
	if err != nil {
		return p.fail("connect_ws", err)
	}
	req.URL = u

	return p.connect(req)
}

func (p *Protocol) connect(req *pnet.Request) string {
	handle, err := p.engine.Connect(req)
	if err != nil {
		return p.fail("connect", err)
	}
	return handle
}

func request(proxySpec, timeoutMs, proxyResolve string) (*pnet.Request, error) {
	proxy, err := config.ParseProxy(proxySpec)
	if err != nil {
		return nil, err
	}
	timeout, err := parseMillis(timeoutMs)
	if err != nil {
		return nil, err
	}
	return &pnet.Request{
		Proxy:        proxy,
		Timeout:      timeout,
		ProxyResolve: parseBool(proxyResolve),
	}, nil
}

// SendData starts writing the base64 encoded payload.
func (p *Protocol) SendData(handle, payload string) string {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return p.fail("send_data", fmt.Errorf("invalid base64 payload: %w", err))
	}
	return spawned(p.engine.Send(handle, data))
}

// RecvExact starts reading exactly length bytes.
func (p *Protocol) RecvExact(handle, length string) string {
	n, err := strconv.ParseUint(length, 10, 31)
	if err != nil {
		return p.fail("recv_exact", fmt.Errorf("invalid length %q: %w", length, err))
	}
	return spawned(p.engine.RecvExact(handle, int(n)))
}

// RecvUntil starts reading up to and including the base64 encoded delimiter.
func (p *Protocol) RecvUntil(handle, delimiter string) string {
	delim, err := base64.StdEncoding.DecodeString(delimiter)
	if err != nil {
		return p.fail("recv_until", fmt.Errorf("invalid base64 delimiter: %w", err))
	}
	return spawned(p.engine.RecvUntil(handle, delim))
}

// RecvEnd starts reading until the peer closes or a read times out.
func (p *Protocol) RecvEnd(handle string) string {
	return spawned(p.engine.RecvEnd(handle))
}

// SendMessage starts writing a WebSocket message. Text payloads are sent as
// given, binary payloads are base64 encoded.
func (p *Protocol) SendMessage(handle, messageType, payload string) string {
	typ, err := engine.ParseMessageType(messageType)
	if err != nil {
		return p.fail("send_message", err)
	}

	msg := transport.Message{Type: typ, Data: []byte(payload)}
	if typ == transport.MessageBinary {
		if msg.Data, err = base64.StdEncoding.DecodeString(payload); err != nil {
			return p.fail("send_message", fmt.Errorf("invalid base64 payload: %w", err))
		}
	}
	return spawned(p.engine.SendMessage(handle, msg))
}

// ReadMessage starts reading one WebSocket message.
func (p *Protocol) ReadMessage(handle string) string {
	return spawned(p.engine.ReadMessage(handle))
}

// TaskStatus returns WAIT while the task of handle runs, then its result
// exactly once.
func (p *Protocol) TaskStatus(handle string) string {
	out, done, err := p.engine.Status(handle)
	if err != nil {
		return Fail(err)
	}
	if !done {
		return StatusWait
	}
	return encodeOutcome(out)
}

// SetReadTimeout sets the read timeout in milliseconds, 0 meaning none.
func (p *Protocol) SetReadTimeout(handle, timeoutMs string) string {
	d, err := parseMillis(timeoutMs)
	if err != nil {
		return p.fail("set_read_timeout", err)
	}
	return ok(p.engine.SetReadTimeout(handle, d))
}

// SetWriteTimeout sets the write timeout in milliseconds, 0 meaning none.
func (p *Protocol) SetWriteTimeout(handle, timeoutMs string) string {
	d, err := parseMillis(timeoutMs)
	if err != nil {
		return p.fail("set_write_timeout", err)
	}
	return ok(p.engine.SetWriteTimeout(handle, d))
}

// Disconnect closes the connection and removes the handle.
func (p *Protocol) Disconnect(handle string) string {
	return ok(p.engine.Disconnect(handle))
}

// DisconnectWS closes a WebSocket connection with a close frame carrying
// code and reason. An unparsable code closes without a frame.
func (p *Protocol) DisconnectWS(handle, code, reason string) string {
	c, err := strconv.ParseUint(code, 10, 16)
	if err != nil {
		return ok(p.engine.Disconnect(handle))
	}
	return ok(p.engine.DisconnectWithReason(handle, int(c), reason))
}

// Handles returns the number of live handles.
func (p *Protocol) Handles() string {
	return strconv.Itoa(p.engine.Len())
}

// parseMillis parses a non-negative number of milliseconds.
func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.ParseUint(strings.TrimSpace(s), 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if ms > uint64(1<<63-1)/uint64(time.Millisecond) {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, strconv.ErrRange)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// parseBool parses optional boolean arguments, defaulting to false.
func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
