// Package engine turns blocking connection operations into tasks that run on
// a worker pool and are observed by polling a handle.
//
// Every operation returns immediately. Connect allocates a handle whose
// connect task runs in the background; the other operations start a task on
// an idle handle. Status reports WAIT until the task has finished and then
// returns its outcome exactly once, handing the connection back to the
// handle. A handle whose connection is owned by a task rejects further
// operations with ErrNoStreamAvailable.
//
// Handles that are not used for the configured TTL are evicted by a reaper,
// unless a task is still working on them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"dominicbreuker/pollcat/pkg/config"
	"dominicbreuker/pollcat/pkg/log"
	pnet "dominicbreuker/pollcat/pkg/net"
	"dominicbreuker/pollcat/pkg/transport"
)

// DialFunc establishes the connection of a connect task.
type DialFunc func(ctx context.Context, req *pnet.Request, deps *config.Dependencies, logger *log.Logger) (*transport.Transport, error)

// Engine owns the worker pool, the handle registry and the reaper.
type Engine struct {
	cfg    *config.Engine
	logger *log.Logger

	pool     *Pool
	registry *Registry
	reaper   *Reaper
	traffic  *log.TrafficLog
	dial     DialFunc

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// New validates cfg and starts an engine.
func New(cfg *config.Engine, logger *log.Logger) (*Engine, error) {
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid engine configuration: %w", errors.Join(errs...))
	}

	var traffic *log.TrafficLog
	if cfg.TrafficLog != "" {
		var err error
		if traffic, err = log.OpenTrafficLog(cfg.TrafficLog); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry(cfg.TTL)
	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		pool:     NewPool(cfg.Workers),
		registry: registry,
		reaper:   StartReaper(registry, cfg.ReapInterval, logger),
		traffic:  traffic,
		dial:     pnet.Dial,
		ctx:      ctx,
		cancel:   cancel,
	}
	logger.VerboseMsg("Engine started with %d workers, TTL %s, reap interval %s", cfg.Workers, cfg.TTL, cfg.ReapInterval)
	return e, nil
}

// Close stops the engine. Blocked tasks are interrupted by closing their
// connections, and every remaining connection is closed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.cancel()
	e.reaper.Stop()
	e.registry.interrupt()
	e.pool.Close()

	_, transports := e.registry.Sweep(true)
	closeAll(transports)

	e.logger.VerboseMsg("Engine stopped")
	return e.traffic.Close()
}

// Len returns the number of live handles.
func (e *Engine) Len() int {
	return e.registry.Len()
}

// Connect starts establishing the connection described by req and returns
// its handle. Connection errors are reported by Status.
func (e *Engine) Connect(req *pnet.Request) (string, error) {
	if e.closed.Load() {
		return "", ErrClosed
	}

	r := *req
	r.Traffic = e.traffic

	var handle string
	t := newTask(KindConnect, nil, func() (Outcome, error) {
		r.Label = handle
		tr, err := e.dial(e.ctx, &r, e.cfg.Deps, e.logger)
		if err != nil {
			e.logger.VerboseMsg("Connect %s failed: %s", handle, err)
			return Outcome{}, err
		}
		return Outcome{transport: tr}, nil
	})
	handle = e.registry.Allocate(t)

	if err := e.submit(t); err != nil {
		t.fail(err)
		e.registry.Remove(handle)
		return "", err
	}
	e.logger.VerboseMsg("Allocated handle %s", handle)
	return handle, nil
}

// Send starts writing all of data.
func (e *Engine) Send(handle string, data []byte) error {
	return e.begin(handle, KindSend, nil, func(tr *transport.Transport) (Outcome, error) {
		return Outcome{}, tr.WriteAll(data)
	})
}

// RecvExact starts reading exactly n bytes.
func (e *Engine) RecvExact(handle string, n int) error {
	if n < 0 {
		return fmt.Errorf("invalid length %d", n)
	}
	return e.begin(handle, KindRecvExact, nil, func(tr *transport.Transport) (Outcome, error) {
		data, err := tr.ReadExact(n)
		return Outcome{Data: data}, err
	})
}

// RecvUntil starts reading up to and including delim.
func (e *Engine) RecvUntil(handle string, delim []byte) error {
	if len(delim) == 0 {
		return errors.New("empty delimiter")
	}
	return e.begin(handle, KindRecvUntil, nil, func(tr *transport.Transport) (Outcome, error) {
		data, err := tr.ReadUntil(delim)
		return Outcome{Data: data}, err
	})
}

// RecvEnd starts reading until the peer closes or a read times out.
func (e *Engine) RecvEnd(handle string) error {
	return e.begin(handle, KindRecvEnd, nil, func(tr *transport.Transport) (Outcome, error) {
		data, err := tr.ReadToEnd()
		return Outcome{Data: data}, err
	})
}

// ParseMessageType parses "text" or "binary".
func ParseMessageType(s string) (transport.MessageType, error) {
	switch s {
	case "text":
		return transport.MessageText, nil
	case "binary":
		return transport.MessageBinary, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrBadMessageType, s)
	}
}

// SendMessage starts writing one WebSocket message.
func (e *Engine) SendMessage(handle string, msg transport.Message) error {
	if msg.Type != transport.MessageText && msg.Type != transport.MessageBinary {
		return fmt.Errorf("%w: %s", ErrBadMessageType, msg.Type)
	}
	return e.begin(handle, KindSendMessage, requireWebSocket, func(tr *transport.Transport) (Outcome, error) {
		return Outcome{}, tr.SendMessage(msg)
	})
}

// ReadMessage starts reading one WebSocket message.
func (e *Engine) ReadMessage(handle string) error {
	return e.begin(handle, KindReadMessage, requireWebSocket, func(tr *transport.Transport) (Outcome, error) {
		msg, err := tr.ReadMessage()
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: &msg}, nil
	})
}

func requireWebSocket(tr *transport.Transport) error {
	if !tr.IsWebSocket() {
		return ErrUnsupportedOperation
	}
	return nil
}

// Status returns the outcome of the task of handle once it has finished.
// The second value is false while the task is still running. An error is
// either a polling error or the error of the finished task.
func (e *Engine) Status(handle string) (Outcome, bool, error) {
	return e.registry.Poll(handle)
}

// SetReadTimeout changes the read timeout of an idle handle. Zero disables it.
func (e *Engine) SetReadTimeout(handle string, d time.Duration) error {
	return e.registry.WithTransport(handle, func(tr *transport.Transport) error {
		return tr.SetReadTimeout(d)
	})
}

// SetWriteTimeout changes the write timeout of an idle handle. Zero disables it.
func (e *Engine) SetWriteTimeout(handle string, d time.Duration) error {
	return e.registry.WithTransport(handle, func(tr *transport.Transport) error {
		return tr.SetWriteTimeout(d)
	})
}

// Disconnect removes an idle handle and closes its connection.
func (e *Engine) Disconnect(handle string) error {
	tr, err := e.registry.Remove(handle)
	if err != nil {
		return err
	}
	if tr != nil {
		if err := tr.Close(); err != nil {
			e.logger.VerboseMsg("Closing %s: %s", handle, err)
		}
	}
	e.logger.VerboseMsg("Disconnected %s", handle)
	return nil
}

// DisconnectWithReason removes an idle handle and closes its connection,
// sending a WebSocket close frame with code and reason when applicable.
func (e *Engine) DisconnectWithReason(handle string, code int, reason string) error {
	tr, err := e.registry.Remove(handle)
	if err != nil {
		return err
	}
	if tr != nil {
		if err := tr.CloseWithReason(code, reason); err != nil {
			e.logger.VerboseMsg("Closing %s: %s", handle, err)
		}
	}
	e.logger.VerboseMsg("Disconnected %s with code %d", handle, code)
	return nil
}

// begin starts fn as a task of the given kind on the transport of handle.
// A failed task closes the transport since the stream state is unknown.
func (e *Engine) begin(handle string, kind TaskKind, accept func(*transport.Transport) error, fn func(*transport.Transport) (Outcome, error)) error {
	if e.closed.Load() {
		return ErrClosed
	}

	t, err := e.registry.BeginTask(handle, accept, func(tr *transport.Transport) *Task {
		return newTask(kind, tr, func() (Outcome, error) {
			out, err := fn(tr)
			if err != nil {
				tr.Close()
				return Outcome{}, err
			}
			out.transport = tr
			return out, nil
		})
	})
	if err != nil {
		return err
	}
	if err := e.submit(t); err != nil {
		t.abort()
		t.fail(err)
		return err
	}
	return nil
}

func (e *Engine) submit(t *Task) error {
	if err := e.pool.Submit(t); err != nil {
		return err
	}
	tasksStarted.WithLabelValues(t.Kind().String()).Inc()
	return nil
}
