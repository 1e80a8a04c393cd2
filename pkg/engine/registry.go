package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dominicbreuker/pollcat/pkg/transport"
)

// entry is the registry state of one handle. At any time the transport is
// either held by the entry or owned by the task, never both.
type entry struct {
	transport *transport.Transport
	task      *Task
	kind      TaskKind

	// expiresAt is an offset from the registry epoch.
	expiresAt atomic.Int64
}

// Registry maps handles to their entries. One lock guards the map; only
// pointer swaps happen while it is held.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	ttl   time.Duration
	epoch time.Time
	now   func() time.Time
}

// NewRegistry creates a registry whose entries expire ttl after their last
// interaction.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		ttl:     ttl,
		epoch:   time.Now(),
		now:     time.Now,
	}
}

func (r *Registry) clock() time.Duration {
	return r.now().Sub(r.epoch)
}

func (r *Registry) touch(e *entry) {
	e.expiresAt.Store(int64(r.clock() + r.ttl))
}

func (r *Registry) expired(e *entry, at time.Duration) bool {
	return time.Duration(e.expiresAt.Load()) < at
}

// Allocate inserts a new entry owned by t and returns its handle.
func (r *Registry) Allocate(t *Task) string {
	handle := uuid.NewString()
	e := &entry{task: t, kind: t.Kind()}
	r.touch(e)

	r.mu.Lock()
	r.entries[handle] = e
	r.mu.Unlock()

	handles.Inc()
	return handle
}

// BeginTask hands the transport of an idle handle to the task created by
// start. The task is stored in the entry and returned for submission.
// accept may reject the transport before anything changes.
func (r *Registry) BeginTask(handle string, accept func(*transport.Transport) error, start func(*transport.Transport) *Task) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[handle]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	if e.transport == nil || e.task != nil {
		return nil, ErrNoStreamAvailable
	}
	if accept != nil {
		if err := accept(e.transport); err != nil {
			return nil, err
		}
	}

	t := start(e.transport)
	e.transport = nil
	e.task = t
	e.kind = t.Kind()
	r.touch(e)
	return t, nil
}

// Poll returns the outcome of the task of handle if it has finished. The
// second value is false while the task is still pending or running. A
// finished task hands its transport back to the entry; a failed connect
// removes the entry.
func (r *Registry) Poll(handle string) (Outcome, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[handle]
	if !ok {
		return Outcome{}, false, ErrConnectionNotFound
	}
	if e.task == nil {
		return Outcome{}, false, ErrNoTaskRunning
	}

	r.touch(e)
	res, done := e.task.take()
	if !done {
		return Outcome{}, false, nil
	}
	e.task = nil

	if res.err != nil {
		if e.kind == KindConnect {
			delete(r.entries, handle)
			handles.Dec()
		}
		return Outcome{Kind: e.kind}, true, res.err
	}

	e.transport = res.outcome.transport
	out := res.outcome
	out.transport = nil
	return out, true, nil
}

// Remove deletes an idle handle and returns its transport, if any, for the
// caller to close. Handles whose task has not finished are kept.
func (r *Registry) Remove(handle string) (*transport.Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[handle]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	if e.task != nil && !e.task.Done() {
		return nil, ErrNoStreamAvailable
	}

	delete(r.entries, handle)
	handles.Dec()
	return e.release(), nil
}

// release returns the transport held by the entry or left in the unread
// result of its finished task.
func (e *entry) release() *transport.Transport {
	if e.transport != nil {
		return e.transport
	}
	if e.task != nil {
		if res, ok := e.task.take(); ok && res.err == nil {
			return res.outcome.transport
		}
	}
	return nil
}

// WithTransport runs fn on the transport of an idle handle. fn must not block.
func (r *Registry) WithTransport(handle string, fn func(*transport.Transport) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[handle]
	if !ok {
		return ErrConnectionNotFound
	}
	if e.transport == nil {
		return ErrNoStreamAvailable
	}
	if err := fn(e.transport); err != nil {
		return err
	}
	r.touch(e)
	return nil
}

// Sweep removes entries whose task is absent or finished. Without force only
// expired entries are removed. It returns the number of removed entries and
// their transports for the caller to close.
func (r *Registry) Sweep(force bool) (int, []*transport.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	removed := 0
	var out []*transport.Transport
	for handle, e := range r.entries {
		if e.task != nil && !e.task.Done() {
			continue
		}
		if !force && !r.expired(e, now) {
			continue
		}
		delete(r.entries, handle)
		handles.Dec()
		removed++
		if tr := e.release(); tr != nil {
			out = append(out, tr)
		}
	}
	return removed, out
}

// interrupt aborts every unfinished task so blocked workers return.
func (r *Registry) interrupt() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.task != nil && !e.task.Done() {
			e.task.abort()
		}
	}
}

// Len returns the number of handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
