package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dominicbreuker/pollcat/pkg/transport"
)

// TaskKind identifies the blocking operation a task performs.
type TaskKind int

const (
	KindConnect TaskKind = iota
	KindSend
	KindRecvExact
	KindRecvUntil
	KindRecvEnd
	KindSendMessage
	KindReadMessage
)

var taskKinds = []TaskKind{KindConnect, KindSend, KindRecvExact, KindRecvUntil, KindRecvEnd, KindSendMessage, KindReadMessage}

func (k TaskKind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindSend:
		return "send"
	case KindRecvExact:
		return "recv_exact"
	case KindRecvUntil:
		return "recv_until"
	case KindRecvEnd:
		return "recv_end"
	case KindSendMessage:
		return "send_message"
	case KindReadMessage:
		return "read_message"
	default:
		return fmt.Sprintf("TaskKind(%d)", int(k))
	}
}

// Outcome is the value produced by a successful task.
type Outcome struct {
	Kind TaskKind
	// Data holds the bytes read by receive tasks.
	Data []byte
	// Message holds the message read by a read-message task.
	Message *transport.Message

	// transport is handed back to the registry entry on completion.
	transport *transport.Transport
}

type result struct {
	outcome Outcome
	err     error
}

const (
	taskPending int32 = iota
	taskRunning
	taskDone
)

type job func() (Outcome, error)

// Task is one blocking operation submitted to the pool. Its result can be
// taken exactly once.
type Task struct {
	kind  TaskKind
	state atomic.Int32
	done  chan result
	job   job

	// owned is the transport the job operates on, closed by abort.
	owned *transport.Transport

	abortOnce sync.Once
}

func newTask(kind TaskKind, owned *transport.Transport, fn job) *Task {
	return &Task{
		kind:  kind,
		done:  make(chan result, 1),
		job:   fn,
		owned: owned,
	}
}

// Kind returns the operation of the task.
func (t *Task) Kind() TaskKind {
	return t.kind
}

// Running reports whether a worker has picked up the task and not finished it.
func (t *Task) Running() bool {
	return t.state.Load() == taskRunning
}

// Done reports whether the task has finished and its result is available.
func (t *Task) Done() bool {
	return t.state.Load() == taskDone
}

// run executes the job on the calling worker. Panics are turned into the
// task's error result.
func (t *Task) run() {
	t.state.Store(taskRunning)
	start := time.Now()

	res := t.execute()

	observeTask(t.kind, res.err, time.Since(start))
	t.done <- res
	t.state.Store(taskDone)
}

func (t *Task) execute() (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: fmt.Errorf("task %s panicked: %v", t.kind, r)}
		}
	}()
	out, err := t.job()
	out.Kind = t.kind
	return result{outcome: out, err: err}
}

// fail completes a task that never ran with err.
func (t *Task) fail(err error) {
	t.done <- result{err: err}
	t.state.Store(taskDone)
}

// take returns the result if the task has finished. The second value is
// false while the task is pending or running, or after the result was taken.
func (t *Task) take() (result, bool) {
	select {
	case res := <-t.done:
		return res, true
	default:
		return result{}, false
	}
}

// abort closes the transport the task operates on so a blocked worker
// returns.
func (t *Task) abort() {
	if t.owned == nil {
		return
	}
	t.abortOnce.Do(func() { t.owned.Close() })
}
