package engine

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool runs tasks on a fixed number of worker goroutines. Submitted tasks
// wait in an unbounded FIFO queue, so submitting never blocks and never
// fails because all workers are busy.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Task
	closed bool

	g errgroup.Group
}

// NewPool starts a pool with the given number of workers.
func NewPool(workers int) *Pool {
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.g.Go(p.work)
	}
	return p
}

// Submit queues t for execution.
func (p *Pool) Submit(t *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, t)
	queueDepth.Inc()
	p.cond.Signal()
	return nil
}

// QueueDepth returns the number of tasks waiting for a worker.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops accepting tasks, lets the workers drain the queue and waits
// for them to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.g.Wait()
}

func (p *Pool) work() error {
	for {
		t, ok := p.next()
		if !ok {
			return nil
		}
		t.run()
	}
}

func (p *Pool) next() (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}

	t := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	queueDepth.Dec()
	return t, true
}
