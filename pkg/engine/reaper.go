package engine

import (
	"sync"
	"time"

	"dominicbreuker/pollcat/pkg/log"
	"dominicbreuker/pollcat/pkg/transport"
)

// Reaper periodically evicts expired idle handles from a registry.
type Reaper struct {
	registry *Registry
	interval time.Duration
	logger   *log.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartReaper starts sweeping registry every interval.
func StartReaper(registry *Registry, interval time.Duration, logger *log.Logger) *Reaper {
	r := &Reaper{
		registry: registry,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Reaper) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(false)
		case <-r.stop:
			r.sweep(true)
			return
		}
	}
}

// sweep evicts handles and closes their transports. With force every handle
// without an unfinished task is evicted regardless of expiry.
func (r *Reaper) sweep(force bool) int {
	removed, transports := r.registry.Sweep(force)
	closeAll(transports)

	if removed > 0 {
		handlesReaped.Add(float64(removed))
		r.logger.VerboseMsg("Reaper evicted %d handle(s), %d remaining", removed, r.registry.Len())
	}
	return removed
}

// Stop runs a final sweep and waits for the reaper to exit.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func closeAll(transports []*transport.Transport) {
	for _, tr := range transports {
		tr.Close()
	}
}
