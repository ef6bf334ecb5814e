package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls how the dispatcher queues events.
type Config struct {
	Enabled    bool
	BufferSize int
	// ShedLowSeverity lets low-severity events be discarded while the queue
	// is full. Medium and above always wait for room.
	ShedLowSeverity bool
	// MinSeverity drops events ranked below it. Empty forwards everything.
	MinSeverity Severity
}

// Dispatcher hands security events to a sink on its own goroutine. Failed
// logins, lockouts and other events at medium severity or above are never
// discarded: when the queue is full the caller waits until the sink catches
// up or the dispatcher closes.
type Dispatcher struct {
	sink  Sink
	floor int
	shed  bool

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	shedCount     atomic.Uint64
	filteredCount atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled;
// a nil *Dispatcher accepts and ignores every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &Dispatcher{
		sink:  sink,
		floor: cfg.MinSeverity.Rank(),
		shed:  cfg.ShedLowSeverity,
		queue: make(chan Event, size),
		stop:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.drain()
	return d
}

func (d *Dispatcher) drain() {
	defer d.wg.Done()
	ctx := context.Background()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		case <-d.stop:
			for len(d.queue) > 0 {
				d.sink.Emit(ctx, <-d.queue)
			}
			return
		}
	}
}

// Emit queues event. Request cancellation does not discard it.
func (d *Dispatcher) Emit(_ context.Context, event Event) {
	if d == nil {
		return
	}
	if event.Severity.Rank() < d.floor {
		d.filteredCount.Add(1)
		return
	}

	// Holding the read lock keeps Close from stopping the drain loop while a
	// retained event is still waiting for room.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.shed && event.Severity.Rank() < SeverityMedium.Rank() {
		select {
		case d.queue <- event:
		default:
			d.shedCount.Add(1)
		}
		return
	}
	d.queue <- event
}

// Close flushes queued events to the sink and stops the dispatcher. Emit
// after Close is a no-op.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.stop)
	d.wg.Wait()
}

// Dropped counts low-severity events shed while the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.shedCount.Load()
}

// Filtered counts events below MinSeverity.
func (d *Dispatcher) Filtered() uint64 {
	if d == nil {
		return 0
	}
	return d.filteredCount.Load()
}
