package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTransitionWait is how long a transition record waits for buffer room
// when Config.TransitionWait is zero.
const DefaultTransitionWait = 100 * time.Millisecond

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops request records instead of blocking the request path
	// when the buffer is full.
	DropIfFull bool
	// TransitionWait bounds how long a transition record waits for room before
	// it is dropped. Transitions are never dropped immediately.
	TransitionWait time.Duration
}

// Dispatcher moves records off the caller's goroutine onto a single delivery
// goroutine, so a slow sink never delays a request. A nil *Dispatcher is valid
// and discards everything.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event
	done chan struct{}
	wg   sync.WaitGroup

	droppedRequests    atomic.Uint64
	droppedTransitions atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.TransitionWait <= 0 {
		cfg.TransitionWait = DefaultTransitionWait
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer d.wg.Done()
	ctx := context.Background()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(ctx, event)
		case <-d.done:
			// Drain what was queued before Close.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(ctx, event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues event and stamps it when it carries no timestamp.
//
// A request record waits for room unless DropIfFull is set, in which case a
// full buffer drops it. A transition record waits at most TransitionWait, or
// until ctx ends, before it is dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Fast path: room in the buffer.
	select {
	case d.ch <- event:
		return
	default:
	}

	if event.Kind == KindTransition {
		timer := time.NewTimer(d.cfg.TransitionWait)
		defer timer.Stop()
		select {
		case d.ch <- event:
		case <-timer.C:
			d.droppedTransitions.Add(1)
		case <-ctx.Done():
			d.droppedTransitions.Add(1)
		case <-d.done:
		}
		return
	}

	if d.cfg.DropIfFull {
		d.droppedRequests.Add(1)
		return
	}
	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.droppedRequests.Add(1)
	case <-d.done:
	}
}

// Close stops accepting events and blocks until the queued ones are delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many records of any kind were discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.droppedRequests.Load() + d.droppedTransitions.Load()
}

// DroppedTransitions returns how many transition records were discarded.
func (d *Dispatcher) DroppedTransitions() uint64 {
	if d == nil {
		return 0
	}
	return d.droppedTransitions.Load()
}
