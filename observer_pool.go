package xagent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ObserverPool dispatches events to observers off the publish/poll path.
//
// Events are sharded by agent (or mailbox for bus events) so every worker owns
// a disjoint set of keys: events about one agent reach observers in the order
// they were raised, which keeps per-agent state gauges consistent. When a
// shard's buffer is full the event is dropped and counted.
type ObserverPool struct {
	shards    []chan *Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
	dropped   atomic.Uint64
	processed atomic.Uint64
	panics    atomic.Uint64
}

// NewObserverPool starts workers goroutines (default 4) sharing bufferSize
// queued events (default 1000) between them.
func NewObserverPool(ctx context.Context, workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = 4
	}
	if bufferSize < 1 {
		bufferSize = 1000
	}
	perShard := bufferSize / workers
	if perShard < 1 {
		perShard = 1
	}

	poolCtx, cancel := context.WithCancel(ctx)
	op := &ObserverPool{
		shards: make([]chan *Event, workers),
		ctx:    poolCtx,
		cancel: cancel,
	}
	for i := range op.shards {
		op.shards[i] = make(chan *Event, perShard)
		op.wg.Add(1)
		go op.worker(op.shards[i])
	}
	return op
}

// Notify queues e for the observers captured at call time. Never blocks.
func (op *ObserverPool) Notify(e Event, observers []Observer) {
	if len(observers) == 0 || op.closed.Load() {
		return
	}
	e.observers = make([]Observer, len(observers))
	copy(e.observers, observers)

	select {
	case op.shardFor(e) <- &e:
	default:
		op.dropped.Add(1)
	}
}

func (op *ObserverPool) shardFor(e Event) chan *Event {
	if len(op.shards) == 1 {
		return op.shards[0]
	}
	key := e.Agent
	if key == "" {
		key = e.Mailbox
	}
	return op.shards[xxhash.Sum64String(key)%uint64(len(op.shards))]
}

func (op *ObserverPool) worker(ch chan *Event) {
	defer op.wg.Done()
	for {
		select {
		case <-op.ctx.Done():
			// Drain what was queued before Close.
			for {
				select {
				case e := <-ch:
					op.dispatch(e)
				default:
					return
				}
			}
		case e := <-ch:
			op.dispatch(e)
		}
	}
}

func (op *ObserverPool) dispatch(e *Event) {
	if e == nil {
		return
	}
	for _, obs := range e.observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					op.panics.Add(1)
				}
			}()
			obs.OnEvent(*e)
		}()
	}
	op.processed.Add(1)
}

// Close stops accepting events and waits up to timeout for queued ones to be
// delivered.
func (op *ObserverPool) Close(timeout time.Duration) error {
	if op.closed.Swap(true) {
		return nil
	}
	op.cancel()

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrObserverPoolShutdownTimeout
	}
}

// Stats returns current pool statistics.
func (op *ObserverPool) Stats() PoolStats {
	s := PoolStats{
		Dropped:   op.dropped.Load(),
		Processed: op.processed.Load(),
		Workers:   len(op.shards),
		Panics:    op.panics.Load(),
	}
	for _, ch := range op.shards {
		s.ActiveEvents += len(ch)
		s.BufferSize += cap(ch)
	}
	return s
}
