package xagent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Bus is the central Facade routing Messages into per-identity mailboxes held by a Store.
// It is the only object shared across agents.
type Bus struct {
	store        Store
	codec        Codec
	clock        xclock.Clock
	logger       *xlog.Logger
	source       string
	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer
	metrics      *busMetrics
	closed       atomic.Bool
	closeOnce    sync.Once
}

// busMetrics uses lock-free atomics for telemetry.
type busMetrics struct {
	publishCount atomic.Uint64
	pollCount    atomic.Uint64
	emptyCount   atomic.Uint64
	rejectCount  atomic.Uint64
	errorCount   atomic.Uint64
	publishNs    atomic.Int64
}

// Codec returns the configured codec (Strategy).
func (b *Bus) Codec() Codec { return b.codec }

// Clock returns the clock used for timestamps.
func (b *Bus) Clock() xclock.Clock { return b.clock }

// Logger returns the bus logger.
func (b *Bus) Logger() *xlog.Logger { return b.logger }

// Publish appends msg to the mailbox named by msg.Target().
// With the default unbounded in-memory store it never blocks and never fails.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if msg.IsZero() {
		return &ValidationError{Field: "message", Reason: "was not built by NewMessage"}
	}

	start := b.clock.Now()
	err := b.store.Push(ctx, msg.Target(), msg)
	duration := b.clock.Since(start)

	switch {
	case err == nil:
		b.metrics.publishCount.Add(1)
		b.recordPublishTime(duration.Nanoseconds())
		b.notify(Event{Type: Published, Mailbox: msg.Target(), MessageType: msg.Type(), Duration: duration})
	case errors.Is(err, ErrMailboxFull):
		b.metrics.rejectCount.Add(1)
		b.notify(Event{Type: Rejected, Mailbox: msg.Target(), MessageType: msg.Type(), Err: err})
	default:
		b.metrics.errorCount.Add(1)
		b.notify(Event{Type: Error, Mailbox: msg.Target(), MessageType: msg.Type(), Err: err})
	}
	return err
}

// PollFor removes and returns the oldest message for identity.
// ok is false when the mailbox is absent or empty; nothing is created in that case.
func (b *Bus) PollFor(ctx context.Context, identity string) (Message, bool, error) {
	if b.closed.Load() {
		return Message{}, false, ErrBusClosed
	}
	if identity == "" {
		return Message{}, false, ErrInvalidIdentity
	}

	msg, ok, err := b.store.Pop(ctx, identity)
	if err != nil {
		b.metrics.errorCount.Add(1)
		b.notify(Event{Type: Error, Mailbox: identity, Err: err})
		return Message{}, false, err
	}
	if !ok {
		b.metrics.emptyCount.Add(1)
		return Message{}, false, nil
	}
	b.metrics.pollCount.Add(1)
	b.notify(Event{Type: Polled, Mailbox: identity, MessageType: msg.Type()})
	return msg, true, nil
}

// PublishCommand builds a control message carrying command as a bare string
// payload and publishes it to target. The message context carries a fresh
// "command_id" so replies can be correlated.
func (b *Bus) PublishCommand(ctx context.Context, target, command string) error {
	msg, err := NewMessage(
		ControlType,
		b.source,
		target,
		FormatTimestamp(b.clock.Now()),
		command,
		StatusPending,
		map[string]any{"command_id": uuid.NewString()},
	)
	if err != nil {
		return err
	}
	return b.Publish(ctx, msg)
}

// Pending returns the depth of identity's mailbox.
func (b *Bus) Pending(ctx context.Context, identity string) (int, error) {
	if b.closed.Load() {
		return 0, ErrBusClosed
	}
	return b.store.Len(ctx, identity)
}

// GetMetrics returns current bus metrics.
func (b *Bus) GetMetrics() Metrics {
	m := Metrics{
		Published:           b.metrics.publishCount.Load(),
		Polled:              b.metrics.pollCount.Load(),
		Empty:               b.metrics.emptyCount.Load(),
		Rejected:            b.metrics.rejectCount.Load(),
		Errors:              b.metrics.errorCount.Load(),
		AvgPublishLatencyMs: float64(b.metrics.publishNs.Load()) / 1e6,
	}
	if b.observerPool != nil {
		m.EventsDropped = b.observerPool.Stats().Dropped
	}
	return m
}

// Health checks bus health for probes.
func (b *Bus) Health(ctx context.Context) HealthStatus {
	if b.closed.Load() {
		return HealthStatus{
			Status:    "unhealthy",
			Timestamp: b.clock.Now(),
			Message:   "bus is closed",
		}
	}

	metrics := b.GetMetrics()
	status := "healthy"

	// Degraded if more than 5% of publishes failed or were rejected.
	attempts := metrics.Published + metrics.Rejected + metrics.Errors
	if attempts > 0 {
		failRate := float64(metrics.Rejected+metrics.Errors) / float64(attempts)
		if failRate > 0.05 {
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:    status,
		Metrics:   metrics,
		Timestamp: b.clock.Now(),
	}
}

// Close gracefully shuts down the bus. Idempotent.
func (b *Bus) Close(ctx context.Context) error {
	var closeErr error

	b.closeOnce.Do(func() {
		b.closed.Store(true)

		if b.observerPool != nil {
			if err := b.observerPool.Close(5 * time.Second); err != nil {
				b.logger.Warn().Err(err).Msg("xagent: observer pool shutdown timeout")
				closeErr = err
			}
		}

		if err := b.store.Close(ctx); err != nil {
			b.logger.Error().Err(err).Msg("xagent: store close failed")
			closeErr = err
		}
	})

	return closeErr
}

// AddObserver registers an observer (thread-safe).
func (b *Bus) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	b.observers = append(b.observers, obs)
	b.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (b *Bus) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	defer b.observersMu.Unlock()

	for i, o := range b.observers {
		if o == obs {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			break
		}
	}
}

// notify dispatches e to observers, through the pool when one is configured.
func (b *Bus) notify(e Event) {
	if b.closed.Load() {
		return
	}

	b.observersMu.RLock()
	if len(b.observers) == 0 {
		b.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.observersMu.RUnlock()

	if b.observerPool != nil {
		b.observerPool.Notify(e, observers)
		return
	}
	for _, o := range observers {
		o.OnEvent(e)
	}
}

// recordPublishTime keeps an exponential moving average of store push latency.
func (b *Bus) recordPublishTime(ns int64) {
	const alpha = 0.2
	current := b.metrics.publishNs.Load()
	if current == 0 {
		b.metrics.publishNs.Store(ns)
		return
	}
	newAvg := int64(float64(ns)*alpha + float64(current)*(1-alpha))
	b.metrics.publishNs.Store(newAvg)
}
