package redislist

import (
	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Option configures the xagent.Bus construction when calling Use.
type Option func(*xagent.BusBuilder)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xagent.BusBuilder) { b.WithLogger(l) }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(b *xagent.BusBuilder) { b.WithClock(c) }
}

// WithCodec selects a codec by name (default: json).
func WithCodec(name string) Option {
	return func(b *xagent.BusBuilder) { b.WithCodec(name) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...xagent.Observer) Option {
	return func(b *xagent.BusBuilder) { b.WithObserver(obs...) }
}

// WithObserverPool configures async observer pool for non-blocking notifications.
func WithObserverPool(workers, bufferSize int) Option {
	return func(b *xagent.BusBuilder) { b.WithObserverPool(workers, bufferSize) }
}
