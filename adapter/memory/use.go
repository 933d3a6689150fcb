package memory

import (
	"fmt"

	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Use builds a Bus over the in-memory store and sets it as the default.
// Mirrors redislist.Use and the xlog "Use" pattern: explicit construction with global install.
//
// Example:
//
//	bus := memory.Use(memory.Config{Capacity: 1024, Overflow: memory.OverflowDropOldest},
//	    memory.WithLogger(logger),
//	    memory.WithObserver(observer),
//	)
func Use(cfg Config, opts ...Option) *xagent.Bus {
	bus, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}
	xagent.SetDefault(bus)
	return bus
}

// New builds a Bus over the in-memory store without installing it globally.
func New(cfg Config, opts ...Option) (*xagent.Bus, error) {
	bb := xagent.NewBusBuilder().
		WithStore(StoreName, cfg.toMap())
	for _, o := range opts {
		if o != nil {
			o(bb)
		}
	}
	return bb.Build()
}

// toMap converts Config to the generic map expected by the store factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"capacity": c.Capacity,
		"overflow": c.Overflow,
	}
}

// Option configures the xagent.Bus when calling Use.
type Option func(*xagent.BusBuilder)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xagent.BusBuilder) { b.WithLogger(l) }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(b *xagent.BusBuilder) { b.WithClock(c) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...xagent.Observer) Option {
	return func(b *xagent.BusBuilder) { b.WithObserver(obs...) }
}

// WithObserverPool configures async observer pool for non-blocking notifications.
func WithObserverPool(workers, bufferSize int) Option {
	return func(b *xagent.BusBuilder) { b.WithObserverPool(workers, bufferSize) }
}

// WithCommandSource sets the source identity stamped on PublishCommand messages.
func WithCommandSource(source string) Option {
	return func(b *xagent.BusBuilder) { b.WithCommandSource(source) }
}
