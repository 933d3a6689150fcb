package redislist

import (
	"fmt"

	"github.com/trickstertwo/xagent"
)

// Adapter: Redis list mailbox Store (Strategy + Adapter patterns)

const StoreName = "redis"

func init() {
	if err := xagent.RegisterStore(StoreName, func(cfg map[string]any, codec xagent.Codec) (xagent.Store, error) {
		return NewStore(ConfigFromMap(cfg), codec)
	}); err != nil {
		panic(fmt.Errorf("xagent: failed to register store %q: %w", StoreName, err))
	}
}

// Use builds a Bus over Redis lists and sets it as the default Bus, then returns it.
// Mirrors xlog/xclock "Use" behavior: explicit construction and global install.
func Use(cfg Config, opts ...Option) *xagent.Bus {
	bus, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Errorf("redislist.Use: %w", err))
	}

	// Install as process-wide default (replaces any existing default).
	xagent.SetDefault(bus)
	return bus
}

// New builds a Bus over Redis lists without installing it globally.
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
