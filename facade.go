package xagent

import (
	"context"
	"sync"
)

var (
	defaultBus   *Bus
	defaultBusMu sync.Mutex
)

// Default returns the process-wide Bus installed by SetDefault (or by an
// adapter's Use helper). It panics when none has been installed.
func Default() *Bus {
	defaultBusMu.Lock()
	defer defaultBusMu.Unlock()

	if defaultBus == nil {
		panic("xagent: no default bus installed; call SetDefault or an adapter's Use")
	}
	return defaultBus
}

// SetDefault replaces the process-wide default Bus.
func SetDefault(b *Bus) {
	if b == nil {
		panic("xagent: SetDefault called with nil Bus")
	}
	defaultBusMu.Lock()
	defaultBus = b
	defaultBusMu.Unlock()
}

// Publish is the Facade using the default bus.
func Publish(ctx context.Context, msg Message) error {
	return Default().Publish(ctx, msg)
}

// PollFor is the Facade using the default bus.
func PollFor(ctx context.Context, identity string) (Message, bool, error) {
	return Default().PollFor(ctx, identity)
}

// PublishCommand is the Facade using the default bus.
func PublishCommand(ctx context.Context, target, command string) error {
	return Default().PublishCommand(ctx, target, command)
}
