package xagent

import (
	"context"
)

// Handler processes a single message delivered to an agent.
type Handler func(ctx context.Context, msg Message) error

// Middleware composes processing concerns around a Handler.
type Middleware func(next Handler) Handler

// Store is the Strategy interface for mailbox storage.
// Implementations must keep each mailbox FIFO and serialize Push/Pop per mailbox.
type Store interface {
	// Push appends msg to the named mailbox, creating it if absent. It must not block.
	Push(ctx context.Context, mailbox string, msg Message) error
	// Pop removes the oldest message. ok is false when the mailbox is absent or empty;
	// an absent mailbox must not be created.
	Pop(ctx context.Context, mailbox string) (msg Message, ok bool, err error)
	// Len returns the current depth of the mailbox (0 if absent).
	Len(ctx context.Context, mailbox string) (int, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// Codec is the Strategy for encoding Messages for stores that hold bytes.
type Codec interface {
	Marshal(msg Message) ([]byte, error)
	Unmarshal(data []byte) (Message, error)
	Name() string
}

// Observer receives bus and agent lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// MessageBus is the surface agents and drivers use to exchange messages.
type MessageBus interface {
	Publish(ctx context.Context, msg Message) error
	PollFor(ctx context.Context, identity string) (Message, bool, error)
	PublishCommand(ctx context.Context, target, command string) error
	Pending(ctx context.Context, identity string) (int, error)
	Close(ctx context.Context) error
	GetMetrics() Metrics
	Health(ctx context.Context) HealthStatus
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}

var _ MessageBus = (*Bus)(nil)
var _ HealthChecker = (*Bus)(nil)
