package xagent

import (
	"time"
)

// EventType enumerates lifecycle events for the Observer pattern.
type EventType string

const (
	Published     EventType = "published"
	Polled        EventType = "polled"
	Rejected      EventType = "rejected"
	StateChanged  EventType = "state_changed"
	CommandDone   EventType = "command"
	TickFailed    EventType = "tick_failed"
	AgentFinished EventType = "agent_finished"
	Error         EventType = "error"
)

// Event carries telemetry for observers.
type Event struct {
	Type EventType
	// Mailbox is the target identity for bus events.
	Mailbox string
	// Agent is the emitting agent name for agent events.
	Agent       string
	MessageType string
	Command     string
	From        State
	To          State
	Duration    time.Duration
	Err         error

	// Internal: attached for async dispatch
	observers []Observer
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped      uint64 // Events dropped due to full buffer
	Processed    uint64 // Events successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of dispatch goroutines
	BufferSize   int    // Channel capacity
	Panics       uint64 // Observer panics recovered by workers
}

// Metrics defines observable telemetry for the bus.
type Metrics struct {
	Published           uint64
	Polled              uint64
	Empty               uint64
	Rejected            uint64
	Errors              uint64
	EventsDropped       uint64
	AvgPublishLatencyMs float64
}

// HealthStatus indicates bus health for probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
