package xagent

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed Message at construction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s %s", e.Field, e.Reason)
}

type ErrUnknownStore struct{ name string }

func (e ErrUnknownStore) Error() string { return fmt.Sprintf("unknown mailbox store: %s", e.name) }

var (
	ErrBusClosed                   = errors.New("xagent: bus is closed")
	ErrNoStoreConfigured           = errors.New("xagent: no mailbox store configured")
	ErrMailboxFull                 = errors.New("xagent: mailbox is full")
	ErrInvalidIdentity             = errors.New("xagent: mailbox identity must not be empty")
	ErrObserverPoolShutdownTimeout = errors.New("xagent: observer pool shutdown timeout")

	// ErrUnrecognizedCommand is returned by CommandHandler implementations for
	// tokens they do not know; the agent logs it and carries on.
	ErrUnrecognizedCommand = errors.New("xagent: unrecognized command")
	// ErrUnhandledState marks a tick dispatched on a state outside the four known ones.
	ErrUnhandledState = errors.New("xagent: unhandled agent state")
	ErrDuplicateAgent = errors.New("xagent: duplicate agent name")
	ErrAgentRunning   = errors.New("xagent: agent already running")
)
