package xagent

import (
	"context"
	"fmt"
)

// State is the lifecycle state an agent's tick loop dispatches on.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no transition may leave s.
func (s State) Terminal() bool { return s == StateStopped || s == StateError }

// Behavior is the capability set a concrete agent implements. The tick loop
// depends only on this interface.
//
// Every hook is called from the agent's own goroutine, so implementations may
// keep private mission state without locking. The ctx passed in carries the
// agent (AgentFromContext), its logger and its clock.
type Behavior interface {
	// Perceive returns the agent's read of its world or internal state.
	Perceive(ctx context.Context) (observation any, err error)
	// Decide maps an observation to an intended action; it may send messages.
	Decide(ctx context.Context, observation any) (action any, err error)
	// Act executes the action. One call is the atomic unit of work per tick.
	Act(ctx context.Context, action any) error
	// HandlePrivate receives every non-control message.
	HandlePrivate(ctx context.Context, msg Message) error
	// HandleResume runs on RESUME and returns the state to enter.
	HandleResume(ctx context.Context, cmd Command) (State, error)
}

// CommandHandler is implemented by behaviors that understand domain commands
// beyond the generic vocabulary. Return ErrUnrecognizedCommand for unknown tokens.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd Command) error
}

// CommandLister advertises domain commands in HELP reports.
type CommandLister interface {
	Commands() []string
}

// Hooks supplies the default HandlePrivate (ignore) and HandleResume (enter
// RUNNING). Embed it in behaviors that need no special handling.
type Hooks struct{}

func (Hooks) HandlePrivate(context.Context, Message) error { return nil }

func (Hooks) HandleResume(context.Context, Command) (State, error) { return StateRunning, nil }
