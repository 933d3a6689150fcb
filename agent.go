package xagent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DefaultTickInterval is the RUNNING suspension between two cycles.
const DefaultTickInterval = 100 * time.Millisecond

// Agent owns one tick loop dispatching on its current State.
// Create it with NewAgent and drive it with Run, usually through a Group.
type Agent struct {
	name     string
	id       int
	behavior Behavior
	bus      MessageBus

	tickInterval time.Duration
	idleInterval time.Duration
	logger       *xlog.Logger
	clock        xclock.Clock
	middlewares  []Middleware
	handler      Handler

	state   atomic.Int32
	running atomic.Bool
	started atomic.Bool
	sent    atomic.Uint64
	cycles  atomic.Uint64

	failMu  sync.Mutex
	failure error
	done    chan struct{}
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithTickInterval sets the RUNNING suspension (default 100ms).
func WithTickInterval(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.tickInterval = d
		}
	}
}

// WithIdleInterval sets how long an IDLE agent waits after finding its
// mailbox empty (default: the tick interval).
func WithIdleInterval(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.idleInterval = d
		}
	}
}

func WithLogger(l *xlog.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithClock(c xclock.Clock) AgentOption {
	return func(a *Agent) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithMiddleware wraps per-message handling (control and private alike).
func WithMiddleware(mw ...Middleware) AgentOption {
	return func(a *Agent) { a.middlewares = append(a.middlewares, mw...) }
}

// NewAgent binds behavior to the mailbox called name on bus. The agent starts IDLE.
// Logger and clock default to the bus's when bus is a *Bus.
func NewAgent(name string, id int, bus MessageBus, behavior Behavior, opts ...AgentOption) *Agent {
	a := &Agent{
		name:         name,
		id:           id,
		behavior:     behavior,
		bus:          bus,
		tickInterval: DefaultTickInterval,
		done:         make(chan struct{}),
	}
	if b, ok := bus.(*Bus); ok {
		a.logger = b.Logger()
		a.clock = b.Clock()
	}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	if a.idleInterval <= 0 {
		a.idleInterval = a.tickInterval
	}
	if a.clock == nil {
		a.clock = xclock.Default()
	}
	if a.logger == nil {
		a.logger = xlog.Default()
	}
	a.logger = a.logger.With(xlog.Str("agent", name), xlog.Str("agent_id", strconv.Itoa(id)))

	// Panic recovery always wraps first so a bad message never kills the loop.
	a.handler = Chain(a.dispatch, append([]Middleware{RecoveryMiddleware()}, a.middlewares...)...)
	a.state.Store(int32(StateIdle))
	return a
}

func (a *Agent) Name() string         { return a.name }
func (a *Agent) ID() int              { return a.id }
func (a *Agent) State() State         { return State(a.state.Load()) }
func (a *Agent) Logger() *xlog.Logger { return a.logger }

// Sent returns how many messages the agent has published.
func (a *Agent) Sent() uint64 { return a.sent.Load() }

// Cycles returns how many perceive→decide→act cycles completed.
func (a *Agent) Cycles() uint64 { return a.cycles.Load() }

// Done is closed when Run returns.
func (a *Agent) Done() <-chan struct{} { return a.done }

// Err returns the cause that drove the agent into ERROR, if any.
func (a *Agent) Err() error {
	a.failMu.Lock()
	defer a.failMu.Unlock()
	return a.failure
}

// Transition moves the agent to state to. Terminal states are never left;
// the call reports whether the agent is in state to afterwards.
// Safe to call from any goroutine; the tick loop observes it at the next boundary.
func (a *Agent) Transition(to State) bool {
	for {
		cur := a.state.Load()
		from := State(cur)
		if from == to {
			return true
		}
		if from.Terminal() {
			return false
		}
		if a.state.CompareAndSwap(cur, int32(to)) {
			a.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("state changed")
			a.notify(Event{Type: StateChanged, From: from, To: to})
			return true
		}
	}
}

// Stop requests STOPPED; the loop exits after the current tick.
func (a *Agent) Stop() { a.Transition(StateStopped) }

// NewMessage builds an outbound PENDING message from this agent.
func (a *Agent) NewMessage(typ, target string, payload any, context map[string]any) (Message, error) {
	if context == nil {
		context = map[string]any{}
	}
	return NewMessage(typ, a.name, target, FormatTimestamp(a.clock.Now()), payload, StatusPending, context)
}

// Send publishes msg on the bus.
func (a *Agent) Send(ctx context.Context, msg Message) error {
	if err := a.bus.Publish(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Type(), msg.Target(), err)
	}
	a.sent.Add(1)
	return nil
}

// Emit builds and sends a message in one call.
func (a *Agent) Emit(ctx context.Context, typ, target string, payload any, context map[string]any) error {
	msg, err := a.NewMessage(typ, target, payload, context)
	if err != nil {
		return err
	}
	return a.Send(ctx, msg)
}

// Run drives the tick loop until the agent stops, fails, or ctx is cancelled.
// It returns nil on STOP or cancellation and the failure cause on ERROR.
func (a *Agent) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAgentRunning
	}
	defer close(a.done)

	ctx = InjectAll(ctx, a, a.logger, a.clock)
	a.running.Store(true)
	a.logger.Info().Str("state", a.State().String()).Msg("agent started")

	for a.running.Load() {
		if ctx.Err() != nil {
			a.logger.Info().Str("state", a.State().String()).Msg("agent cancelled")
			a.notify(Event{Type: AgentFinished, To: a.State(), Err: ctx.Err()})
			return nil
		}
		a.tick(ctx)
	}

	a.notify(Event{Type: AgentFinished, To: a.State(), Err: a.Err()})
	return a.Err()
}

// Tick runs one iteration of the state dispatch outside Run, e.g. from a
// custom driver. Errors and panics are caught, logged and reported as TickFailed.
func (a *Agent) Tick(ctx context.Context) {
	if cur, ok := AgentFromContext(ctx); !ok || cur != a {
		ctx = InjectAll(ctx, a, a.logger, a.clock)
	}
	a.tick(ctx)
}

func (a *Agent) tick(ctx context.Context) {
	if err := a.safeTick(ctx); err != nil {
		a.logger.Warn().Err(err).Str("state", a.State().String()).Msg("tick failed")
		a.notify(Event{Type: TickFailed, Err: err})
	}
}

func (a *Agent) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	switch s := a.State(); s {
	case StateIdle:
		return a.onIdle(ctx)
	case StateRunning:
		return a.onRunning(ctx)
	case StateStopped:
		return a.onStopped()
	case StateError:
		return a.onError(nil)
	default:
		return a.onError(fmt.Errorf("%w: %s", ErrUnhandledState, s))
	}
}

// onIdle handles at most one message, or waits when the mailbox is empty.
func (a *Agent) onIdle(ctx context.Context) error {
	msg, ok, err := a.bus.PollFor(ctx, a.name)
	if err != nil {
		a.sleep(ctx, a.idleInterval)
		return fmt.Errorf("poll: %w", err)
	}
	if !ok {
		a.sleep(ctx, a.idleInterval)
		return nil
	}
	a.handle(ctx, msg)
	return nil
}

// onRunning drains the mailbox so control commands apply before the cycle,
// runs exactly one cycle if still RUNNING, then suspends for the tick interval.
func (a *Agent) onRunning(ctx context.Context) error {
	defer func() {
		if a.State() == StateRunning {
			a.sleep(ctx, a.tickInterval)
		}
	}()

	if err := a.drain(ctx); err != nil {
		return err
	}
	if a.State() != StateRunning {
		return nil
	}
	return a.cycle(ctx)
}

func (a *Agent) onStopped() error {
	a.logger.Info().Msg("agent stopped")
	a.running.Store(false)
	return nil
}

// onError is terminal: no automatic recovery is attempted.
func (a *Agent) onError(cause error) error {
	if cause != nil {
		a.setFailure(cause)
		a.Transition(StateError)
	}
	if a.Err() == nil {
		a.setFailure(errors.New("xagent: agent entered ERROR state"))
	}
	a.logger.Error().Err(a.Err()).Msg("agent error")
	a.running.Store(false)
	return nil
}

// drain handles the messages queued when the tick began; later arrivals wait
// for the next tick so a chatty peer cannot starve the cycle.
func (a *Agent) drain(ctx context.Context) error {
	n, err := a.bus.Pending(ctx, a.name)
	if err != nil {
		return fmt.Errorf("pending: %w", err)
	}
	for i := 0; i < n; i++ {
		msg, ok, err := a.bus.PollFor(ctx, a.name)
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		if !ok {
			return nil
		}
		a.handle(ctx, msg)
	}
	return nil
}

func (a *Agent) cycle(ctx context.Context) error {
	observation, err := a.behavior.Perceive(ctx)
	if err != nil {
		return fmt.Errorf("perceive: %w", err)
	}
	action, err := a.behavior.Decide(ctx, observation)
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}
	if err := a.behavior.Act(ctx, action); err != nil {
		return fmt.Errorf("act: %w", err)
	}
	a.cycles.Add(1)
	return nil
}

// handle runs one message through the middleware chain. Failures are logged
// and never abort the tick.
func (a *Agent) handle(ctx context.Context, msg Message) {
	if err := a.handler(ctx, msg); err != nil {
		a.logger.Warn().
			Err(err).
			Str("type", msg.Type()).
			Str("source", msg.Source()).
			Msg("message handling failed")
	}
}

// dispatch classifies msg as control or private.
func (a *Agent) dispatch(ctx context.Context, msg Message) error {
	if msg.IsControl() {
		return a.handleControl(ctx, msg)
	}
	return a.behavior.HandlePrivate(ctx, msg)
}

func (a *Agent) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (a *Agent) setFailure(err error) {
	a.failMu.Lock()
	a.failure = err
	a.failMu.Unlock()
}

// eventSink is satisfied by *Bus; other MessageBus implementations simply get no agent events.
type eventSink interface {
	notify(e Event)
}

func (a *Agent) notify(e Event) {
	if s, ok := a.bus.(eventSink); ok {
		e.Agent = a.name
		s.notify(e)
	}
}
