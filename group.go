package xagent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group is the composition root: it owns a set of agents sharing one bus and
// runs each on its own goroutine.
type Group struct {
	mu     sync.RWMutex
	bus    MessageBus
	agents map[string]*Agent
	order  []string
}

// NewGroup returns an empty group bound to bus.
func NewGroup(bus MessageBus) *Group {
	return &Group{bus: bus, agents: make(map[string]*Agent)}
}

// Bus returns the shared bus.
func (g *Group) Bus() MessageBus { return g.bus }

// Add registers agents. Identities must be unique within the group.
func (g *Group) Add(agents ...*Agent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range agents {
		if a == nil {
			continue
		}
		if _, dup := g.agents[a.Name()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.Name())
		}
		g.agents[a.Name()] = a
		g.order = append(g.order, a.Name())
	}
	return nil
}

// Spawn builds an agent on the group's bus and registers it.
func (g *Group) Spawn(name string, id int, behavior Behavior, opts ...AgentOption) (*Agent, error) {
	a := NewAgent(name, id, g.bus, behavior, opts...)
	if err := g.Add(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Agent looks an agent up by identity.
func (g *Group) Agent(name string) (*Agent, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.agents[name]
	return a, ok
}

// Agents returns the registered agents in registration order.
func (g *Group) Agents() []*Agent {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Agent, 0, len(g.order))
	for _, n := range g.order {
		out = append(out, g.agents[n])
	}
	return out
}

// Names returns the registered identities sorted.
func (g *Group) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := append([]string(nil), g.order...)
	sort.Strings(out)
	return out
}

// Start moves every non-terminal agent to RUNNING.
func (g *Group) Start() {
	for _, a := range g.Agents() {
		a.Transition(StateRunning)
	}
}

// Broadcast sends command to every agent through the bus.
func (g *Group) Broadcast(ctx context.Context, command string) error {
	for _, a := range g.Agents() {
		if err := g.bus.PublishCommand(ctx, a.Name(), command); err != nil {
			return err
		}
	}
	return nil
}

// Run drives all agents concurrently and waits for every loop to exit.
// Cancel ctx to shut down; the first agent failure is returned but does not
// stop the others.
func (g *Group) Run(ctx context.Context) error {
	var eg errgroup.Group
	for _, a := range g.Agents() {
		eg.Go(func() error {
			if err := a.Run(ctx); err != nil {
				return fmt.Errorf("agent %s: %w", a.Name(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}
