// Package prometheus exports xagent bus and agent events as Prometheus metrics.
//
// Attach the Observer to a bus with BusBuilder.WithObserver (or AddObserver)
// and serve the registry with promhttp.
package prometheus

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/trickstertwo/xagent"
)

// Observer implements xagent.Observer by updating Prometheus collectors.
type Observer struct {
	events          *prom.CounterVec
	publishDuration prom.Histogram
	commands        *prom.CounterVec
	tickFailures    *prom.CounterVec
	state           *prom.GaugeVec

	mu     sync.Mutex
	states map[string]xagent.State
}

var _ xagent.Observer = (*Observer)(nil)

var allStates = []xagent.State{xagent.StateIdle, xagent.StateRunning, xagent.StateStopped, xagent.StateError}

// New creates the collectors under namespace and registers them on reg.
// A nil reg selects prometheus.DefaultRegisterer.
func New(reg prom.Registerer, namespace string) (*Observer, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "xagent"
	}

	o := &Observer{
		events: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of bus and agent events by type",
			},
			[]string{"event"},
		),
		publishDuration: prom.NewHistogram(
			prom.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Mailbox store push duration in seconds",
				Buckets:   prom.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		commands: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of control commands handled",
			},
			[]string{"agent", "command"},
		),
		tickFailures: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: namespace,
				Name:      "tick_failures_total",
				Help:      "Total number of failed agent ticks",
			},
			[]string{"agent"},
		),
		state: prom.NewGaugeVec(
			prom.GaugeOpts{
				Namespace: namespace,
				Name:      "agent_state",
				Help:      "1 for the state each agent is currently in, 0 otherwise",
			},
			[]string{"agent", "state"},
		),
		states: make(map[string]xagent.State),
	}

	for _, c := range []prom.Collector{o.events, o.publishDuration, o.commands, o.tickFailures, o.state} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prom.Registerer, namespace string) *Observer {
	o, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return o
}

func (o *Observer) OnEvent(e xagent.Event) {
	o.events.WithLabelValues(string(e.Type)).Inc()

	switch e.Type {
	case xagent.Published:
		o.publishDuration.Observe(e.Duration.Seconds())
	case xagent.CommandDone:
		o.commands.WithLabelValues(e.Agent, e.Command).Inc()
	case xagent.TickFailed:
		o.tickFailures.WithLabelValues(e.Agent).Inc()
	case xagent.StateChanged, xagent.AgentFinished:
		o.setState(e.Agent, e.To)
	}
}

// setState keeps exactly one state series at 1 per agent.
func (o *Observer) setState(agent string, s xagent.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, seen := o.states[agent]; !seen {
		for _, st := range allStates {
			o.state.WithLabelValues(agent, st.String()).Set(0)
		}
	} else if prev := o.states[agent]; prev != s {
		o.state.WithLabelValues(agent, prev.String()).Set(0)
	}
	o.states[agent] = s
	o.state.WithLabelValues(agent, s.String()).Set(1)
}
