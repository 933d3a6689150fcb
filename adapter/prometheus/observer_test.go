package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xagent/adapter/memory"
)

func TestObserver_CountsEvents(t *testing.T) {
	reg := prom.NewRegistry()
	o, err := New(reg, "test")
	require.NoError(t, err)

	o.OnEvent(xagent.Event{Type: xagent.Published, Duration: time.Millisecond})
	o.OnEvent(xagent.Event{Type: xagent.Published, Duration: time.Millisecond})
	o.OnEvent(xagent.Event{Type: xagent.CommandDone, Agent: "a", Command: "STOP"})
	o.OnEvent(xagent.Event{Type: xagent.TickFailed, Agent: "a"})

	assert.Equal(t, 2.0, testutil.ToFloat64(o.events.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.commands.WithLabelValues("a", "STOP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.tickFailures.WithLabelValues("a")))
	assert.Equal(t, 1, testutil.CollectAndCount(o.publishDuration))
}

func TestObserver_StateGauge(t *testing.T) {
	o, err := New(prom.NewRegistry(), "")
	require.NoError(t, err)

	o.OnEvent(xagent.Event{Type: xagent.StateChanged, Agent: "a", From: xagent.StateIdle, To: xagent.StateRunning})
	assert.Equal(t, 1.0, testutil.ToFloat64(o.state.WithLabelValues("a", "RUNNING")))
	assert.Equal(t, 0.0, testutil.ToFloat64(o.state.WithLabelValues("a", "IDLE")))

	o.OnEvent(xagent.Event{Type: xagent.StateChanged, Agent: "a", From: xagent.StateRunning, To: xagent.StateStopped})
	assert.Equal(t, 0.0, testutil.ToFloat64(o.state.WithLabelValues("a", "RUNNING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.state.WithLabelValues("a", "STOPPED")))
}

func TestObserver_DuplicateRegistration(t *testing.T) {
	reg := prom.NewRegistry()
	_, err := New(reg, "dup")
	require.NoError(t, err)
	_, err = New(reg, "dup")
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(reg, "dup") })
}

func TestObserver_OnBus(t *testing.T) {
	o, err := New(prom.NewRegistry(), "bus")
	require.NoError(t, err)

	bus, err := memory.New(memory.Config{}, memory.WithObserver(o))
	require.NoError(t, err)
	defer bus.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, bus.PublishCommand(ctx, "a", "HELP"))
	_, ok, err := bus.PollFor(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.events.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.events.WithLabelValues("polled")))
}
