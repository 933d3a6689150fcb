package xagent_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xagent/adapter/memory"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"
)

var (
	testLoggerOnce sync.Once
	testLogger     *xlog.Logger
)

func quietLogger() *xlog.Logger {
	testLoggerOnce.Do(func() {
		testLogger = zerolog.Use(zerolog.Config{
			MinLevel:          xlog.LevelError,
			Console:           false,
			ConsoleTimeFormat: time.RFC3339Nano,
		}).With(xlog.Str("app", "xagent-test"))
	})
	return testLogger
}

// eventLog is a synchronous observer collecting every event.
type eventLog struct {
	mu     sync.Mutex
	events []xagent.Event
}

func (l *eventLog) OnEvent(e xagent.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) ofType(typ xagent.EventType) []xagent.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []xagent.Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func newTestBus(t *testing.T, cfg memory.Config) (*xagent.Bus, *memory.Store, *eventLog) {
	t.Helper()
	store := memory.NewStore(cfg)
	events := &eventLog{}
	bus, err := xagent.NewBusBuilder().
		WithStoreInstance(store).
		WithLogger(quietLogger()).
		WithObserver(events).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close(context.Background()) })
	return bus, store, events
}

func mustMessage(t *testing.T, typ, source, target string, payload any, ctx map[string]any) xagent.Message {
	t.Helper()
	if ctx == nil {
		ctx = map[string]any{}
	}
	msg, err := xagent.NewMessage(typ, source, target, ts, payload, xagent.StatusPending, ctx)
	require.NoError(t, err)
	return msg
}

func memoryConfig() memory.Config { return memory.Config{} }
