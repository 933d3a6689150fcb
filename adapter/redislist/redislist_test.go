package redislist

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xagent"
)

// newTestStore starts an in-process Redis and returns a store bound to it.
func newTestStore(t *testing.T, mutate func(*Config)) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := Defaults()
	cfg.Addr = mr.Addr()
	cfg.Prefix = "test"
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := NewStore(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, mr
}

func testMessage(t *testing.T, target string, payload any) xagent.Message {
	t.Helper()
	msg, err := xagent.NewMessage("note", "tester", target, "2024-01-01T00:00:00Z", payload, xagent.StatusPending, map[string]any{})
	require.NoError(t, err)
	return msg
}

func TestStore_FIFO(t *testing.T) {
	s, mr := newTestStore(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Push(ctx, "a1", testMessage(t, "a1", fmt.Sprintf("m%d", i))))
	}
	assert.True(t, mr.Exists("test:a1"))

	n, err := s.Len(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for i := 0; i < 3; i++ {
		msg, ok, err := s.Pop(ctx, "a1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("m%d", i), msg.Payload())
	}

	_, ok, err := s.Pop(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PopAbsentMailboxDoesNotCreate(t *testing.T) {
	s, mr := newTestStore(t, nil)
	ctx := context.Background()

	_, ok, err := s.Pop(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:ghost"))

	n, err := s.Len(ctx, "ghost")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_RoundTripPreservesFields(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()

	in, err := xagent.NewMessage("discovery.v1", "scout", "builder", "2024-05-06T07:08:09Z",
		map[string]any{"x": 3.0, "tags": []any{"ore"}}, xagent.StatusOK, map[string]any{"trace": "abc"})
	require.NoError(t, err)
	require.NoError(t, s.Push(ctx, "builder", in))

	out, ok, err := s.Pop(ctx, "builder")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.Record(), out.Record())
}

func TestStore_EmptyPayloadsSurvive(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()

	_, err := xagent.NewMessage("note", "tester", "a1", "2024-01-01T00:00:00Z", []int(nil), xagent.StatusPending, map[string]any{})
	require.Error(t, err, "a nil slice would encode as null and never decode")

	for _, payload := range []any{[]any{}, map[string]any{}, ""} {
		require.NoError(t, s.Push(ctx, "a1", testMessage(t, "a1", payload)))
		out, ok, err := s.Pop(ctx, "a1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, payload, out.Payload())
	}
}

func TestStore_CapacityRejects(t *testing.T) {
	s, _ := newTestStore(t, func(c *Config) { c.Capacity = 2 })
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, "a", testMessage(t, "a", "1")))
	require.NoError(t, s.Push(ctx, "a", testMessage(t, "a", "2")))
	err := s.Push(ctx, "a", testMessage(t, "a", "3"))
	require.ErrorIs(t, err, xagent.ErrMailboxFull)
	assert.Equal(t, uint64(1), s.Stats().Refused)

	n, err := s.Len(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_ClearsPrefixOnOpenAndClose(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := mr.Lpush("stale:old", "junk")
	require.NoError(t, err)
	require.NoError(t, mr.Set("other:key", "keep"))

	cfg := Defaults()
	cfg.Addr = mr.Addr()
	cfg.Prefix = "stale"
	s, err := NewStore(cfg, nil)
	require.NoError(t, err)
	assert.False(t, mr.Exists("stale:old"))

	require.NoError(t, s.Push(context.Background(), "a", testMessage(t, "a", "x")))
	require.NoError(t, s.Close(context.Background()))
	assert.False(t, mr.Exists("stale:a"))
	assert.True(t, mr.Exists("other:key"))

	// Idempotent
	require.NoError(t, s.Close(context.Background()))
}

func TestStore_CorruptEntryIsAnError(t *testing.T) {
	s, mr := newTestStore(t, nil)
	_, err := mr.Push("test:bad", "not json")
	require.NoError(t, err)

	_, ok, err := s.Pop(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.Stats().DecodeErrors)
}

func TestStore_ConcurrentProducers(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const producers, perProducer = 4, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				payload := map[string]any{"p": float64(p), "i": float64(i)}
				assert.NoError(t, s.Push(ctx, "sink", testMessage(t, "sink", payload)))
			}
		}(p)
	}
	wg.Wait()

	// Per-producer order must survive interleaving.
	last := map[float64]float64{}
	for k := 0; k < producers*perProducer; k++ {
		msg, ok, err := s.Pop(ctx, "sink")
		require.NoError(t, err)
		require.True(t, ok)
		body := msg.Payload().(map[string]any)
		p, i := body["p"].(float64), body["i"].(float64)
		if prev, seen := last[p]; seen {
			assert.Greater(t, i, prev)
		}
		last[p] = i
	}
}

func TestBus_OverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := Defaults()
	cfg.Addr = mr.Addr()

	bus, err := New(cfg)
	require.NoError(t, err)
	defer bus.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, bus.PublishCommand(ctx, "agent-1", "STOP"))

	msg, ok, err := bus.PollFor(ctx, "agent-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, msg.IsControl())
	assert.Equal(t, "STOP", msg.Payload())
	assert.Equal(t, xagent.DefaultCommandSource, msg.Source())
}

func TestConfigFromMap(t *testing.T) {
	c := ConfigFromMap(map[string]any{
		"addr":         "redis:6380",
		"prefix":       "p",
		"capacity":     float64(10),
		"dial_timeout": "750ms",
	})
	assert.Equal(t, "redis:6380", c.Addr)
	assert.Equal(t, "p", c.Prefix)
	assert.Equal(t, int64(10), c.Capacity)
	assert.Equal(t, 750*time.Millisecond, c.DialTimeout)
	require.NoError(t, c.Validate())

	c.Addr = ""
	assert.Error(t, c.Validate())
}

func TestNewStoreWithClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := Defaults()
	cfg.Prefix = "wrapped"
	s, err := NewStoreWithClient(client, cfg, xagent.JSONCodec{})
	require.NoError(t, err)
	defer s.Close(context.Background())

	require.NoError(t, s.Push(context.Background(), "x", testMessage(t, "x", "hi")))
	names, err := s.Mailboxes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names)
}
