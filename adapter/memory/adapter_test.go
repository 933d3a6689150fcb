package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xagent"
)

func testMessage(t testing.TB, target string) xagent.Message {
	t.Helper()
	msg, err := xagent.NewMessage("note", "tester", target, "2024-01-01T00:00:00Z", "hi", xagent.StatusPending, map[string]any{})
	require.NoError(t, err)
	return msg
}

func TestStore_PushAfterCloseFails(t *testing.T) {
	s := NewStore(Config{})
	ctx := context.Background()
	require.NoError(t, s.Push(ctx, "a1", testMessage(t, "a1")))

	// A mailbox handle taken before Close must not accept messages after it.
	mb := s.ensure("a1")
	require.NoError(t, s.Close(ctx))
	assert.Error(t, s.Push(ctx, "a1", testMessage(t, "a1")))
	assert.Len(t, mb.queue, 1)

	_, _, err := s.Pop(ctx, "a1")
	assert.Error(t, err)
}

func TestStore_ConcurrentPushAndClose(t *testing.T) {
	s := NewStore(Config{})
	ctx := context.Background()
	msg := testMessage(t, "a1")

	var (
		accepted atomic.Uint64
		wg       sync.WaitGroup
		start    = make(chan struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				if s.Push(ctx, "a1", msg) == nil {
					accepted.Add(1)
				}
			}
		}()
	}
	close(start)
	require.NoError(t, s.Close(ctx))
	wg.Wait()

	// Every accepted push was counted before Close; none slipped in after.
	assert.Equal(t, accepted.Load(), s.Stats().Pushed)
	assert.Error(t, s.Push(ctx, "a1", msg))
}

func TestStore_Overflow(t *testing.T) {
	ctx := context.Background()

	reject := NewStore(Config{Capacity: 1})
	require.NoError(t, reject.Push(ctx, "a1", testMessage(t, "a1")))
	assert.ErrorIs(t, reject.Push(ctx, "a1", testMessage(t, "a1")), xagent.ErrMailboxFull)
	assert.Equal(t, uint64(1), reject.Stats().Refused)

	drop := NewStore(Config{Capacity: 1, Overflow: OverflowDropOldest})
	require.NoError(t, drop.Push(ctx, "a1", testMessage(t, "a1")))
	require.NoError(t, drop.Push(ctx, "a1", testMessage(t, "a1")))
	n, err := drop.Len(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), drop.Stats().Evicted)
}

func TestConfigFromMap(t *testing.T) {
	c := ConfigFromMap(map[string]any{"capacity": 16.0, "overflow": OverflowDropOldest})
	assert.Equal(t, Config{Capacity: 16, Overflow: OverflowDropOldest}, c)
	assert.NoError(t, c.Validate())

	assert.Equal(t, OverflowReject, ConfigFromMap(nil).Overflow)
	assert.Error(t, Config{Overflow: "spill"}.Validate())
}
