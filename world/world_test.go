package world

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_TerrainAndPlacedBlocks(t *testing.T) {
	ctx := context.Background()
	g := NewGrid(WithTerrain(func(x, _ int) int { return x }), WithPlayer(Position{1, 2, 3}))

	b, err := g.Block(ctx, Position{X: 5, Y: 5})
	require.NoError(t, err)
	assert.Equal(t, Stone, b.ID)
	b, err = g.Block(ctx, Position{X: 5, Y: 6})
	require.NoError(t, err)
	assert.Equal(t, Air, b.ID)

	h, err := g.Height(ctx, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, h)

	require.NoError(t, g.SetBlock(ctx, Position{X: 5, Y: 9}, Plank, 1))
	h, err = g.Height(ctx, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 9, h)

	b, err = g.Block(ctx, Position{X: 5, Y: 9})
	require.NoError(t, err)
	assert.Equal(t, Block{ID: Plank, Aux: 1}, b)
	assert.Equal(t, 1, g.Placed())

	p, err := g.PlayerPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, Position{1, 2, 3}, p)
}

func TestGrid_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGrid().Height(ctx, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

// flaky fails the first n calls with ErrUnavailable.
type flaky struct {
	World
	failures int
	calls    int
}

func (f *flaky) Height(ctx context.Context, x, z int) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, ErrUnavailable
	}
	return f.World.Height(ctx, x, z)
}

func (f *flaky) SetBlock(context.Context, Position, int, int) error {
	f.calls++
	return errors.New("permission denied")
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	policy := RetryPolicy{MaxAttempts: 3, Backoff: func(int) time.Duration { return time.Millisecond }}

	f := &flaky{World: NewGrid(WithTerrain(Flat(4))), failures: 2}
	h, err := WithRetry(f, policy).Height(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, h)
	assert.Equal(t, 3, f.calls)

	f = &flaky{World: NewGrid(), failures: 5}
	_, err = WithRetry(f, policy).Height(ctx, 0, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, f.calls)

	// Permanent errors are not retried.
	f = &flaky{World: NewGrid()}
	err = WithRetry(f, DefaultRetryPolicy()).SetBlock(ctx, Position{}, Stone, 0)
	assert.EqualError(t, err, "permission denied")
	assert.Equal(t, 1, f.calls)
}
