package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xagent/adapter/memory"
	"github.com/trickstertwo/xagent/world"
)

func newGroup(t *testing.T) *xagent.Group {
	t.Helper()
	bus, err := memory.New(memory.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close(context.Background()) })
	return xagent.NewGroup(bus)
}

func runGroup(t *testing.T, g *xagent.Group) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	require.NoError(t, g.Broadcast(ctx, xagent.CommandResume))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("demo did not finish")
	}
}

func TestScoutBuilder_BuildsOnFlatGround(t *testing.T) {
	grid := world.NewGrid(world.WithTerrain(world.Flat(3)))
	g := newGroup(t)
	opts := []xagent.AgentOption{xagent.WithTickInterval(time.Millisecond), xagent.WithIdleInterval(time.Millisecond)}

	scout := NewScout(grid, "builder", world.Position{}, 2, 2, nil)
	builder := NewBuilder(grid, RowPlan(4, world.Plank), nil)
	builder.Notify = "operator"
	_, err := g.Spawn("scout", 1, scout, opts...)
	require.NoError(t, err)
	_, err = g.Spawn("builder", 2, builder, opts...)
	require.NoError(t, err)

	runGroup(t, g)

	assert.Len(t, scout.Visited(), 2)
	assert.Equal(t, 4, builder.Progress())
	require.NotEmpty(t, builder.Sites())

	site := builder.Sites()[0]
	assert.Equal(t, 3, site.Y)
	for i := 0; i < 4; i++ {
		b, err := grid.Block(context.Background(), site.Add(world.Position{X: i, Y: 1}))
		require.NoError(t, err)
		assert.Equal(t, world.Plank, b.ID)
	}

	n, err := g.Bus().Pending(context.Background(), "operator")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "build.started and build.completed")
}

func TestScoutBuilder_GivesUpOnRoughGround(t *testing.T) {
	grid := world.NewGrid(world.WithTerrain(func(x, z int) int { return (x * 7) % 11 }))
	g := newGroup(t)
	opts := []xagent.AgentOption{xagent.WithTickInterval(time.Millisecond), xagent.WithIdleInterval(time.Millisecond)}

	builder := NewBuilder(grid, RowPlan(3, world.Plank), nil)
	_, err := g.Spawn("scout", 1, NewScout(grid, "builder", world.Position{}, 3, 3, nil), opts...)
	require.NoError(t, err)
	_, err = g.Spawn("builder", 2, builder, opts...)
	require.NoError(t, err)

	runGroup(t, g)

	assert.Empty(t, builder.Sites())
	assert.Zero(t, grid.Placed())
}

func TestScout_Commands(t *testing.T) {
	g := newGroup(t)
	scout := NewScout(world.NewGrid(), "builder", world.Position{}, 2, 1, nil)
	a, err := g.Spawn("scout", 1, scout, xagent.WithIdleInterval(time.Millisecond))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, g.Bus().PublishCommand(ctx, "scout", "range 5"))
	a.Tick(ctx)
	assert.Equal(t, 5, scout.Radius)

	require.NoError(t, g.Bus().PublishCommand(ctx, "scout", "range zero"))
	a.Tick(ctx)
	assert.Equal(t, 5, scout.Radius)

	require.NoError(t, g.Bus().PublishCommand(ctx, "scout", "start"))
	a.Tick(ctx)
	assert.Equal(t, xagent.StateRunning, a.State())
	assert.Contains(t, a.Capabilities(), "range <n>")
}
