package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xagent/config"
	"github.com/trickstertwo/xagent/world"
	"github.com/trickstertwo/xlog"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Log.Level = "error"
	cfg.Timeout = 10 * time.Second
	for i := range cfg.Agents {
		cfg.Agents[i].TickInterval = time.Millisecond
		cfg.Agents[i].IdleInterval = time.Millisecond
	}
	return &cfg
}

func testLogger(t *testing.T) *xlog.Logger {
	t.Helper()
	l, err := NewLogger(config.LogConfig{Level: "error"})
	require.NoError(t, err)
	return l
}

func TestRuntime_ScoutFeedsBuilder(t *testing.T) {
	rt, err := Build(testConfig(), testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	require.NoError(t, rt.Run(context.Background()))

	for _, a := range rt.Group.Agents() {
		assert.Equal(t, xagent.StateStopped, a.State(), a.Name())
	}
	assert.Equal(t, 5, rt.World.Placed())
	assert.Equal(t, "scout", rt.Kind("Scout"))

	var out bytes.Buffer
	printSummary(&out, rt)
	assert.Contains(t, out.String(), "Builder")
	assert.Contains(t, out.String(), "STOPPED")
	assert.Contains(t, out.String(), "blocks placed: 5")
}

func TestRuntime_AgentsActThroughRetryingWorld(t *testing.T) {
	rt, err := Build(testConfig(), testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	_, bare := rt.View.(*world.Grid)
	assert.False(t, bare, "agents must not see the undecorated grid")

	ctx := context.Background()
	require.NoError(t, rt.View.SetBlock(ctx, world.Position{X: 1, Y: 70, Z: 1}, world.Stone, 0))
	assert.Equal(t, 1, rt.World.Placed())
	h, err := rt.View.Height(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 70, h)
}

func TestRuntime_NoStartTimesOutIdle(t *testing.T) {
	cfg := testConfig()
	cfg.AutoStart = false
	cfg.Timeout = 50 * time.Millisecond

	rt, err := Build(cfg, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	require.NoError(t, rt.Run(context.Background()))
	for _, a := range rt.Group.Agents() {
		assert.Equal(t, xagent.StateIdle, a.State(), a.Name())
	}
	assert.Zero(t, rt.World.Placed())
}

func TestRuntime_RoughTerrainBuildsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.World.Roughness = 6

	rt, err := Build(cfg, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	require.NoError(t, rt.Run(context.Background()))
	assert.Zero(t, rt.World.Placed())
}

func TestBuild_UnknownStore(t *testing.T) {
	cfg := testConfig()
	cfg.Bus.Store = "carrier-pigeon"
	_, err := Build(cfg, testLogger(t))
	assert.Error(t, err)
}

func TestMetricsHandler(t *testing.T) {
	rt, err := Build(testConfig(), testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	require.NoError(t, rt.Run(context.Background()))

	srv := httptest.NewServer(rt.MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), "xagent_")

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestAgentsCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"agents"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Scout")
	assert.Contains(t, out.String(), "range <n>")
	assert.Contains(t, out.String(), "RESUME")
}

func TestTerrain(t *testing.T) {
	flat := terrain(config.WorldConfig{GroundHeight: 3})
	assert.Equal(t, 3, flat(-5, 9))

	rough := terrain(config.WorldConfig{GroundHeight: 3, Roughness: 4})
	for x := -10; x < 10; x++ {
		h := rough(x, -x)
		assert.GreaterOrEqual(t, h, 3)
		assert.LessOrEqual(t, h, 7)
	}
}
