package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/trickstertwo/xagent"
	_ "github.com/trickstertwo/xagent/adapter/memory"
	"github.com/trickstertwo/xagent/adapter/oteltrace"
	"github.com/trickstertwo/xagent/adapter/prometheus"
	_ "github.com/trickstertwo/xagent/adapter/redislist"
	"github.com/trickstertwo/xagent/config"
	"github.com/trickstertwo/xagent/internal/demo"
	"github.com/trickstertwo/xagent/schedule"
	"github.com/trickstertwo/xagent/world"
	"github.com/trickstertwo/xlog"
)

// Runtime is the assembled process: bus, world, agents and scheduler.
type Runtime struct {
	Config    *config.Config
	Logger    *xlog.Logger
	Bus       *xagent.Bus
	World     *world.Grid
	// View is the World agents act on: the grid behind a retry decorator.
	View      world.World
	Group     *xagent.Group
	Scheduler *schedule.Scheduler
	Registry  *prom.Registry

	kinds    map[string]string
	tracer   *sdktrace.TracerProvider
	shutdown []func(context.Context) error
}

// Build wires a Runtime from cfg. Stores register themselves by name, so the
// bus accepts any store the binary links in.
func Build(cfg *config.Config, logger *xlog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = xlog.Default()
	}
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: prom.NewRegistry(),
		kinds:    make(map[string]string, len(cfg.Agents)),
	}
	rt.Registry.MustRegister(collectors.NewGoCollector())

	metrics, err := prometheus.New(rt.Registry, "xagent")
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	bb := xagent.NewBusBuilder().
		WithStore(cfg.Bus.Store, cfg.Bus.Options).
		WithLogger(logger).
		WithObserver(metrics)
	if cfg.Bus.CommandSource != "" {
		bb.WithCommandSource(cfg.Bus.CommandSource)
	}
	if cfg.Bus.ObserverWorkers > 0 {
		bb.WithObserverPool(cfg.Bus.ObserverWorkers, cfg.Bus.ObserverBuffer)
	}
	bus, err := bb.Build()
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	rt.Bus = bus
	rt.shutdown = append(rt.shutdown, bus.Close)

	var mws []xagent.Middleware
	if cfg.Tracing.Exporter == "stdout" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			_ = rt.Close(context.Background())
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		rt.tracer = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		rt.shutdown = append(rt.shutdown, rt.tracer.Shutdown)
		mws = append(mws, oteltrace.TracingMiddleware(rt.tracer.Tracer(cfg.Tracing.ServiceName)))
	}

	rt.World = world.NewGrid(world.WithTerrain(terrain(cfg.World)))
	rt.View = world.WithRetry(rt.World, world.DefaultRetryPolicy())
	rt.Group = xagent.NewGroup(bus)
	for _, ac := range cfg.Agents {
		behavior, err := rt.behavior(ac)
		if err != nil {
			_ = rt.Close(context.Background())
			return nil, err
		}
		opts := []xagent.AgentOption{
			xagent.WithLogger(logger),
			xagent.WithMiddleware(mws...),
		}
		if ac.TickInterval > 0 {
			opts = append(opts, xagent.WithTickInterval(ac.TickInterval))
		}
		if ac.IdleInterval > 0 {
			opts = append(opts, xagent.WithIdleInterval(ac.IdleInterval))
		}
		if _, err := rt.Group.Spawn(ac.Name, ac.ID, behavior, opts...); err != nil {
			_ = rt.Close(context.Background())
			return nil, err
		}
		rt.kinds[ac.Name] = ac.Kind
	}

	rt.Scheduler = schedule.New(bus, schedule.WithLogger(logger))
	for _, e := range cfg.Schedule {
		if _, err := rt.Scheduler.Add(e); err != nil {
			_ = rt.Close(context.Background())
			return nil, err
		}
	}
	return rt, nil
}

func (rt *Runtime) behavior(ac config.AgentConfig) (xagent.Behavior, error) {
	limiter := limiterFor(ac.Duration("rate", 0))
	switch ac.Kind {
	case config.KindScout:
		center := world.Position{X: ac.Int("x", 0), Y: rt.Config.World.GroundHeight, Z: ac.Int("z", 0)}
		return demo.NewScout(rt.View, ac.String("target", "Builder"), center,
			ac.Int("radius", 4), ac.Int("areas", 3), limiter), nil
	case config.KindBuilder:
		b := demo.NewBuilder(rt.View, demo.RowPlan(ac.Int("blocks", 5), ac.Int("block", world.Plank)), limiter)
		b.Notify = ac.String("notify", "")
		return b, nil
	default:
		return nil, fmt.Errorf("agent %s: unknown kind %q", ac.Name, ac.Kind)
	}
}

// Kind returns the configured kind of agent name.
func (rt *Runtime) Kind(name string) string { return rt.kinds[name] }

// Run starts every agent, the scheduler and the metrics endpoint, and blocks
// until all agents have stopped, ctx is cancelled or the configured timeout
// expires.
func (rt *Runtime) Run(ctx context.Context) error {
	if rt.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.Config.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if rt.Config.AutoStart {
		if err := rt.Group.Broadcast(ctx, xagent.CommandResume); err != nil {
			return fmt.Errorf("auto start: %w", err)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return rt.Group.Run(ctx)
	})
	eg.Go(func() error { return rt.Scheduler.Run(ctx) })
	if addr := rt.Config.Metrics.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           rt.MetricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		eg.Go(func() error {
			rt.Logger.Info().Str("addr", addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}
	return eg.Wait()
}

// MetricsHandler serves the runtime registry in the Prometheus text format.
func (rt *Runtime) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h := rt.Bus.Health(r.Context())
		if h.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = fmt.Fprintln(w, h.Status)
	})
	return mux
}

// Close releases the bus and flushes the tracer, last acquired first.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.shutdown) - 1; i >= 0; i-- {
		if err := rt.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.shutdown = nil
	return errors.Join(errs...)
}

func limiterFor(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// terrain returns flat ground, or a deterministic bumpy surface when
// roughness is set.
func terrain(cfg config.WorldConfig) world.Terrain {
	if cfg.Roughness <= 0 {
		return world.Flat(cfg.GroundHeight)
	}
	span := cfg.Roughness + 1
	return func(x, z int) int {
		v := (x*7 + z*13) % span
		if v < 0 {
			v += span
		}
		return cfg.GroundHeight + v
	}
}
