package demo

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xagent/world"
)

// Step is one block of a build plan, relative to the site.
type Step struct {
	Offset world.Position
	ID     int
	Aux    int
}

// RowPlan lays n blocks of id along +X one level above the site.
func RowPlan(n, id int) []Step {
	plan := make([]Step, n)
	for i := range plan {
		plan[i] = Step{Offset: world.Position{X: i, Y: 1}, ID: id}
	}
	return plan
}

// Builder waits for a flat site from a scout, then places its plan there one
// block per cycle and stops.
type Builder struct {
	xagent.Hooks

	World   world.World
	Plan    []Step
	Limiter *rate.Limiter
	// Notify receives build.* messages; empty disables them.
	Notify string

	sites   []world.Position
	site    *world.Position
	index   int
	explore bool
}

type builderObservation struct {
	hasSite  bool
	building bool
	done     bool
	scouted  bool
}

type builderAction int

const (
	builderWait builderAction = iota
	builderStart
	builderPlace
	builderFinish
	builderGiveUp
)

func NewBuilder(w world.World, plan []Step, limiter *rate.Limiter) *Builder {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Builder{World: w, Plan: plan, Limiter: limiter}
}

// Sites returns the flat sites received so far.
func (b *Builder) Sites() []world.Position { return append([]world.Position(nil), b.sites...) }

// Progress returns the number of plan steps placed.
func (b *Builder) Progress() int { return b.index }

// HandlePrivate records flat sites from map reports.
func (b *Builder) HandlePrivate(ctx context.Context, msg xagent.Message) error {
	switch {
	case strings.HasPrefix(msg.Type(), "map."):
		report, err := xagent.DecodePayload[MapReport](msg)
		if err != nil {
			return fmt.Errorf("decode map: %w", err)
		}
		if report.Flat {
			b.sites = append(b.sites, report.Center)
		}
		if l, ok := xagent.LoggerFromContext(ctx); ok {
			l.Debug().Str("center", report.Center.String()).Str("from", msg.Source()).Msg("map received")
		}
	case msg.Type() == TypeExplored:
		b.explore = true
	}
	return nil
}

func (b *Builder) Perceive(context.Context) (any, error) {
	return builderObservation{
		hasSite:  len(b.sites) > 0,
		building: b.site != nil,
		done:     b.site != nil && b.index >= len(b.Plan),
		scouted:  b.explore,
	}, nil
}

func (b *Builder) Decide(_ context.Context, observation any) (any, error) {
	obs := observation.(builderObservation)
	switch {
	case obs.done:
		return builderFinish, nil
	case obs.building:
		return builderPlace, nil
	case obs.hasSite:
		return builderStart, nil
	case obs.scouted:
		return builderGiveUp, nil
	default:
		return builderWait, nil
	}
}

func (b *Builder) Act(ctx context.Context, action any) error {
	a, _ := xagent.AgentFromContext(ctx)
	switch action.(builderAction) {
	case builderStart:
		site := b.sites[0]
		b.site, b.index = &site, 0
		a.Logger().Info().Str("site", site.String()).Msg("construction started")
		return b.notify(ctx, a, TypeBuildStarted, map[string]any{"site": map[string]any{"x": site.X, "y": site.Y, "z": site.Z}})
	case builderPlace:
		if err := b.Limiter.Wait(ctx); err != nil {
			return err
		}
		step := b.Plan[b.index]
		if err := b.World.SetBlock(ctx, b.site.Add(step.Offset), step.ID, step.Aux); err != nil {
			return fmt.Errorf("place block %d: %w", b.index, err)
		}
		b.index++
		return nil
	case builderFinish:
		a.Logger().Info().Str("site", b.site.String()).Msg("construction complete")
		if err := b.notify(ctx, a, TypeBuildComplete, map[string]any{"blocks": len(b.Plan)}); err != nil {
			return err
		}
		a.Stop()
		return nil
	case builderGiveUp:
		a.Logger().Warn().Msg("exploration finished without a flat site")
		a.Stop()
		return nil
	default:
		return nil
	}
}

func (b *Builder) notify(ctx context.Context, a *xagent.Agent, typ string, payload map[string]any) error {
	if b.Notify == "" {
		return nil
	}
	return a.Emit(ctx, typ, b.Notify, payload, nil)
}
