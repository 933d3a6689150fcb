package demo

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xagent/world"
)

// FlatVariance is the largest height spread still counted as flat ground.
const FlatVariance = 2

// Scout surveys square areas of the world and reports each one to Builder.
type Scout struct {
	xagent.Hooks

	World    world.World
	Builder  string
	Center   world.Position
	Radius   int
	MaxAreas int
	Limiter  *rate.Limiter

	visited []world.Position
}

type scoutObservation struct {
	report MapReport
}

type scoutAction struct {
	next     world.Position
	complete bool
}

// NewScout returns a scout starting at center that reports to builder.
func NewScout(w world.World, builder string, center world.Position, radius, maxAreas int, limiter *rate.Limiter) *Scout {
	if radius < 1 {
		radius = 1
	}
	if maxAreas < 1 {
		maxAreas = 1
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Scout{World: w, Builder: builder, Center: center, Radius: radius, MaxAreas: maxAreas, Limiter: limiter}
}

// Visited returns the centers surveyed so far.
func (s *Scout) Visited() []world.Position { return append([]world.Position(nil), s.visited...) }

func (s *Scout) Perceive(ctx context.Context) (any, error) {
	side := s.Radius * 2
	heights := make([][]int, side)
	lo, hi := 0, 0
	for i := 0; i < side; i++ {
		heights[i] = make([]int, side)
		for j := 0; j < side; j++ {
			h, err := s.World.Height(ctx, s.Center.X-s.Radius+i, s.Center.Z-s.Radius+j)
			if err != nil {
				return nil, fmt.Errorf("height: %w", err)
			}
			heights[i][j] = h
			if (i == 0 && j == 0) || h < lo {
				lo = h
			}
			if (i == 0 && j == 0) || h > hi {
				hi = h
			}
		}
	}
	s.visited = append(s.visited, s.Center)

	center := s.Center
	center.Y = heights[s.Radius][s.Radius]
	return scoutObservation{report: MapReport{
		Center:  center,
		Radius:  s.Radius,
		Heights: heights,
		Flat:    hi-lo <= FlatVariance,
		Area:    len(s.visited),
	}}, nil
}

func (s *Scout) Decide(ctx context.Context, observation any) (any, error) {
	obs := observation.(scoutObservation)
	a, _ := xagent.AgentFromContext(ctx)

	payload, err := toPayload(obs.report)
	if err != nil {
		return nil, err
	}
	if err := a.Emit(ctx, TypeMap, s.Builder, payload, nil); err != nil {
		return nil, err
	}

	if len(s.visited) >= s.MaxAreas {
		return scoutAction{complete: true}, nil
	}
	// Walk a row of adjacent, non-overlapping squares.
	next := s.Center.Add(world.Position{X: s.Radius * 2})
	return scoutAction{next: next}, nil
}

func (s *Scout) Act(ctx context.Context, action any) error {
	if err := s.Limiter.Wait(ctx); err != nil {
		return err
	}
	act := action.(scoutAction)
	a, _ := xagent.AgentFromContext(ctx)
	if act.complete {
		centers := make([]any, 0, len(s.visited))
		for _, v := range s.visited {
			centers = append(centers, map[string]any{"x": v.X, "y": v.Y, "z": v.Z})
		}
		if err := a.Emit(ctx, TypeExplored, s.Builder, map[string]any{"areas": len(s.visited), "centers": centers}, nil); err != nil {
			return err
		}
		a.Stop()
		return nil
	}
	a.Logger().Debug().Str("from", s.Center.String()).Str("to", act.next.String()).Msg("scout moving")
	s.Center = act.next
	return nil
}

func (s *Scout) Commands() []string { return []string{"start", "range <n>"} }

// HandleCommand understands "start" (begin surveying) and "range <n>".
func (s *Scout) HandleCommand(ctx context.Context, cmd xagent.Command) error {
	fields := cmd.Fields()
	switch {
	case len(fields) == 1 && fields[0] == "start":
		a, _ := xagent.AgentFromContext(ctx)
		a.Transition(xagent.StateRunning)
		return nil
	case len(fields) == 2 && fields[0] == "range":
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return fmt.Errorf("range must be a positive integer, got %q", fields[1])
		}
		s.Radius = n
		return nil
	default:
		return xagent.ErrUnrecognizedCommand
	}
}

// HandleResume restarts the survey from scratch when the previous one finished.
func (s *Scout) HandleResume(context.Context, xagent.Command) (xagent.State, error) {
	if len(s.visited) >= s.MaxAreas {
		s.visited = nil
	}
	return xagent.StateRunning, nil
}
