package world

import (
	"context"
	"sync"
)

// Terrain gives the ground height of a column.
type Terrain func(x, z int) int

// Flat returns a terrain at constant height y.
func Flat(y int) Terrain { return func(int, int) int { return y } }

// Grid is an in-memory World: ground blocks come from a Terrain, placed
// blocks are kept in a map. Safe for concurrent use.
type Grid struct {
	terrain Terrain

	mu     sync.RWMutex
	placed map[Position]Block
	player Position
}

var _ World = (*Grid)(nil)

// GridOption configures a Grid.
type GridOption func(*Grid)

func WithTerrain(t Terrain) GridOption {
	return func(g *Grid) {
		if t != nil {
			g.terrain = t
		}
	}
}

func WithPlayer(p Position) GridOption {
	return func(g *Grid) { g.player = p }
}

// NewGrid returns a grid over flat ground at y=0 unless configured otherwise.
func NewGrid(opts ...GridOption) *Grid {
	g := &Grid{
		terrain: Flat(0),
		placed:  make(map[Position]Block),
	}
	for _, o := range opts {
		if o != nil {
			o(g)
		}
	}
	return g
}

func (g *Grid) Block(ctx context.Context, pos Position) (Block, error) {
	if err := ctx.Err(); err != nil {
		return Block{}, err
	}
	g.mu.RLock()
	b, ok := g.placed[pos]
	g.mu.RUnlock()
	if ok {
		return b, nil
	}
	if pos.Y <= g.terrain(pos.X, pos.Z) {
		return Block{ID: Stone}, nil
	}
	return Block{ID: Air}, nil
}

func (g *Grid) SetBlock(ctx context.Context, pos Position, id, aux int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	g.placed[pos] = Block{ID: id, Aux: aux}
	g.mu.Unlock()
	return nil
}

// Height scans placed blocks above the terrain; placed air below the surface
// does not lower it.
func (g *Grid) Height(ctx context.Context, x, z int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h := g.terrain(x, z)
	g.mu.RLock()
	defer g.mu.RUnlock()
	for p, b := range g.placed {
		if p.X == x && p.Z == z && b.ID != Air && p.Y > h {
			h = p.Y
		}
	}
	return h, nil
}

func (g *Grid) PlayerPosition(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.player, nil
}

// MovePlayer relocates the player.
func (g *Grid) MovePlayer(p Position) {
	g.mu.Lock()
	g.player = p
	g.mu.Unlock()
}

// Placed returns how many blocks have been set.
func (g *Grid) Placed() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.placed)
}
