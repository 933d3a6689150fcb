// Package world defines the block-world capability consumed by concrete agents
// and an in-memory Grid implementing it.
package world

import (
	"context"
	"errors"
	"fmt"
)

// Common block ids.
const (
	Air   = 0
	Stone = 1
	Grass = 2
	Dirt  = 3
	Plank = 5
)

// ErrUnavailable marks a transient failure of the world backend.
var ErrUnavailable = errors.New("world: backend unavailable")

// Position is an integer block coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Position) Add(o Position) Position { return Position{p.X + o.X, p.Y + o.Y, p.Z + o.Z} }

func (p Position) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// Block is a block id plus its auxiliary data value.
type Block struct {
	ID  int `json:"id"`
	Aux int `json:"aux"`
}

// World is the capability set agents use to read and change the world.
type World interface {
	Block(ctx context.Context, pos Position) (Block, error)
	SetBlock(ctx context.Context, pos Position, id, aux int) error
	// Height returns the y of the highest non-air block in the column.
	Height(ctx context.Context, x, z int) (int, error)
	PlayerPosition(ctx context.Context) (Position, error)
}
