package state

import (
	"fmt"
	"math"
)

// Position is a point in metres. Two-dimensional scenarios leave Z at zero.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z,omitempty"`
}

func (p Position) DistanceTo(o Position) float64 {
	d := p.Sub(o)
	return math.Sqrt(d.Dot(d))
}

func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Position) Dot(o Position) float64 {
	return p.X*o.X + p.Y*o.Y + p.Z*o.Z
}

// Coord returns the i-th coordinate (0 = X, 1 = Y, 2 = Z).
func (p Position) Coord(i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

func (p Position) String() string {
	if p.Z != 0 {
		return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Z)
	}
	return fmt.Sprintf("(%.3f, %.3f)", p.X, p.Y)
}

// FormatPosition renders an optional position, "unlocalized" when absent.
func FormatPosition(p *Position) string {
	if p == nil {
		return "unlocalized"
	}
	return p.String()
}
