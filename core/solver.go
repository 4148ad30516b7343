package core

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/encodeous/dvhop/state"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInsufficientBeacons = errors.New("insufficient beacons")
	ErrDegenerateGeometry  = errors.New("degenerate beacon geometry")
)

// Anchor is a beacon with a known position and an estimated distance to it.
type Anchor struct {
	Beacon   state.NodeId
	Position state.Position
	Distance float64
}

type SolverCfg struct {
	Dims                int
	MinBeacons          int
	DegenerateThreshold float64
}

func SolverCfgOf(p state.ProtocolCfg) SolverCfg {
	return SolverCfg{
		Dims:                p.Dims,
		MinBeacons:          p.MinBeacons,
		DegenerateThreshold: p.DegenerateThreshold,
	}
}

func sqNorm(p state.Position, dims int) float64 {
	n := 0.0
	for k := range dims {
		n += p.Coord(k) * p.Coord(k)
	}
	return n
}

/*
Solve estimates a position by multilateration.

Subtracting the circle equation of the reference anchor r from that of every other anchor i gives
the linear system A p = b with

	A_i = 2 (p_i - p_r)
	b_i = |p_i|² - |p_r|² - d_i² + d_r²

which is solved in the least squares sense through the normal equations (AᵀA) p = Aᵀb.
The reference is the last anchor in beacon id order.
*/
func Solve(anchors []Anchor, cfg SolverCfg) (state.Position, error) {
	dims := cfg.Dims
	if dims == 0 {
		dims = state.SolverDims
	}
	if dims != 2 && dims != 3 {
		return state.Position{}, fmt.Errorf("unsupported dimension %d", dims)
	}
	minBeacons := max(cfg.MinBeacons, dims+1)
	if len(anchors) < minBeacons {
		return state.Position{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBeacons, len(anchors), minBeacons)
	}

	sorted := slices.Clone(anchors)
	slices.SortFunc(sorted, func(a, b Anchor) int {
		return cmp.Compare(a.Beacon, b.Beacon)
	})
	ref := sorted[len(sorted)-1]
	rows := len(sorted) - 1
	refNorm := sqNorm(ref.Position, dims)

	A := mat.NewDense(rows, dims, nil)
	b := mat.NewVecDense(rows, nil)
	for i, a := range sorted[:rows] {
		for k := range dims {
			A.Set(i, k, 2*(a.Position.Coord(k)-ref.Position.Coord(k)))
		}
		b.SetVec(i, sqNorm(a.Position, dims)-refNorm-a.Distance*a.Distance+ref.Distance*ref.Distance)
	}

	var ata mat.Dense
	ata.Mul(A.T(), A)
	var atb mat.VecDense
	atb.MulVec(A.T(), b)

	// Hadamard: 0 <= det <= product of the diagonal, with equality to 0 when the anchors are collinear (coplanar in 3d)
	diag := 1.0
	for k := range dims {
		diag *= ata.At(k, k)
	}
	if diag == 0 {
		return state.Position{}, fmt.Errorf("%w: anchors do not span %d dimensions", ErrDegenerateGeometry, dims)
	}
	if ratio := mat.Det(&ata) / diag; ratio < cfg.DegenerateThreshold {
		return state.Position{}, fmt.Errorf("%w: normalised determinant %g", ErrDegenerateGeometry, ratio)
	}

	var p mat.VecDense
	if err := p.SolveVec(&ata, &atb); err != nil {
		return state.Position{}, fmt.Errorf("%w: %w", ErrDegenerateGeometry, err)
	}
	pos := state.Position{X: p.AtVec(0), Y: p.AtVec(1)}
	if dims == 3 {
		pos.Z = p.AtVec(2)
	}
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return state.Position{}, fmt.Errorf("%w: solution is not finite", ErrDegenerateGeometry)
	}
	return pos, nil
}
