package core

import (
	"math"
	"testing"

	"github.com/encodeous/dvhop/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anchorsFor(target state.Position, beacons map[state.NodeId]state.Position) []Anchor {
	anchors := make([]Anchor, 0, len(beacons))
	for id, pos := range beacons {
		anchors = append(anchors, Anchor{Beacon: id, Position: pos, Distance: pos.DistanceTo(target)})
	}
	return anchors
}

func TestSolve_Exact(t *testing.T) {
	anchors := []Anchor{
		{Beacon: "b1", Position: state.Position{X: 0, Y: 0}, Distance: 50},
		{Beacon: "b2", Position: state.Position{X: 100, Y: 0}, Distance: math.Hypot(70, 40)},
		{Beacon: "b3", Position: state.Position{X: 0, Y: 100}, Distance: math.Hypot(30, 60)},
	}
	pos, err := Solve(anchors, SolverCfg{Dims: 2, MinBeacons: 3, DegenerateThreshold: 1e-9})
	require.NoError(t, err)
	assert.InDelta(t, 30, pos.X, 1e-9)
	assert.InDelta(t, 40, pos.Y, 1e-9)
	assert.Zero(t, pos.Z)
}

func TestSolve_OrderIndependent(t *testing.T) {
	target := state.Position{X: 123, Y: -45}
	anchors := anchorsFor(target, map[state.NodeId]state.Position{
		"b1": {X: 0, Y: 0},
		"b2": {X: 400, Y: 0},
		"b3": {X: 200, Y: 100},
		"b4": {X: 350, Y: 150},
	})
	cfg := SolverCfgOf(state.ProtocolCfg{}.WithDefaults())
	first, err := Solve(anchors, cfg)
	require.NoError(t, err)
	reversed := make([]Anchor, len(anchors))
	for i, a := range anchors {
		reversed[len(anchors)-1-i] = a
	}
	second, err := Solve(reversed, cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.InDelta(t, target.X, first.X, 1e-6)
	assert.InDelta(t, target.Y, first.Y, 1e-6)
}

func TestSolve_Overdetermined(t *testing.T) {
	target := state.Position{X: 60, Y: 80}
	anchors := anchorsFor(target, map[state.NodeId]state.Position{
		"b1": {X: 0, Y: 0},
		"b2": {X: 200, Y: 0},
		"b3": {X: 0, Y: 200},
		"b4": {X: 200, Y: 200},
		"b5": {X: 100, Y: 300},
	})
	// perturb the distances, the least squares fit stays close
	for i := range anchors {
		anchors[i].Distance *= 1 + 0.01*float64(i%2*2-1)
	}
	pos, err := Solve(anchors, SolverCfgOf(state.ProtocolCfg{}.WithDefaults()))
	require.NoError(t, err)
	assert.InDelta(t, target.X, pos.X, 20)
	assert.InDelta(t, target.Y, pos.Y, 20)
}

func TestSolve_Insufficient(t *testing.T) {
	anchors := []Anchor{
		{Beacon: "b1", Position: state.Position{X: 0, Y: 0}, Distance: 50},
		{Beacon: "b2", Position: state.Position{X: 100, Y: 0}, Distance: 50},
	}
	_, err := Solve(anchors, SolverCfg{Dims: 2, MinBeacons: 3})
	assert.ErrorIs(t, err, ErrInsufficientBeacons)

	_, err = Solve(nil, SolverCfg{})
	assert.ErrorIs(t, err, ErrInsufficientBeacons)

	// MinBeacons may raise the bar above dims + 1
	anchors = append(anchors, Anchor{Beacon: "b3", Position: state.Position{Y: 100}, Distance: 50})
	_, err = Solve(anchors, SolverCfg{Dims: 2, MinBeacons: 4})
	assert.ErrorIs(t, err, ErrInsufficientBeacons)
}

func TestSolve_Collinear(t *testing.T) {
	anchors := []Anchor{
		{Beacon: "b1", Position: state.Position{X: 0, Y: 0}, Distance: 50},
		{Beacon: "b2", Position: state.Position{X: 100, Y: 0}, Distance: 60},
		{Beacon: "b3", Position: state.Position{X: 200, Y: 0}, Distance: 150},
	}
	_, err := Solve(anchors, SolverCfg{Dims: 2, MinBeacons: 3, DegenerateThreshold: 1e-9})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)

	// diagonal line, nothing on the axes is zero
	anchors = []Anchor{
		{Beacon: "b1", Position: state.Position{X: 0, Y: 0}, Distance: 50},
		{Beacon: "b2", Position: state.Position{X: 100, Y: 100}, Distance: 60},
		{Beacon: "b3", Position: state.Position{X: 200, Y: 200}, Distance: 150},
	}
	_, err = Solve(anchors, SolverCfg{Dims: 2, MinBeacons: 3, DegenerateThreshold: 1e-9})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestSolve_NearlyCollinear(t *testing.T) {
	anchors := []Anchor{
		{Beacon: "b1", Position: state.Position{X: 0, Y: 0}, Distance: 50},
		{Beacon: "b2", Position: state.Position{X: 100, Y: 100.001}, Distance: 60},
		{Beacon: "b3", Position: state.Position{X: 200, Y: 200}, Distance: 150},
	}
	_, err := Solve(anchors, SolverCfg{Dims: 2, MinBeacons: 3, DegenerateThreshold: 1e-9})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestSolve_3D(t *testing.T) {
	target := state.Position{X: 10, Y: 20, Z: 30}
	anchors := anchorsFor(target, map[state.NodeId]state.Position{
		"b1": {X: 0, Y: 0, Z: 0},
		"b2": {X: 100, Y: 0, Z: 0},
		"b3": {X: 0, Y: 100, Z: 0},
		"b4": {X: 0, Y: 0, Z: 100},
	})
	pos, err := Solve(anchors, SolverCfg{Dims: 3, MinBeacons: 4, DegenerateThreshold: 1e-9})
	require.NoError(t, err)
	assert.InDelta(t, 10, pos.X, 1e-6)
	assert.InDelta(t, 20, pos.Y, 1e-6)
	assert.InDelta(t, 30, pos.Z, 1e-6)

	// three anchors are not enough in three dimensions
	_, err = Solve(anchors[:3], SolverCfg{Dims: 3, MinBeacons: 3})
	assert.ErrorIs(t, err, ErrInsufficientBeacons)

	// coplanar anchors cannot fix the height
	flat := anchorsFor(target, map[state.NodeId]state.Position{
		"b1": {X: 0, Y: 0},
		"b2": {X: 100, Y: 0},
		"b3": {X: 0, Y: 100},
		"b4": {X: 100, Y: 100},
	})
	_, err = Solve(flat, SolverCfg{Dims: 3, MinBeacons: 4, DegenerateThreshold: 1e-9})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestSolve_UnsupportedDims(t *testing.T) {
	_, err := Solve(nil, SolverCfg{Dims: 4})
	assert.ErrorContains(t, err, "unsupported dimension 4")
}
