package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/encodeous/dvhop/state"
	"github.com/stretchr/testify/require"
)

// sampleScenario is a width×height grid, step metres apart, with beacons on three corners.
func sampleScenario(width, height int, step float64) state.ScenarioCfg {
	cfg := state.ScenarioCfg{
		Name:     "sample",
		Seed:     1,
		Duration: 10 * time.Second,
		Range:    step * 1.2,
	}
	corners := []int{0, width - 1, width * (height - 1)}
	for i := range width * height {
		cfg.Nodes = append(cfg.Nodes, state.NodeCfg{
			Id:       state.NodeId(fmt.Sprintf("n%d", i)),
			Position: state.Position{X: float64(i%width) * step, Y: float64(i/width) * step},
			Beacon:   slices.Contains(corners, i),
		})
	}
	return cfg
}

func buildHarness(t *testing.T, cfg state.ScenarioCfg, out io.Writer) *Harness {
	t.Helper()
	h, err := Build(cfg, Options{Output: out})
	require.NoError(t, err)
	t.Cleanup(h.Stop)
	return h
}

// testNode is a node with an environment but no router, for driving the engine directly
func testNode(id state.NodeId) *Node {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Node{
		Id: id,
		State: &state.State{
			Env: &state.Env{
				Node:    id,
				Context: ctx,
				Cancel:  cancel,
				Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			},
		},
	}
}
