package sim

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/encodeous/dvhop/state"
)

// GridOptions describes a row-first grid of nodes, the standard DV-Hop example network.
type GridOptions struct {
	Size  int
	Step  float64
	Width int
	// Range defaults to 1.2 × Step, which links each node to its four axis neighbours
	Range float64
	// Beacons are node indices, defaulting to 8, 24 and 37
	Beacons  []int
	Duration time.Duration
	Seed     uint64
	// OutDir receives the dumps, stdout when empty
	OutDir string
}

var DefaultGridBeacons = []int{8, 24, 37}

func DefaultGridOptions() GridOptions {
	return GridOptions{
		Size:     50,
		Step:     50,
		Width:    10,
		Beacons:  DefaultGridBeacons,
		Duration: 10 * time.Second,
		Seed:     12345,
	}
}

func GridNodeId(i int) state.NodeId {
	return state.NodeId(fmt.Sprintf("node-%d", i))
}

// GridPosition is the position of the i-th node, laid out row first from the origin.
func GridPosition(i, width int, step float64) state.Position {
	return state.Position{
		X: float64(i%width) * step,
		Y: float64(i/width) * step,
	}
}

// GridScenario builds the grid with a distance dump at 9s and a routing dump at 8s.
func GridScenario(opts GridOptions) (state.ScenarioCfg, error) {
	if opts.Size <= 0 || opts.Width <= 0 || opts.Step <= 0 {
		return state.ScenarioCfg{}, fmt.Errorf("grid size, width and step must be positive")
	}
	if opts.Range == 0 {
		opts.Range = opts.Step * 1.2
	}
	if opts.Beacons == nil {
		opts.Beacons = DefaultGridBeacons
	}
	if opts.Duration == 0 {
		opts.Duration = 10 * time.Second
	}
	beacon := make(map[int]bool)
	for _, b := range opts.Beacons {
		if b < 0 || b >= opts.Size {
			return state.ScenarioCfg{}, fmt.Errorf("beacon index %d is outside the grid of %d nodes", b, opts.Size)
		}
		beacon[b] = true
	}

	cfg := state.ScenarioCfg{
		Name:     fmt.Sprintf("grid-%d", opts.Size),
		Seed:     opts.Seed,
		Duration: opts.Duration,
		Range:    opts.Range,
		Protocol: state.ProtocolCfg{}.WithDefaults(),
	}
	for i := range opts.Size {
		cfg.Nodes = append(cfg.Nodes, state.NodeCfg{
			Id:       GridNodeId(i),
			Position: GridPosition(i, opts.Width, opts.Step),
			Beacon:   beacon[i],
		})
	}

	distAt := min(9*time.Second, opts.Duration)
	routeAt := min(8*time.Second, opts.Duration)
	dist := state.DumpCfg{Kind: state.DumpDistance, At: distAt}
	routes := state.DumpCfg{Kind: state.DumpRouting, At: routeAt}
	if opts.OutDir != "" {
		dist.Path = filepath.Join(opts.OutDir, "dvhop.distances")
		routes.Path = filepath.Join(opts.OutDir, "dvhop.routes")
	}
	cfg.Dumps = []state.DumpCfg{dist, routes}
	return cfg, nil
}
