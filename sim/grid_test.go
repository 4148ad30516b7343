package sim

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/dvhop/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridScenario_Default(t *testing.T) {
	cfg, err := GridScenario(DefaultGridOptions())
	require.NoError(t, err)

	assert.Len(t, cfg.Nodes, 50)
	assert.Equal(t, uint64(12345), cfg.Seed)
	assert.Equal(t, 10*time.Second, cfg.Duration)
	assert.Equal(t, []state.NodeId{"node-8", "node-24", "node-37"}, cfg.Beacons())
	assert.Equal(t, state.Position{X: 400, Y: 0}, cfg.GetNode("node-8").Position)
	assert.Equal(t, state.Position{X: 200, Y: 100}, cfg.GetNode("node-24").Position)
	assert.Equal(t, state.Position{X: 350, Y: 150}, cfg.GetNode("node-37").Position)
	assert.Equal(t, []state.DumpCfg{
		{Kind: state.DumpDistance, At: 9 * time.Second},
		{Kind: state.DumpRouting, At: 8 * time.Second},
	}, cfg.Dumps)

	peers := cfg.GetPeers("node-11")
	assert.Equal(t, []state.NodeId{"node-1", "node-10", "node-12", "node-21"}, peers)
	require.NoError(t, state.ScenarioValidator(&cfg))
}

func TestGridScenario_OutDir(t *testing.T) {
	opts := DefaultGridOptions()
	opts.OutDir = t.TempDir()
	cfg, err := GridScenario(opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(opts.OutDir, "dvhop.distances"), cfg.Dumps[0].Path)
	assert.Equal(t, filepath.Join(opts.OutDir, "dvhop.routes"), cfg.Dumps[1].Path)
}

func TestGridScenario_Invalid(t *testing.T) {
	opts := DefaultGridOptions()
	opts.Size = 20
	_, err := GridScenario(opts)
	assert.ErrorContains(t, err, "beacon index 24")

	opts = DefaultGridOptions()
	opts.Step = 0
	_, err = GridScenario(opts)
	assert.Error(t, err)
}

func TestGridScenario_Run(t *testing.T) {
	cfg, err := GridScenario(DefaultGridOptions())
	require.NoError(t, err)
	out := &bytes.Buffer{}
	h := buildHarness(t, cfg, out)
	require.NoError(t, h.Run())

	assert.Len(t, h.Estimates(), 50)
	dump := out.String()
	routes := strings.Index(dump, "node node-0 time 8.000s")
	dists := strings.Index(dump, "node node-0 time 9.000s")
	require.NotEqual(t, -1, routes)
	require.NotEqual(t, -1, dists)
	assert.Less(t, routes, dists)
	assert.Contains(t, dump, "dest node-24 nh ")
	assert.Contains(t, dump, "beacon node-37 ahd ")
}
