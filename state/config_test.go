package state

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseGraph_SimpleGraph(t *testing.T) {
	nodes := []string{"1", "2", "3", "4", "5"}
	input := `1, 2
3, 4
1,3,5`
	pairs, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.NoError(t, err)
	assert.ElementsMatch(t, pairs, []Pair[NodeId, NodeId]{
		{"1", "2"},
		{"3", "4"},
		{"1", "3"},
		{"3", "5"},
		{"1", "5"},
	})
}

func TestParseGraph_Groups(t *testing.T) {
	nodes := []string{"1", "2", "3", "4", "5", "6", "7"}
	input := `a = 1,2
b=3,,,4
c=5,6
d=a,b
d,d
7,d`
	pairs, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.NoError(t, err)
	assert.ElementsMatch(t, pairs, []Pair[NodeId, NodeId]{
		// d,d
		{"1", "2"},
		{"1", "3"},
		{"1", "4"},
		{"2", "3"},
		{"2", "4"},
		{"3", "4"},
		// 7,d
		{"1", "7"},
		{"2", "7"},
		{"3", "7"},
		{"4", "7"},
	})
}

func TestParseGraph_Cycle(t *testing.T) {
	nodes := []string{}
	input := `a = b
b = c
c = a`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "cycle detected in graph: [a b c]")
}

func TestParseGraph_DupGroupName(t *testing.T) {
	nodes := []string{}
	input := `a = b
a = b
b = b`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "duplicate group name: a")
}

func TestParseGraph_SymbolError(t *testing.T) {
	nodes := []string{"1"}
	input := `a = 1
b = 2`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "2 is not a valid node/group")
}

func TestParseGraph_EmptyGroup(t *testing.T) {
	nodes := []string{"1"}
	input := `a =`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "node/group list must not be empty")
}

func TestParseGraph_GroupNameIsNodeName(t *testing.T) {
	nodes := []string{"1"}
	input := `1 = 1`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "group name must not be a node name: 1")
}

func TestParseGraph_InvalidGroupDefinition(t *testing.T) {
	nodes := []string{"1"}
	input := `a = 1 = b`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, ". group definition must contain one '='")
}

func TestParseGraph_Single(t *testing.T) {
	nodes := []string{"1", "2", "3", "4", "5"}
	input := `1`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "invalid pairing, [1]")
}

func TestParseGraph_None(t *testing.T) {
	nodes := []string{"1", "2", "3", "4", "5"}
	input := ``
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "node/group list must not be empty")
}

func TestParseGraph_GroupsDeep(t *testing.T) {
	nodes := []string{"1", "2", "3", "4", "5", "6", "7"}
	input := `a = 1,2
b = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
c = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
d = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
e = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
f = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
g = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
h = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
i = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
j = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
k = a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a,a
k,k,3`
	pairs, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.NoError(t, err)
	assert.ElementsMatch(t, pairs, []Pair[NodeId, NodeId]{
		{"1", "2"},
		{"1", "3"},
		{"2", "3"},
	})
}

func failGraph(t *testing.T, graph string) {
	_, err := ParseGraph(strings.Split(graph, "\n"), []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"})
	assert.Error(t, err)
}

func TestParseGraph_InvalidGraph(t *testing.T) {
	failGraph(t, `this graph is a baddie`)
	failGraph(t, `=========,,,,`)
	failGraph(t, `#`)
	failGraph(t, `\n\n\n\n\n\n`)
	failGraph(t, `1`)
	failGraph(t, `1,2,3,4,5,6,a`)
	failGraph(t, `1,2,3,4,5,6,7,8,9,10,11,12,13,14,15`)
	failGraph(t, `,,,,,,,,,,,,,,,,`)
	failGraph(t, `a=a`)
}

func TestScenario_RangeLinks(t *testing.T) {
	cfg := SampleScenario(t, 3, 2, 50)
	links, err := cfg.Links()
	assert.NoError(t, err)
	assert.ElementsMatch(t, links, []Pair[NodeId, NodeId]{
		{"n0", "n1"},
		{"n1", "n2"},
		{"n3", "n4"},
		{"n4", "n5"},
		{"n0", "n3"},
		{"n1", "n4"},
		{"n2", "n5"},
	})
}

func TestScenario_GraphOverridesRange(t *testing.T) {
	cfg := SampleScenario(t, 3, 1, 50)
	cfg.Range = 0
	cfg.Graph = []string{"n0, n2"}
	adj, err := cfg.Adjacency()
	assert.NoError(t, err)
	assert.Equal(t, map[NodeId][]NodeId{
		"n0": {"n2"},
		"n1": {},
		"n2": {"n0"},
	}, adj)
	assert.Equal(t, []NodeId{"n2"}, cfg.GetPeers("n0"))
	assert.Empty(t, cfg.GetPeers("n1"))
}

func TestScenario_Beacons(t *testing.T) {
	cfg := SampleScenario(t, 3, 3, 10)
	assert.Equal(t, []NodeId{"n0", "n2", "n6"}, cfg.Beacons())
	assert.Len(t, cfg.NodeIds(), 9)
	assert.Nil(t, cfg.TryGetNode("n9"))
	assert.Equal(t, Position{X: 20, Y: 20}, cfg.GetNode("n8").Position)
}

func TestProtocolDefaults(t *testing.T) {
	p := ProtocolCfg{Dims: 3}.WithDefaults()
	assert.Equal(t, 4, p.MinBeacons)
	assert.Equal(t, FloodInterval, p.FloodInterval)
	assert.Equal(t, FallbackNone, p.AhdFallback)

	p = ProtocolCfg{MinBeacons: 5, AhdFallback: FallbackNearest}.WithDefaults()
	assert.Equal(t, 5, p.MinBeacons)
	assert.Equal(t, 2, p.Dims)
	assert.Equal(t, FallbackNearest, p.AhdFallback)
}

func TestProtocolCfg_ExpiryFollowsIntervals(t *testing.T) {
	p := ProtocolCfg{}.WithDefaults()
	assert.Equal(t, ExpiryTimeout, p.ExpiryTimeout)

	p = ProtocolCfg{AhdInterval: 10 * time.Second}.WithDefaults()
	assert.Equal(t, 30*time.Second, p.ExpiryTimeout)
	assert.NoError(t, ProtocolValidator(p))

	p = ProtocolCfg{FloodInterval: 4 * time.Second}.WithDefaults()
	assert.Equal(t, 12*time.Second, p.ExpiryTimeout)

	// an explicit timeout is kept, and rejected when it cannot outlive an ahd refresh
	p = ProtocolCfg{AhdInterval: 10 * time.Second, ExpiryTimeout: 6 * time.Second}.WithDefaults()
	assert.Equal(t, 6*time.Second, p.ExpiryTimeout)
	assert.ErrorContains(t, ProtocolValidator(p), "longer than the ahd interval")
}
