package state

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
)

type AhdFallback string

const (
	// FallbackNone requires the AHD of the beacon itself
	FallbackNone AhdFallback = "none"
	// FallbackNearest borrows the AHD of the nearest beacon (by hops) that has one
	FallbackNearest AhdFallback = "nearest"
)

type NodeCfg struct {
	Id       NodeId
	Position Position
	Beacon   bool `yaml:",omitempty"`
}

// LinkCfg describes every virtual link in the scenario
type LinkCfg struct {
	Latency time.Duration `yaml:"latency,omitempty"`
	Jitter  time.Duration `yaml:"jitter,omitempty"`
	Loss    float64       `yaml:"loss,omitempty"`
}

type ProtocolCfg struct {
	FloodInterval       time.Duration `yaml:"flood_interval,omitempty"`
	AhdInterval         time.Duration `yaml:"ahd_interval,omitempty"`
	ExpiryTimeout       time.Duration `yaml:"expiry_timeout,omitempty"`
	MinBeacons          int           `yaml:"min_beacons,omitempty"`
	Dims                int           `yaml:"dims,omitempty"`
	DegenerateThreshold float64       `yaml:"degenerate_threshold,omitempty"`
	AhdFallback         AhdFallback   `yaml:"ahd_fallback,omitempty"`
}

// WithDefaults fills unset parameters from the package defaults.
func (p ProtocolCfg) WithDefaults() ProtocolCfg {
	if p.FloodInterval == 0 {
		p.FloodInterval = FloodInterval
	}
	if p.AhdInterval == 0 {
		p.AhdInterval = AhdInterval
	}
	if p.ExpiryTimeout == 0 {
		// three missed refreshes of the slower flood
		p.ExpiryTimeout = max(ExpiryTimeout, 3*max(p.FloodInterval, p.AhdInterval))
	}
	if p.Dims == 0 {
		p.Dims = SolverDims
	}
	if p.MinBeacons == 0 {
		p.MinBeacons = max(MinBeacons, p.Dims+1)
	}
	if p.DegenerateThreshold == 0 {
		p.DegenerateThreshold = DegenerateThreshold
	}
	if p.AhdFallback == "" {
		p.AhdFallback = FallbackNone
	}
	return p
}

type DumpKind string

const (
	DumpDistance DumpKind = "distance"
	DumpRouting  DumpKind = "routing"
)

type DumpCfg struct {
	Kind DumpKind
	At   time.Duration
	// Path to write the dump to, stdout when empty
	Path string `yaml:",omitempty"`
}

// ScenarioCfg is a complete simulation: the nodes, how they are linked, and what to record.
type ScenarioCfg struct {
	Name     string `yaml:",omitempty"`
	Seed     uint64
	Duration time.Duration
	Nodes    []NodeCfg
	// Graph lists links in the graph syntax of ParseGraph
	Graph []string `yaml:",omitempty"`
	// Range links every pair of nodes closer than Range (unit disk), used when Graph is empty
	Range    float64     `yaml:",omitempty"`
	Link     LinkCfg     `yaml:",omitempty"`
	Protocol ProtocolCfg `yaml:",omitempty"`
	Dumps    []DumpCfg   `yaml:",omitempty"`
	LogPath  string      `yaml:"log_path,omitempty"`
}

func (c *ScenarioCfg) NodeIds() []NodeId {
	ids := make([]NodeId, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		ids = append(ids, n.Id)
	}
	return ids
}

func (c *ScenarioCfg) TryGetNode(id NodeId) *NodeCfg {
	idx := slices.IndexFunc(c.Nodes, func(n NodeCfg) bool {
		return n.Id == id
	})
	if idx == -1 {
		return nil
	}
	return &c.Nodes[idx]
}

func (c *ScenarioCfg) GetNode(id NodeId) NodeCfg {
	n := c.TryGetNode(id)
	if n == nil {
		panic("node " + string(id) + " not found")
	}
	return *n
}

func (c *ScenarioCfg) Beacons() []NodeId {
	ids := make([]NodeId, 0)
	for _, n := range c.Nodes {
		if n.Beacon {
			ids = append(ids, n.Id)
		}
	}
	return ids
}

// Links returns every undirected link in the scenario, sorted.
func (c *ScenarioCfg) Links() ([]Pair[NodeId, NodeId], error) {
	if len(c.Graph) != 0 {
		names := make([]string, 0, len(c.Nodes))
		for _, n := range c.Nodes {
			names = append(names, string(n.Id))
		}
		return ParseGraph(c.Graph, names)
	}
	links := make([]Pair[NodeId, NodeId], 0)
	for i, a := range c.Nodes {
		for _, b := range c.Nodes[i+1:] {
			if a.Position.DistanceTo(b.Position) <= c.Range {
				links = append(links, MakeSortedPair(a.Id, b.Id))
			}
		}
	}
	SortPairs(links)
	return links, nil
}

// Adjacency maps every node to its sorted neighbours.
func (c *ScenarioCfg) Adjacency() (map[NodeId][]NodeId, error) {
	links, err := c.Links()
	if err != nil {
		return nil, err
	}
	adj := make(map[NodeId][]NodeId)
	for _, n := range c.Nodes {
		adj[n.Id] = make([]NodeId, 0)
	}
	for _, l := range links {
		adj[l.V1] = append(adj[l.V1], l.V2)
		adj[l.V2] = append(adj[l.V2], l.V1)
	}
	for k := range adj {
		slices.Sort(adj[k])
	}
	return adj, nil
}

func (c *ScenarioCfg) GetPeers(id NodeId) []NodeId {
	adj, err := c.Adjacency()
	if err != nil {
		panic(err)
	}
	return adj[id]
}

func ReadScenario(path string) (*ScenarioCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &ScenarioCfg{}
	err = yaml.Unmarshal(file, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	cfg.Protocol = cfg.Protocol.WithDefaults()
	err = ScenarioValidator(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return cfg, nil
}

func WriteScenario(path string, cfg *ScenarioCfg) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
