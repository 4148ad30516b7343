package state

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"
)

type LocalizationState int

const (
	Unlocalized LocalizationState = iota
	Localized
)

func (l LocalizationState) String() string {
	if l == Localized {
		return "Localized"
	}
	return "Unlocalized"
}

// DistanceEntry is the estimated distance to a beacon, HopCount × Ahd.
type DistanceEntry struct {
	Beacon            NodeId
	Position          Position
	Ahd               float64
	HopCount          uint32
	EstimatedDistance float64
}

// Estimated reports whether the entry carries a distance. Dumps list beacons that still lack an AHD with NaN values.
func (d DistanceEntry) Estimated() bool {
	return !math.IsNaN(d.EstimatedDistance)
}

type RouteEntry struct {
	Destination       NodeId
	Nh                NodeId
	HopCount          uint32
	EstimatedDistance *float64
	EstimatedPosition *Position
}

func (r RouteEntry) String() string {
	return fmt.Sprintf("(nh: %s, hops: %d, distance: %s, position: %s)", r.Nh, r.HopCount, formatDistance(r.EstimatedDistance), FormatPosition(r.EstimatedPosition))
}

// Equal compares entries by value, including the optional fields.
func (r RouteEntry) Equal(o RouteEntry) bool {
	if r.Destination != o.Destination || r.Nh != o.Nh || r.HopCount != o.HopCount {
		return false
	}
	if (r.EstimatedDistance == nil) != (o.EstimatedDistance == nil) ||
		r.EstimatedDistance != nil && *r.EstimatedDistance != *o.EstimatedDistance {
		return false
	}
	if (r.EstimatedPosition == nil) != (o.EstimatedPosition == nil) ||
		r.EstimatedPosition != nil && *r.EstimatedPosition != *o.EstimatedPosition {
		return false
	}
	return true
}

// RouterState is the protocol state of one node. It must only be accessed from the node's dispatch loop.
type RouterState struct {
	Id       NodeId
	IsBeacon bool
	Position *Position // configured position, beacons only
	Started  bool

	FloodSeqno uint16
	AhdSeqno   uint16
	// SelfAhd is the average hop distance computed by this node when it is a beacon
	SelfAhd *float64

	Hops      *HopCountTable
	Ahds      *AhdTable
	Distances map[NodeId]DistanceEntry

	Localization LocalizationState
	Estimate     *Position

	Routes     map[NodeId]RouteEntry
	Neighbours []NodeId
}

func NewRouterState(id NodeId) *RouterState {
	return &RouterState{
		Id:         id,
		Hops:       NewHopCountTable(),
		Ahds:       NewAhdTable(),
		Distances:  make(map[NodeId]DistanceEntry),
		Routes:     make(map[NodeId]RouteEntry),
		Neighbours: make([]NodeId, 0),
	}
}

func (s *RouterState) IsNeighbour(id NodeId) bool {
	return slices.Contains(s.Neighbours, id)
}

// CurrentPosition is the configured position of a beacon, or the estimate of an ordinary node.
func (s *RouterState) CurrentPosition() *Position {
	if s.IsBeacon && s.Position != nil {
		return s.Position
	}
	return s.Estimate
}

func (s *RouterState) StringRoutes() string {
	out := make([]string, 0, len(s.Routes))
	for _, dst := range slices.Sorted(maps.Keys(s.Routes)) {
		out = append(out, fmt.Sprintf("%s via %s", dst, s.Routes[dst]))
	}
	return strings.Join(out, "\n")
}

type DistanceTableDump struct {
	Node     NodeId
	At       time.Duration
	Position *Position
	Entries  []DistanceEntry
}

func (d DistanceTableDump) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("node %s time %.3fs position %s\n", d.Node, d.At.Seconds(), FormatPosition(d.Position)))
	for _, e := range d.Entries {
		sb.WriteString(fmt.Sprintf("beacon %s ahd %s hops %d distance %s\n", e.Beacon, formatFloat(e.Ahd), e.HopCount, formatFloat(e.EstimatedDistance)))
	}
	return sb.String()
}

type RoutingTableDump struct {
	Node     NodeId
	At       time.Duration
	Position *Position
	Entries  []RouteEntry
}

func (d RoutingTableDump) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("node %s time %.3fs position %s\n", d.Node, d.At.Seconds(), FormatPosition(d.Position)))
	for _, e := range d.Entries {
		sb.WriteString(fmt.Sprintf("dest %s nh %s hops %d distance %s position %s\n", e.Destination, e.Nh, e.HopCount, formatDistance(e.EstimatedDistance), FormatPosition(e.EstimatedPosition)))
	}
	return sb.String()
}

func formatDistance(d *float64) string {
	if d == nil {
		return "-"
	}
	return formatFloat(*d)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}
