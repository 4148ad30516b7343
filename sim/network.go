package sim

import (
	"cmp"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/encodeous/dvhop/state"
)

type VirtualLink struct {
	Edge       state.Pair[state.NodeId, state.NodeId]
	Latency    time.Duration
	Jitter     time.Duration
	PacketLoss float64
	Down       bool
}

func (v *VirtualLink) WithLatency(lat, jitter time.Duration) *VirtualLink {
	v.Latency = lat
	v.Jitter = jitter
	return v
}

func (v *VirtualLink) WithPacketLoss(loss float64) *VirtualLink {
	v.PacketLoss = loss
	return v
}

// delay samples the transit time of one payload, or false if the payload is lost
func (v *VirtualLink) delay(rng *rand.Rand) (time.Duration, bool) {
	if v.Down {
		return 0, false
	}
	if v.PacketLoss > 0 && rng.Float64() < v.PacketLoss {
		return 0, false
	}
	lat := v.Latency
	if v.Jitter > 0 {
		lat += time.Duration(rng.Float64() * float64(v.Jitter.Nanoseconds()))
	}
	return lat, true
}

// PacketFilter sees every payload before it enters a link. Return true to intercept it.
type PacketFilter func(from, to state.NodeId, payload []byte) bool

func (h PacketFilter) TryApply(from, to state.NodeId, payload []byte) bool {
	if h == nil {
		return false
	}
	return h(from, to, payload)
}

// VirtualNetwork carries bundles between simulated neighbours over the engine's clock.
type VirtualNetwork struct {
	engine   *Engine
	registry *Registry
	rng      *rand.Rand
	links    map[state.Pair[state.NodeId, state.NodeId]]*VirtualLink
	log      *slog.Logger
	Filter   PacketFilter

	Delivered uint64
	Dropped   uint64
}

var _ state.LinkLayer = (*VirtualNetwork)(nil)

func NewVirtualNetwork(engine *Engine, registry *Registry, rng *rand.Rand, log *slog.Logger) *VirtualNetwork {
	return &VirtualNetwork{
		engine:   engine,
		registry: registry,
		rng:      rng,
		links:    make(map[state.Pair[state.NodeId, state.NodeId]]*VirtualLink),
		log:      log,
	}
}

// AddLink adds an undirected link between a and b, or returns the existing one.
func (v *VirtualNetwork) AddLink(a, b state.NodeId) *VirtualLink {
	edge := state.MakeSortedPair(a, b)
	if link, ok := v.links[edge]; ok {
		return link
	}
	link := &VirtualLink{Edge: edge}
	v.links[edge] = link
	return link
}

func (v *VirtualNetwork) Link(a, b state.NodeId) *VirtualLink {
	return v.links[state.MakeSortedPair(a, b)]
}

// Links returns every link, sorted by edge
func (v *VirtualNetwork) Links() []*VirtualLink {
	links := make([]*VirtualLink, 0, len(v.links))
	for _, l := range v.links {
		links = append(links, l)
	}
	slices.SortFunc(links, func(a, b *VirtualLink) int {
		return cmp.Or(cmp.Compare(a.Edge.V1, b.Edge.V1), cmp.Compare(a.Edge.V2, b.Edge.V2))
	})
	return links
}

// SetLinkDown takes a link down or brings it back up. Payloads already in flight are still delivered.
func (v *VirtualNetwork) SetLinkDown(a, b state.NodeId, down bool) {
	if link := v.Link(a, b); link != nil {
		link.Down = down
		v.log.Debug("link state changed", "a", a, "b", b, "down", down)
	}
}

func (v *VirtualNetwork) Transmit(from, to state.NodeId, payload []byte) {
	if v.Filter.TryApply(from, to, payload) {
		v.Dropped++
		return
	}
	link := v.Link(from, to)
	if link == nil {
		v.Dropped++
		return // no connection, dropped packet
	}
	lat, ok := link.delay(v.rng)
	if !ok {
		v.Dropped++
		return
	}
	dst, ok := v.registry.Get(to)
	if !ok {
		v.Dropped++
		return
	}
	pkt := slices.Clone(payload)
	v.Delivered++
	v.engine.ScheduleNode(dst, lat, func(s *state.State) error {
		return dst.Router.Deliver(from, pkt)
	})
}
