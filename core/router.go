package core

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/encodeous/dvhop/perf"
	"github.com/encodeous/dvhop/protocol"
	"github.com/encodeous/dvhop/state"
	"github.com/jellydator/ttlcache/v3"
)

var ErrLocalizationStarted = errors.New("localization has already started")

// Localizer is the capability every node's protocol instance exposes to the harness.
type Localizer interface {
	SetBeacon(isBeacon bool) error
	SetPosition(pos state.Position) error
	// Deliver must be called from the node's event loop
	Deliver(from state.NodeId, payload []byte) error
	PositionEstimate() (*state.Position, bool)
	DumpDistanceTable() state.DistanceTableDump
	DumpRoutingTable() state.RoutingTableDump
}

var _ Localizer = (*DvHopRouter)(nil)
var _ Router = (*DvHopRouter)(nil)
var _ state.NyModule = (*DvHopRouter)(nil)

// PacketKey identifies a packet exactly, hop count included
type PacketKey struct {
	Kind     protocol.Kind
	Origin   state.NodeId
	Beacon   state.NodeId
	Seqno    uint16
	HopCount uint32
}

func packetKey(p protocol.Packet) PacketKey {
	switch {
	case p.Flood != nil:
		return PacketKey{Kind: protocol.KindFlood, Origin: p.Flood.Origin, Beacon: p.Flood.Origin, Seqno: p.Flood.Seqno, HopCount: p.Flood.HopCount}
	case p.Ahd != nil:
		return PacketKey{Kind: protocol.KindAhd, Origin: p.Ahd.Origin, Beacon: p.Ahd.Beacon, Seqno: p.Ahd.Seqno, HopCount: p.Ahd.HopCount}
	}
	return PacketKey{}
}

type DvHopRouter struct {
	*state.State
	IO map[state.NodeId]*IOPending
	// Dedup remembers the most recently processed packets
	Dedup   *ttlcache.Cache[PacketKey, struct{}]
	Metrics *perf.ProtocolCollector

	beacon    bool
	position  *state.Position
	localized bool
}

func NewDvHopRouter(metrics *perf.ProtocolCollector) *DvHopRouter {
	return &DvHopRouter{Metrics: metrics}
}

func (r *DvHopRouter) started() bool {
	return r.State != nil && r.RouterState != nil && r.Started
}

func (r *DvHopRouter) SetBeacon(isBeacon bool) error {
	if r.started() {
		return ErrLocalizationStarted
	}
	r.beacon = isBeacon
	return nil
}

func (r *DvHopRouter) SetPosition(pos state.Position) error {
	if r.started() {
		return ErrLocalizationStarted
	}
	r.position = &pos
	return nil
}

func (r *DvHopRouter) GetNeighIO(neigh state.NodeId) *IOPending {
	nio, ok := r.IO[neigh]
	if !ok {
		nio = &IOPending{
			Packets: make(map[pendingKey]protocol.Packet),
		}
		r.IO[neigh] = nio
	}
	return nio
}

func (r *DvHopRouter) Send(neigh state.NodeId, pkt protocol.Packet) {
	nio := r.GetNeighIO(neigh)
	// anything queued later was accepted later, so it supersedes the buffered packet
	nio.Packets[pendingKeyOf(pkt)] = pkt
}

func (r *DvHopRouter) Broadcast(pkt protocol.Packet, except state.NodeId) {
	for _, neigh := range r.Neighbours {
		if neigh == except {
			continue
		}
		r.Send(neigh, pkt)
	}
}

func (r *DvHopRouter) Now() time.Time {
	return r.Clock.Now()
}

func (r *DvHopRouter) Cfg() state.ProtocolCfg {
	return r.ProtocolCfg
}

func (r *DvHopRouter) Log(event RouterEvent, desc string, args ...any) {
	r.Metrics.Event(event.String())
	if event.IsWarning() {
		r.Env.Log.Warn(fmt.Sprintf("%s %s", event.String(), desc), args...)
		return
	}
	r.Env.Log.Debug(fmt.Sprintf("%s %s", event.String(), desc), args...)
}

// Receive runs a single packet through the dispatcher.
func (r *DvHopRouter) Receive(from state.NodeId, pkt protocol.Packet) Verdict {
	key := packetKey(pkt)
	if r.Dedup.Has(key) {
		return DuplicateDropped
	}
	r.Dedup.Set(key, struct{}{}, ttlcache.DefaultTTL)
	switch {
	case pkt.Flood != nil:
		return HandleFlood(r.RouterState, r, from, pkt.Flood)
	case pkt.Ahd != nil:
		return HandleAhd(r.RouterState, r, from, pkt.Ahd)
	}
	return StaleDropped
}

func (r *DvHopRouter) Deliver(from state.NodeId, payload []byte) error {
	if !r.IsNeighbour(from) {
		r.Log(UnknownNeighbour, "received bundle from unknown neighbour", "from", from)
		return nil
	}
	perf.RecvBytesPerSecond.Add(float64(len(payload)))
	bundle, err := protocol.UnmarshalBundle(payload)
	if err != nil {
		r.Log(MalformedBundle, "dropped malformed bundle", "from", from, "err", err)
		return nil
	}
	perf.RecvBatchSize.Add(float64(len(bundle.Packets)))
	for _, pkt := range bundle.Packets {
		verdict := r.Receive(from, pkt)
		r.Metrics.Packet(pkt.Kind().String(), verdict.String())
		if verdict != Accepted {
			r.Log(PacketDropped, "packet dropped", "from", from, "verdict", verdict, "pkt", pkt)
		}
	}
	r.syncLocalized()
	return nil
}

func (r *DvHopRouter) PositionEstimate() (*state.Position, bool) {
	if !r.started() {
		return nil, false
	}
	pos := r.CurrentPosition()
	if pos == nil || r.Localization != state.Localized {
		return nil, false
	}
	p := *pos
	return &p, true
}

// DumpDistanceTable is empty until the router has started.
func (r *DvHopRouter) DumpDistanceTable() state.DistanceTableDump {
	if !r.started() {
		return state.DistanceTableDump{}
	}
	return DumpDistanceTable(r.RouterState, r.Elapsed())
}

func (r *DvHopRouter) DumpRoutingTable() state.RoutingTableDump {
	if !r.started() {
		return state.RoutingTableDump{}
	}
	return DumpRoutingTable(r.RouterState, r.Elapsed())
}

func (r *DvHopRouter) syncLocalized() {
	loc := r.Localization == state.Localized
	if loc == r.localized {
		return
	}
	r.localized = loc
	if loc {
		r.Metrics.Localized(1)
	} else {
		r.Metrics.Localized(-1)
	}
}

func (r *DvHopRouter) Cleanup(s *state.State) error {
	if r.localized {
		r.Metrics.Localized(-1)
		r.localized = false
	}
	r.IO = nil
	if r.Dedup != nil {
		r.Dedup.DeleteAll()
	}
	return nil
}

func (r *DvHopRouter) GcRouter(s *state.State) error {
	RunGC(s.RouterState, r)
	for id := range r.IO {
		if !s.IsNeighbour(id) {
			delete(r.IO, id)
		}
	}
	r.Dedup.DeleteExpired()
	r.syncLocalized()
	return nil
}

func (r *DvHopRouter) Init(s *state.State) error {
	s.Log.Debug("init router")
	r.State = s
	r.IO = make(map[state.NodeId]*IOPending)
	r.Dedup = ttlcache.New[PacketKey, struct{}](
		ttlcache.WithCapacity[PacketKey, struct{}](state.DedupCapacity),
		ttlcache.WithDisableTouchOnHit[PacketKey, struct{}](),
	)

	rs := state.NewRouterState(s.Node)
	rs.IsBeacon = r.beacon
	if r.position != nil {
		pos := *r.position
		rs.Position = &pos
	}
	if rs.IsBeacon && rs.Position == nil {
		return fmt.Errorf("beacon %s has no position", s.Node)
	}
	rs.Neighbours = slices.Sorted(slices.Values(s.Peers))
	s.RouterState = rs
	rs.Started = true

	s.Log.Debug("schedule router tasks", "beacon", rs.IsBeacon, "neighbours", len(rs.Neighbours))
	s.Env.RepeatTask(r.flushIO, state.NeighbourIOFlushDelay)
	s.Env.RepeatTask(r.GcRouter, state.GcDelay)
	if rs.IsBeacon {
		s.Env.RepeatTask(func(s *state.State) error {
			OriginateFlood(s.RouterState, r)
			return nil
		}, s.FloodInterval)
		s.Env.RepeatTask(func(s *state.State) error {
			OriginateAhd(s.RouterState, r)
			return nil
		}, s.AhdInterval)
	}

	Recompute(rs, r)
	r.syncLocalized()
	return nil
}
