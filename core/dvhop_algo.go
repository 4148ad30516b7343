package core

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/encodeous/dvhop/protocol"
	"github.com/encodeous/dvhop/state"
)

// Verdict is the outcome of receiving a control packet.
type Verdict int

const (
	Accepted Verdict = iota
	DuplicateDropped
	StaleDropped
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case DuplicateDropped:
		return "duplicate"
	default:
		return "stale"
	}
}

// Router is an interface that defines the operations the protocol needs from its host
type Router interface {
	// Broadcast queues pkt for every neighbour except the given one, which may be empty
	Broadcast(pkt protocol.Packet, except state.NodeId)
	Now() time.Time
	Cfg() state.ProtocolCfg
	Log(event RouterEvent, desc string, args ...any)
}

// HandleFlood applies a beacon flood received from a neighbour and re-broadcasts it when it improves our knowledge.
func HandleFlood(s *state.RouterState, r Router, from state.NodeId, f *protocol.Flood) Verdict {
	if f.Origin == s.Id {
		return StaleDropped // echo of our own flood
	}
	if s.Hops.Record(f.Origin, f.Position, f.HopCount, f.Seqno, from, r.Now()) == state.Ignored {
		return StaleDropped
	}
	r.Log(BeaconUpdated, "beacon record updated", "beacon", f.Origin, "hops", f.HopCount, "seqno", f.Seqno, "nh", from)

	if f.HopCount < state.INFM {
		fwd := *f
		fwd.HopCount = state.AddHop(f.HopCount)
		r.Broadcast(protocol.Packet{Flood: &fwd}, from)
	}

	RefreshBeaconAhd(s, r)
	Recompute(s, r)
	return Accepted
}

// HandleAhd applies an average hop distance broadcast. The value itself is forwarded unchanged.
func HandleAhd(s *state.RouterState, r Router, from state.NodeId, a *protocol.Ahd) Verdict {
	if a.Origin == s.Id || a.Beacon == s.Id {
		return StaleDropped
	}
	pathHops := uint32(0)
	if rec, ok := s.Hops.Get(a.Beacon); ok {
		pathHops = rec.HopCount
	}
	if s.Ahds.Record(a.Beacon, a.Ahd, a.HopCount, a.Seqno, pathHops, r.Now()) == state.Ignored {
		return StaleDropped
	}
	r.Log(AhdUpdated, "ahd updated", "beacon", a.Beacon, "ahd", a.Ahd, "hops", a.HopCount, "seqno", a.Seqno)

	if a.HopCount < state.INFM {
		fwd := *a
		fwd.HopCount = state.AddHop(a.HopCount)
		r.Broadcast(protocol.Packet{Ahd: &fwd}, from)
	}

	Recompute(s, r)
	return Accepted
}

// ComputeAhd is the average hop distance of a beacon over every other beacon it knows:
// Σ distance(self, j) / Σ hops(self, j). It needs at least one other beacon.
func ComputeAhd(s *state.RouterState) (float64, bool) {
	if !s.IsBeacon || s.Position == nil {
		return 0, false
	}
	sumDist := 0.0
	sumHops := uint64(0)
	for rec := range s.Hops.AllKnownBeacons() {
		if rec.HopCount == 0 || rec.HopCount >= state.INFM {
			continue
		}
		sumDist += s.Position.DistanceTo(rec.Position)
		sumHops += uint64(rec.HopCount)
	}
	if sumHops == 0 {
		return 0, false
	}
	return sumDist / float64(sumHops), true
}

// RefreshBeaconAhd recomputes our own AHD as a beacon, flooding it when it changes.
func RefreshBeaconAhd(s *state.RouterState, r Router) {
	if !s.IsBeacon {
		return
	}
	ahd, ok := ComputeAhd(s)
	if !ok {
		if s.SelfAhd != nil {
			s.SelfAhd = nil
			r.Log(AhdWithdrawn, "no other beacons known, ahd withdrawn")
		}
		return
	}
	if s.SelfAhd != nil && *s.SelfAhd == ahd {
		return
	}
	s.SelfAhd = &ahd
	r.Log(AhdComputed, "average hop distance computed", "ahd", ahd)
	OriginateAhd(s, r)
}

func OriginateFlood(s *state.RouterState, r Router) {
	if !s.IsBeacon || s.Position == nil {
		return
	}
	s.FloodSeqno++
	r.Broadcast(protocol.Packet{Flood: &protocol.Flood{
		Origin:   s.Id,
		Position: *s.Position,
		HopCount: 1,
		Seqno:    s.FloodSeqno,
	}}, "")
}

func OriginateAhd(s *state.RouterState, r Router) {
	if !s.IsBeacon || s.SelfAhd == nil {
		return
	}
	s.AhdSeqno++
	r.Broadcast(protocol.Packet{Ahd: &protocol.Ahd{
		Origin:   s.Id,
		Beacon:   s.Id,
		Ahd:      *s.SelfAhd,
		HopCount: 1,
		Seqno:    s.AhdSeqno,
	}}, "")
}

func nearestAhd(s *state.RouterState) (float64, bool) {
	if s.IsBeacon && s.SelfAhd != nil {
		return *s.SelfAhd, true
	}
	best := state.INF
	ahd := 0.0
	for rec := range s.Hops.AllKnownBeacons() {
		a, ok := s.Ahds.Get(rec.Beacon)
		if ok && rec.HopCount < best {
			best = rec.HopCount
			ahd = a.Ahd
		}
	}
	return ahd, best != state.INF
}

// ComputeDistances rebuilds the distance table from the hop counts and AHD values. It reports whether the table changed.
func ComputeDistances(s *state.RouterState, r Router) bool {
	fallback := r.Cfg().AhdFallback
	next := make(map[state.NodeId]state.DistanceEntry)
	for rec := range s.Hops.AllKnownBeacons() {
		ahd := 0.0
		a, ok := s.Ahds.Get(rec.Beacon)
		if ok {
			ahd = a.Ahd
		} else if fallback == state.FallbackNearest {
			ahd, ok = nearestAhd(s)
		}
		if !ok {
			continue
		}
		next[rec.Beacon] = state.DistanceEntry{
			Beacon:            rec.Beacon,
			Position:          rec.Position,
			Ahd:               ahd,
			HopCount:          rec.HopCount,
			EstimatedDistance: float64(rec.HopCount) * ahd,
		}
	}

	changed := false
	for _, id := range slices.Sorted(maps.Keys(next)) {
		entry := next[id]
		if old, ok := s.Distances[id]; !ok || old != entry {
			changed = true
			r.Log(DistanceChanged, "distance updated", "beacon", id, "distance", entry.EstimatedDistance)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(s.Distances)) {
		if _, ok := next[id]; !ok {
			changed = true
			r.Log(DistanceChanged, "distance removed", "beacon", id)
		}
	}
	s.Distances = next
	return changed
}

// Localize recomputes the position estimate from the distance table.
func Localize(s *state.RouterState, r Router) {
	if s.IsBeacon {
		if s.Position != nil && s.Localization != state.Localized {
			s.Localization = state.Localized
			r.Log(PositionEstimated, "beacon at configured position", "pos", *s.Position)
		}
		return
	}

	anchors := make([]Anchor, 0, len(s.Distances))
	for _, id := range slices.Sorted(maps.Keys(s.Distances)) {
		d := s.Distances[id]
		anchors = append(anchors, Anchor{Beacon: id, Position: d.Position, Distance: d.EstimatedDistance})
	}
	pos, err := Solve(anchors, SolverCfgOf(r.Cfg()))
	switch {
	case errors.Is(err, ErrInsufficientBeacons):
		r.Log(SolveInsufficient, "not enough beacon distances", "have", len(anchors))
		if s.Localization == state.Localized {
			s.Localization = state.Unlocalized
			s.Estimate = nil
			r.Log(PositionLost, "position estimate lost")
		}
	case err != nil:
		// keep the previous estimate, if any
		r.Log(SolveDegenerate, "solve rejected", "err", err)
	default:
		if s.Estimate == nil || *s.Estimate != pos {
			s.Estimate = &pos
			s.Localization = state.Localized
			r.Log(PositionEstimated, "position estimated", "pos", pos)
		}
	}
}

// ComputeRoutes rebuilds the routing table: one route per known beacon through the neighbour that delivered its record.
func ComputeRoutes(s *state.RouterState, r Router) {
	var pos *state.Position
	if cur := s.CurrentPosition(); cur != nil {
		p := *cur
		pos = &p
	}

	newTable := make(map[state.NodeId]state.RouteEntry)
	for rec := range s.Hops.AllKnownBeacons() {
		entry := state.RouteEntry{
			Destination:       rec.Beacon,
			Nh:                rec.Nh,
			HopCount:          rec.HopCount,
			EstimatedPosition: pos,
		}
		if d, ok := s.Distances[rec.Beacon]; ok {
			dist := d.EstimatedDistance
			entry.EstimatedDistance = &dist
		}
		newTable[rec.Beacon] = entry
	}

	for _, dst := range slices.Sorted(maps.Keys(newTable)) {
		route := newTable[dst]
		old, exists := s.Routes[dst]
		if !exists {
			r.Log(RouteAdded, "route added", "dst", dst, "route", route)
		} else if !old.Equal(route) {
			r.Log(RouteChanged, "route changed", "dst", dst, "route", route)
		}
	}
	for _, dst := range slices.Sorted(maps.Keys(s.Routes)) {
		if _, ok := newTable[dst]; !ok {
			r.Log(RouteRemoved, "route removed", "dst", dst)
		}
	}
	s.Routes = newTable
}

// Recompute derives the distance table, position estimate and routing table from the current records.
func Recompute(s *state.RouterState, r Router) {
	if ComputeDistances(s, r) || s.IsBeacon {
		Localize(s, r)
	}
	ComputeRoutes(s, r)
}

// RunGC expires records that have not been refreshed within the expiry timeout.
func RunGC(s *state.RouterState, r Router) {
	now := r.Now()
	timeout := r.Cfg().ExpiryTimeout
	expired := false
	for _, rec := range s.Hops.Expire(now, timeout) {
		r.Log(EntryExpired, "beacon record expired", "beacon", rec.Beacon, "last", rec.UpdatedAt)
		expired = true
	}
	for _, rec := range s.Ahds.Expire(now, timeout) {
		r.Log(EntryExpired, "ahd record expired", "beacon", rec.Beacon, "last", rec.UpdatedAt)
		expired = true
	}
	if expired {
		RefreshBeaconAhd(s, r)
		Recompute(s, r)
	}
}
