package core

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/encodeous/dvhop/state"
)

func currentPosition(s *state.RouterState) *state.Position {
	if s.Localization != state.Localized {
		return nil
	}
	if cur := s.CurrentPosition(); cur != nil {
		p := *cur
		return &p
	}
	return nil
}

// DumpDistanceTable snapshots the distance table of a node, one entry per known beacon. Beacons without an AHD
// have NaN in place of the AHD and distance. It does not modify s.
func DumpDistanceTable(s *state.RouterState, at time.Duration) state.DistanceTableDump {
	dump := state.DistanceTableDump{
		Node:     s.Id,
		At:       at,
		Position: currentPosition(s),
		Entries:  make([]state.DistanceEntry, 0, s.Hops.Len()),
	}
	for rec := range s.Hops.AllKnownBeacons() {
		if entry, ok := s.Distances[rec.Beacon]; ok {
			dump.Entries = append(dump.Entries, entry)
			continue
		}
		dump.Entries = append(dump.Entries, state.DistanceEntry{
			Beacon:            rec.Beacon,
			Position:          rec.Position,
			Ahd:               math.NaN(),
			HopCount:          rec.HopCount,
			EstimatedDistance: math.NaN(),
		})
	}
	return dump
}

// DumpRoutingTable snapshots the routing table of a node. It does not modify s.
func DumpRoutingTable(s *state.RouterState, at time.Duration) state.RoutingTableDump {
	dump := state.RoutingTableDump{
		Node:     s.Id,
		At:       at,
		Position: currentPosition(s),
		Entries:  make([]state.RouteEntry, 0, len(s.Routes)),
	}
	for _, dst := range slices.Sorted(maps.Keys(s.Routes)) {
		dump.Entries = append(dump.Entries, s.Routes[dst])
	}
	return dump
}
