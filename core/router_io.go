package core

import (
	"cmp"
	"maps"
	"slices"

	"github.com/encodeous/dvhop/perf"
	"github.com/encodeous/dvhop/protocol"
	"github.com/encodeous/dvhop/state"
)

// pendingKey is the slot a packet occupies in a neighbour's send buffer
type pendingKey struct {
	Kind   protocol.Kind
	Origin state.NodeId
	Beacon state.NodeId
}

func pendingKeyOf(p protocol.Packet) pendingKey {
	k := packetKey(p)
	return pendingKey{Kind: k.Kind, Origin: k.Origin, Beacon: k.Beacon}
}

func comparePending(a, b pendingKey) int {
	return cmp.Or(
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Origin, b.Origin),
		cmp.Compare(a.Beacon, b.Beacon),
	)
}

type IOPending struct {
	Packets map[pendingKey]protocol.Packet
}

func (r *DvHopRouter) flushIO(s *state.State) error {
	for _, neigh := range s.Neighbours {
		nio := r.IO[neigh]
		if nio == nil || len(nio.Packets) == 0 {
			continue
		}
		keys := slices.SortedFunc(maps.Keys(nio.Packets), comparePending)
		for len(keys) > 0 {
			bundle := protocol.Bundle{}
			tLength := 0

			// we can coalesce packets, but a bundle must fit in one link layer frame
			for len(keys) > 0 {
				pkt := nio.Packets[keys[0]]
				size := pkt.BundledSize()
				if tLength > 0 && tLength+size > state.SafeMTU {
					break
				}
				delete(nio.Packets, keys[0])
				keys = keys[1:]
				bundle.Packets = append(bundle.Packets, pkt)
				tLength += size
			}

			payload := protocol.MarshalBundle(bundle)
			s.Link.Transmit(s.Id, neigh, payload)
			perf.SendBatchSize.Add(float64(len(bundle.Packets)))
			perf.SentBytesPerSecond.Add(float64(len(payload)))
			r.Metrics.Bundle(len(payload))
		}
	}
	return nil
}
