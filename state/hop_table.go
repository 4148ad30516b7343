package state

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"
)

type NodeId string

type UpdateResult int

const (
	Ignored UpdateResult = iota
	Updated
)

func (u UpdateResult) String() string {
	if u == Updated {
		return "Updated"
	}
	return "Ignored"
}

// BeaconRecord is what a node knows about a single beacon.
type BeaconRecord struct {
	Beacon    NodeId
	Position  Position
	HopCount  uint32
	Seqno     uint16
	Nh        NodeId // neighbour that delivered the accepted packet
	UpdatedAt time.Time
}

func (b BeaconRecord) String() string {
	return fmt.Sprintf("(beacon: %s, pos: %s, hops: %d, seqno: %d, nh: %s)", b.Beacon, b.Position, b.HopCount, b.Seqno, b.Nh)
}

// HopCountTable maps beacons to the smallest hop count heard in the most recent flooding epoch.
type HopCountTable struct {
	records map[NodeId]BeaconRecord
}

func NewHopCountTable() *HopCountTable {
	return &HopCountTable{records: make(map[NodeId]BeaconRecord)}
}

// Record applies a received flood. The update is accepted when either it is more
// recent than the current record, or it is equally recent and the hop count is strictly smaller.
func (t *HopCountTable) Record(beacon NodeId, pos Position, hopCount uint32, seqno uint16, from NodeId, now time.Time) UpdateResult {
	cur, ok := t.records[beacon]
	if ok && !SeqnoLt(cur.Seqno, seqno) && !(cur.Seqno == seqno && hopCount < cur.HopCount) {
		return Ignored
	}
	t.records[beacon] = BeaconRecord{
		Beacon:    beacon,
		Position:  pos,
		HopCount:  hopCount,
		Seqno:     seqno,
		Nh:        from,
		UpdatedAt: now,
	}
	return Updated
}

func (t *HopCountTable) Get(beacon NodeId) (BeaconRecord, bool) {
	rec, ok := t.records[beacon]
	return rec, ok
}

func (t *HopCountTable) Len() int {
	return len(t.records)
}

// AllKnownBeacons iterates over the records in beacon id order. The sequence may be ranged over more than once.
func (t *HopCountTable) AllKnownBeacons() iter.Seq[BeaconRecord] {
	return func(yield func(BeaconRecord) bool) {
		for _, id := range slices.Sorted(maps.Keys(t.records)) {
			if !yield(t.records[id]) {
				return
			}
		}
	}
}

// Expire removes records that have not been updated within timeout and returns them.
func (t *HopCountTable) Expire(now time.Time, timeout time.Duration) []BeaconRecord {
	expired := make([]BeaconRecord, 0)
	for id, rec := range t.records {
		if now.Sub(rec.UpdatedAt) > timeout {
			expired = append(expired, rec)
			delete(t.records, id)
		}
	}
	slices.SortFunc(expired, func(a, b BeaconRecord) int {
		return cmp.Compare(a.Beacon, b.Beacon)
	})
	return expired
}
