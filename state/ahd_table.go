package state

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"
)

// AhdRecord is the average hop distance accepted for a beacon.
type AhdRecord struct {
	Beacon    NodeId
	Ahd       float64
	HopCount  uint32 // relays traversed by the packet that carried the value
	Seqno     uint16
	UpdatedAt time.Time
}

func (a AhdRecord) String() string {
	return fmt.Sprintf("(beacon: %s, ahd: %.3f, hops: %d, seqno: %d)", a.Beacon, a.Ahd, a.HopCount, a.Seqno)
}

type AhdTable struct {
	records map[NodeId]AhdRecord
}

func NewAhdTable() *AhdTable {
	return &AhdTable{records: make(map[NodeId]AhdRecord)}
}

// Record keeps the value that travelled the fewest hops from its beacon, breaking ties by the most recent seqno.
// pathHops is the current hop count to the beacon, 0 when unknown. A stored value that travelled fewer hops than
// pathHops came over a path that no longer exists, so any newer seqno replaces it.
func (t *AhdTable) Record(beacon NodeId, ahd float64, hopCount uint32, seqno uint16, pathHops uint32, now time.Time) UpdateResult {
	cur, ok := t.records[beacon]
	if ok && !(SeqnoLt(cur.Seqno, seqno) && cur.HopCount < pathHops) {
		if hopCount > cur.HopCount {
			return Ignored
		}
		if hopCount == cur.HopCount && !SeqnoLt(cur.Seqno, seqno) {
			return Ignored
		}
	}
	t.records[beacon] = AhdRecord{
		Beacon:    beacon,
		Ahd:       ahd,
		HopCount:  hopCount,
		Seqno:     seqno,
		UpdatedAt: now,
	}
	return Updated
}

func (t *AhdTable) Get(beacon NodeId) (AhdRecord, bool) {
	rec, ok := t.records[beacon]
	return rec, ok
}

func (t *AhdTable) Len() int {
	return len(t.records)
}

func (t *AhdTable) All() iter.Seq[AhdRecord] {
	return func(yield func(AhdRecord) bool) {
		for _, id := range slices.Sorted(maps.Keys(t.records)) {
			if !yield(t.records[id]) {
				return
			}
		}
	}
}

func (t *AhdTable) Expire(now time.Time, timeout time.Duration) []AhdRecord {
	expired := make([]AhdRecord, 0)
	for id, rec := range t.records {
		if now.Sub(rec.UpdatedAt) > timeout {
			expired = append(expired, rec)
			delete(t.records, id)
		}
	}
	slices.SortFunc(expired, func(a, b AhdRecord) int {
		return cmp.Compare(a.Beacon, b.Beacon)
	})
	return expired
}
