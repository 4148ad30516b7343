package state

import "time"

const (
	// INF is an unreachable hop count.
	INF = ^(uint32)(0)
	// INFM is the largest hop count that is still reachable.
	INFM = INF - 1
)

var (
	FloodInterval         = time.Second * 2
	AhdInterval           = time.Second * 2
	NeighbourIOFlushDelay = time.Millisecond * 50
	GcDelay               = time.Millisecond * 500
	ExpiryTimeout         = 3 * FloodInterval
	SafeMTU               = 1200

	// DedupCapacity bounds the number of processed packets remembered per node.
	DedupCapacity = uint64(4096)

	MinBeacons          = 3
	SolverDims          = 2
	DegenerateThreshold = 1e-9

	// SlowDispatch is the threshold above which a dispatched task is reported.
	SlowDispatch = time.Millisecond * 4

	// default simulation start
	SimEpoch = time.Unix(0, 0).UTC()
)
