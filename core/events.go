package core

type RouterEvent int

// trace events

const (
	BeaconUpdated RouterEvent = iota
	AhdUpdated
	AhdComputed
	AhdWithdrawn
	DistanceChanged
	PositionEstimated
	PositionLost
	SolveInsufficient
	SolveDegenerate
	RouteAdded
	RouteChanged
	RouteRemoved
	EntryExpired
	PacketDropped
)

// warn events

const (
	InconsistentState RouterEvent = iota + 1000
	UnknownNeighbour
	MalformedBundle
)

func (e RouterEvent) String() string {
	switch e {
	case BeaconUpdated:
		return "BeaconUpdated"
	case AhdUpdated:
		return "AhdUpdated"
	case AhdComputed:
		return "AhdComputed"
	case AhdWithdrawn:
		return "AhdWithdrawn"
	case DistanceChanged:
		return "DistanceChanged"
	case PositionEstimated:
		return "PositionEstimated"
	case PositionLost:
		return "PositionLost"
	case SolveInsufficient:
		return "SolveInsufficient"
	case SolveDegenerate:
		return "SolveDegenerate"
	case RouteAdded:
		return "RouteAdded"
	case RouteChanged:
		return "RouteChanged"
	case RouteRemoved:
		return "RouteRemoved"
	case EntryExpired:
		return "EntryExpired"
	case PacketDropped:
		return "PacketDropped"
	case InconsistentState:
		return "InconsistentState"
	case UnknownNeighbour:
		return "UnknownNeighbour"
	case MalformedBundle:
		return "MalformedBundle"
	}
	return "Unknown"
}

// IsWarning reports whether the event indicates a fault rather than normal protocol progress.
func (e RouterEvent) IsWarning() bool {
	return e >= InconsistentState
}
