package state

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type NyModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// Clock reports simulated time.
type Clock interface {
	Now() time.Time
	// Elapsed is the time since the simulation started
	Elapsed() time.Duration
}

// LinkLayer delivers a payload to a neighbour. Delivery may be delayed, dropped or reordered.
type LinkLayer interface {
	Transmit(from, to NodeId, payload []byte)
}

// State access must be done only from the node's event loop
type State struct {
	*Env
	*RouterState
	Modules []NyModule
}

// Env can be read from any event
type Env struct {
	Clock
	Node  NodeId
	Peers []NodeId
	// DispatchFunc queues fun on this node's event loop after delay
	DispatchFunc func(delay time.Duration, fun func(s *State) error)
	ProtocolCfg
	Link     LinkLayer
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Stopping atomic.Bool
}
