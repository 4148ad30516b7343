package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/dvhop/protocol"
	"github.com/encodeous/dvhop/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// RouterHarness records what the protocol asks of its host
type RouterHarness struct {
	now     time.Duration
	cfg     state.ProtocolCfg
	actions []HarnessEvent
}

func NewRouterHarness() *RouterHarness {
	return &RouterHarness{
		cfg: state.ProtocolCfg{}.WithDefaults(),
	}
}

func (h *RouterHarness) Advance(d time.Duration) {
	h.now += d
}

func (h *RouterHarness) Broadcast(pkt protocol.Packet, except state.NodeId) {
	if except == "" {
		h.actions = append(h.actions, MakeEvent("BROADCAST", pkt))
		return
	}
	h.actions = append(h.actions, MakeEvent("BROADCAST_EXCEPT", except, pkt))
}

func (h *RouterHarness) Now() time.Time {
	return state.SimEpoch.Add(h.now)
}

func (h *RouterHarness) Cfg() state.ProtocolCfg {
	return h.cfg
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns and clears everything except log events
func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		}
	}

	h.actions = make([]HarnessEvent, 0)
	return x
}

// GetLogs returns and clears the logged router events
func (h *RouterHarness) GetLogs() []RouterEvent {
	x := make([]RouterEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action.Args[0].(RouterEvent))
		}
	}
	h.actions = make([]HarnessEvent, 0)
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg, cmpopts.EquateEmpty()) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

func MakeRouterState(id state.NodeId, neighbours ...state.NodeId) *state.RouterState {
	rs := state.NewRouterState(id)
	rs.Neighbours = slices.Sorted(slices.Values(neighbours))
	rs.Started = true
	return rs
}

func MakeBeacon(id state.NodeId, pos state.Position, neighbours ...state.NodeId) *state.RouterState {
	rs := MakeRouterState(id, neighbours...)
	rs.IsBeacon = true
	rs.Position = &pos
	return rs
}

func MakeFlood(origin state.NodeId, pos state.Position, hops uint32, seqno uint16) *protocol.Flood {
	return &protocol.Flood{
		Origin:   origin,
		Position: pos,
		HopCount: hops,
		Seqno:    seqno,
	}
}

func MakeAhd(beacon state.NodeId, ahd float64, hops uint32, seqno uint16) *protocol.Ahd {
	return &protocol.Ahd{
		Origin:   beacon,
		Beacon:   beacon,
		Ahd:      ahd,
		HopCount: hops,
		Seqno:    seqno,
	}
}

func (h *RouterHarness) Flood(rs *state.RouterState, from, origin state.NodeId, pos state.Position, hops uint32, seqno uint16) Verdict {
	return HandleFlood(rs, h, from, MakeFlood(origin, pos, hops, seqno))
}

func (h *RouterHarness) Ahd(rs *state.RouterState, from, beacon state.NodeId, ahd float64, hops uint32, seqno uint16) Verdict {
	return HandleAhd(rs, h, from, MakeAhd(beacon, ahd, hops, seqno))
}
