package sim

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/encodeous/dvhop/core"
	"github.com/encodeous/dvhop/state"
)

type event struct {
	at  time.Duration
	seq uint64
	// node is nil for harness events
	node *Node
	fun  func(s *state.State) error
	hook func() error
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Engine is a discrete event scheduler. Events run one at a time, ordered by time and then by
// the order they were scheduled in, so a run is fully determined by its inputs.
type Engine struct {
	now   time.Duration
	seq   uint64
	queue eventQueue
}

var _ state.Clock = (*Engine)(nil)

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Now() time.Time {
	return state.SimEpoch.Add(e.now)
}

func (e *Engine) Elapsed() time.Duration {
	return e.now
}

// Pending is the number of queued events
func (e *Engine) Pending() int {
	return len(e.queue)
}

// NextAt is the time of the next queued event
func (e *Engine) NextAt() (time.Duration, bool) {
	if len(e.queue) == 0 {
		return 0, false
	}
	return e.queue[0].at, true
}

func (e *Engine) push(ev *event) {
	ev.seq = e.seq
	e.seq++
	if ev.at < e.now {
		ev.at = e.now
	}
	heap.Push(&e.queue, ev)
}

// ScheduleNode queues fun on the event loop of n, delay after the current time.
func (e *Engine) ScheduleNode(n *Node, delay time.Duration, fun func(s *state.State) error) {
	e.push(&event{at: e.now + delay, node: n, fun: fun})
}

// ScheduleAt queues a harness event at an absolute simulated time. Times in the past run next.
func (e *Engine) ScheduleAt(at time.Duration, hook func() error) {
	e.push(&event{at: at, hook: hook})
}

// Step runs the next event. Events for stopped nodes are discarded.
func (e *Engine) Step() error {
	if len(e.queue) == 0 {
		return nil
	}
	ev := heap.Pop(&e.queue).(*event)
	e.now = ev.at
	if ev.node == nil {
		return ev.hook()
	}
	if ev.node.State.Context.Err() != nil {
		return nil
	}
	err := core.RunDispatch(ev.node.State, ev.fun)
	if err != nil {
		return fmt.Errorf("dispatch on %s at %v: %w", ev.node.Id, ev.at, err)
	}
	return nil
}

// RunUntil runs every event up to and including end, then advances the clock to end.
func (e *Engine) RunUntil(end time.Duration) error {
	for len(e.queue) > 0 && e.queue[0].at <= end {
		if err := e.Step(); err != nil {
			return err
		}
	}
	e.AdvanceTo(end)
	return nil
}

// AdvanceTo moves the clock forward without running anything
func (e *Engine) AdvanceTo(t time.Duration) {
	if t > e.now {
		e.now = t
	}
}
