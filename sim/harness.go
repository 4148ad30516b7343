package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/encodeous/dvhop/core"
	"github.com/encodeous/dvhop/perf"
	"github.com/encodeous/dvhop/state"
)

var ErrStopped = errors.New("harness stopped")

type Options struct {
	// Logs receives every node's log, discarded when nil
	Logs    *core.LogSink
	Metrics *perf.ProtocolCollector
	// Output receives dumps that have no path, stdout when nil
	Output io.Writer
}

// Harness builds a scenario into simulated nodes and drives them over a VirtualNetwork.
type Harness struct {
	Cfg      state.ScenarioCfg
	Engine   *Engine
	Network  *VirtualNetwork
	Registry *Registry
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger

	output  io.Writer
	closers []io.Closer
	started bool
	stopped bool
}

func Build(cfg state.ScenarioCfg, opts Options) (*Harness, error) {
	cfg.Protocol = cfg.Protocol.WithDefaults()
	err := state.ScenarioValidator(&cfg)
	if err != nil {
		return nil, err
	}
	adj, err := cfg.Adjacency()
	if err != nil {
		return nil, err
	}
	logs := opts.Logs
	if logs == nil {
		logs, err = core.NewLogSink(slog.LevelError, io.Discard, "")
		if err != nil {
			return nil, err
		}
	}
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	h := &Harness{
		Cfg:      cfg,
		Engine:   NewEngine(),
		Registry: NewRegistry(),
		Context:  ctx,
		Cancel:   cancel,
		Log:      logs.Logger("sim"),
		output:   output,
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	h.Network = NewVirtualNetwork(h.Engine, h.Registry, rng, h.Log)

	links, err := cfg.Links()
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		h.Network.AddLink(l.V1, l.V2).
			WithLatency(cfg.Link.Latency, cfg.Link.Jitter).
			WithPacketLoss(cfg.Link.Loss)
	}

	for _, ncfg := range cfg.Nodes {
		n := &Node{
			Id:     ncfg.Id,
			Router: core.NewDvHopRouter(opts.Metrics),
		}
		nctx, ncancel := context.WithCancelCause(ctx)
		env := &state.Env{
			Clock:       h.Engine,
			Node:        ncfg.Id,
			Peers:       adj[ncfg.Id],
			ProtocolCfg: cfg.Protocol,
			Link:        h.Network,
			Context:     nctx,
			Cancel:      ncancel,
			Log:         logs.Logger(string(ncfg.Id)),
		}
		env.DispatchFunc = func(delay time.Duration, fun func(s *state.State) error) {
			h.Engine.ScheduleNode(n, delay, fun)
		}
		n.State = &state.State{
			Env:     env,
			Modules: []state.NyModule{n.Router},
		}

		loc := n.Localizer()
		if err := loc.SetBeacon(ncfg.Beacon); err != nil {
			return nil, err
		}
		if ncfg.Beacon {
			if err := loc.SetPosition(ncfg.Position); err != nil {
				return nil, err
			}
		}
		if err := h.Registry.Add(n); err != nil {
			return nil, err
		}
	}
	h.Log.Info("built scenario", "name", cfg.Name, "nodes", h.Registry.Len(), "links", len(links), "beacons", len(cfg.Beacons()))
	return h, nil
}

// Start schedules every node to initialise at the current time, in scenario order.
func (h *Harness) Start() {
	if h.started {
		return
	}
	h.started = true
	for n := range h.Registry.All() {
		h.Engine.ScheduleNode(n, 0, core.StartNode)
	}
}

// ScheduleDumps queues the dumps listed in the scenario. Dumps with a path truncate their file.
func (h *Harness) ScheduleDumps() error {
	for _, d := range h.Cfg.Dumps {
		w := h.output
		if d.Path != "" {
			f, err := os.Create(d.Path)
			if err != nil {
				return fmt.Errorf("failed to open dump %s: %w", d.Path, err)
			}
			h.closers = append(h.closers, f)
			w = f
		}
		switch d.Kind {
		case state.DumpDistance:
			h.PrintDistanceTableAllAt(d.At, w)
		case state.DumpRouting:
			h.PrintRoutingTableAllAt(d.At, w)
		}
	}
	return nil
}

// PrintDistanceTableAllAt writes the distance table of every node at time at, in scenario order.
func (h *Harness) PrintDistanceTableAllAt(at time.Duration, w io.Writer) {
	h.Engine.ScheduleAt(at, func() error {
		for n := range h.Registry.All() {
			if err := h.writeDistanceTable(n, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// PrintRoutingTableAllAt writes the routing table of every node at time at, in scenario order.
func (h *Harness) PrintRoutingTableAllAt(at time.Duration, w io.Writer) {
	h.Engine.ScheduleAt(at, func() error {
		for n := range h.Registry.All() {
			if err := h.writeRoutingTable(n, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// PrintDistanceTableAt writes the distance table of a single node at time at.
func (h *Harness) PrintDistanceTableAt(id state.NodeId, at time.Duration, w io.Writer) error {
	n, ok := h.Registry.Get(id)
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	h.Engine.ScheduleAt(at, func() error {
		return h.writeDistanceTable(n, w)
	})
	return nil
}

// PrintRoutingTableAt writes the routing table of a single node at time at.
func (h *Harness) PrintRoutingTableAt(id state.NodeId, at time.Duration, w io.Writer) error {
	n, ok := h.Registry.Get(id)
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	h.Engine.ScheduleAt(at, func() error {
		return h.writeRoutingTable(n, w)
	})
	return nil
}

func (h *Harness) DistanceTable(id state.NodeId) (state.DistanceTableDump, error) {
	n, ok := h.Registry.Get(id)
	if !ok {
		return state.DistanceTableDump{}, fmt.Errorf("node %s not found", id)
	}
	return h.distanceTable(n), nil
}

func (h *Harness) RoutingTable(id state.NodeId) (state.RoutingTableDump, error) {
	n, ok := h.Registry.Get(id)
	if !ok {
		return state.RoutingTableDump{}, fmt.Errorf("node %s not found", id)
	}
	return h.routingTable(n), nil
}

func (h *Harness) distanceTable(n *Node) state.DistanceTableDump {
	if n.State.RouterState == nil {
		return core.DumpDistanceTable(state.NewRouterState(n.Id), h.Engine.Elapsed())
	}
	return n.Localizer().DumpDistanceTable()
}

func (h *Harness) routingTable(n *Node) state.RoutingTableDump {
	if n.State.RouterState == nil {
		return core.DumpRoutingTable(state.NewRouterState(n.Id), h.Engine.Elapsed())
	}
	return n.Localizer().DumpRoutingTable()
}

func (h *Harness) writeDistanceTable(n *Node, w io.Writer) error {
	_, err := io.WriteString(w, h.distanceTable(n).String())
	return err
}

func (h *Harness) writeRoutingTable(n *Node, w io.Writer) error {
	_, err := io.WriteString(w, h.routingTable(n).String())
	return err
}

// Estimates returns the position estimate of every localized node
func (h *Harness) Estimates() map[state.NodeId]state.Position {
	out := make(map[state.NodeId]state.Position)
	for n := range h.Registry.All() {
		if pos, ok := n.Localizer().PositionEstimate(); ok {
			out[n.Id] = *pos
		}
	}
	return out
}

// Accuracy summarises how well the ordinary nodes located themselves
type Accuracy struct {
	Nodes     int
	Localized int
	MeanError float64
	MaxError  float64
}

func (a Accuracy) String() string {
	return fmt.Sprintf("%d/%d nodes localized, mean error %.3f, max error %.3f", a.Localized, a.Nodes, a.MeanError, a.MaxError)
}

// Accuracy compares the estimate of every ordinary node with its true position.
func (h *Harness) Accuracy() Accuracy {
	acc := Accuracy{}
	estimates := h.Estimates()
	total := 0.0
	for _, n := range h.Cfg.Nodes {
		if n.Beacon {
			continue
		}
		acc.Nodes++
		est, ok := estimates[n.Id]
		if !ok {
			continue
		}
		acc.Localized++
		e := est.DistanceTo(n.Position)
		total += e
		acc.MaxError = max(acc.MaxError, e)
	}
	if acc.Localized > 0 {
		acc.MeanError = total / float64(acc.Localized)
	}
	return acc
}

// RunUntil starts the nodes if needed and runs the simulation up to t.
func (h *Harness) RunUntil(t time.Duration) error {
	if h.stopped {
		return ErrStopped
	}
	h.Start()
	return h.Engine.RunUntil(t)
}

// Run executes the whole scenario: start, dumps, run to the end, stop.
func (h *Harness) Run() error {
	if h.stopped {
		return ErrStopped
	}
	h.Start()
	err := h.ScheduleDumps()
	if err != nil {
		h.Stop()
		return err
	}
	err = h.Engine.RunUntil(h.Cfg.Duration)
	h.Stop()
	h.Log.Info("scenario finished", "elapsed", h.Engine.Elapsed(), "delivered", h.Network.Delivered, "dropped", h.Network.Dropped)
	return err
}

// StopNode stops a single node, it no longer processes events or answers its neighbours.
func (h *Harness) StopNode(id state.NodeId) error {
	n, ok := h.Registry.Get(id)
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	core.Stop(n.State)
	return nil
}

func (h *Harness) Stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	h.Cancel(ErrStopped)
	for n := range h.Registry.All() {
		core.Stop(n.State)
	}
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			h.Log.Error("failed to close dump", "error", err)
		}
	}
	h.closers = nil
}
