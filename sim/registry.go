package sim

import (
	"fmt"
	"iter"

	"github.com/encodeous/dvhop/core"
	"github.com/encodeous/dvhop/state"
)

// Node is one simulated device: its environment and the protocol instance installed on it.
type Node struct {
	Id     state.NodeId
	State  *state.State
	Router *core.DvHopRouter
}

func (n *Node) Localizer() core.Localizer {
	return n.Router
}

// Registry keeps the simulated nodes in creation order
type Registry struct {
	order []state.NodeId
	nodes map[state.NodeId]*Node
}

func NewRegistry() *Registry {
	return &Registry{
		order: make([]state.NodeId, 0),
		nodes: make(map[state.NodeId]*Node),
	}
}

func (r *Registry) Add(n *Node) error {
	if _, ok := r.nodes[n.Id]; ok {
		return fmt.Errorf("node %s is already registered", n.Id)
	}
	r.order = append(r.order, n.Id)
	r.nodes[n.Id] = n
	return nil
}

func (r *Registry) Get(id state.NodeId) (*Node, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

func (r *Registry) Len() int {
	return len(r.order)
}

// All yields the nodes in creation order
func (r *Registry) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, id := range r.order {
			if !yield(r.nodes[id]) {
				return
			}
		}
	}
}
