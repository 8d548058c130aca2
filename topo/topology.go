// Package topo builds a validated, typed directed-graph representation of a
// collective-communication topology on top of gonum's graph/simple package,
// and exposes it through the narrow sim.Topology interface.
package topo

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	sim "github.com/inference-sim/inference-sim/sim"
)

// NodeAttrs groups the timing/shape attributes attached to a topology node.
type NodeAttrs struct {
	Type           sim.NodeType
	NumQPs         int
	QuantumPackets int
	TxProcDelay    float64
	SwProcDelay    float64
	GPUStoreDelay  float64
}

// EdgeAttrs groups the attributes attached to a topology edge (a link).
type EdgeAttrs struct {
	LinkRateBps float64
	PropDelay   float64
}

// edge implements graph.Edge so simple.DirectedGraph can carry a payload
// (simple.Edge itself has no room for one) alongside the endpoints gonum
// needs for traversal.
type edge struct {
	from, to graph.Node
	attrs    EdgeAttrs
}

func (e *edge) From() graph.Node         { return e.from }
func (e *edge) To() graph.Node           { return e.to }
func (e *edge) ReversedEdge() graph.Edge { return &edge{from: e.to, to: e.from, attrs: e.attrs} }

// Topology is a named directed graph: gonum's simple.DirectedGraph handles
// traversal and identity, while name<->id maps, the node attrs side table,
// and the EdgeAttrs carried on each edge value hold everything the simulator
// needs to know about each node and edge.
type Topology struct {
	g *simple.DirectedGraph

	idOf   map[string]int64
	nameOf map[int64]string
	nextID int64

	nodeAttrs map[string]NodeAttrs
}

// NewTopology returns an empty topology.
func NewTopology() *Topology {
	return &Topology{
		g:         simple.NewDirectedGraph(),
		idOf:      make(map[string]int64),
		nameOf:    make(map[int64]string),
		nodeAttrs: make(map[string]NodeAttrs),
	}
}

// AddNode declares a named node with its attributes. Re-adding the same name
// is rejected, matching the topology's InvalidTopology ("duplicate node")
// check.
func (t *Topology) AddNode(name string, attrs NodeAttrs) error {
	if name == "" {
		return sim.NewError(sim.KindInvalidTopology, "node id must not be empty")
	}
	if _, exists := t.idOf[name]; exists {
		return sim.NewError(sim.KindInvalidTopology, "duplicate node id %s", name)
	}
	id := t.nextID
	t.nextID++
	t.idOf[name] = id
	t.nameOf[id] = name
	t.nodeAttrs[name] = attrs
	t.g.AddNode(simple.Node(id))
	return nil
}

// AddEdge declares a directed link from -> to with its attributes. Both
// endpoints must already have been added with AddNode.
func (t *Topology) AddEdge(from, to string, attrs EdgeAttrs) error {
	fromID, ok := t.idOf[from]
	if !ok {
		return sim.NewError(sim.KindInvalidTopology, "edge references undeclared node %s", from)
	}
	toID, ok := t.idOf[to]
	if !ok {
		return sim.NewError(sim.KindInvalidTopology, "edge references undeclared node %s", to)
	}
	t.g.SetEdge(&edge{from: simple.Node(fromID), to: simple.Node(toID), attrs: attrs})
	return nil
}

// Nodes satisfies sim.Topology.
func (t *Topology) Nodes() []sim.NodeSpec {
	out := make([]sim.NodeSpec, 0, len(t.idOf))
	nodes := t.g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		name := t.nameOf[id]
		a := t.nodeAttrs[name]
		out = append(out, sim.NodeSpec{
			ID:             name,
			Type:           a.Type,
			NumQPs:         a.NumQPs,
			QuantumPackets: a.QuantumPackets,
			TxProcDelay:    a.TxProcDelay,
			SwProcDelay:    a.SwProcDelay,
			GPUStoreDelay:  a.GPUStoreDelay,
		})
	}
	return out
}

// Edges satisfies sim.Topology.
func (t *Topology) Edges() []sim.EdgeSpec {
	out := make([]sim.EdgeSpec, 0)
	edges := t.g.Edges()
	for edges.Next() {
		e, ok := edges.Edge().(*edge)
		if !ok {
			continue
		}
		out = append(out, sim.EdgeSpec{
			From:        t.nameOf[e.From().ID()],
			To:          t.nameOf[e.To().ID()],
			LinkRateBps: e.attrs.LinkRateBps,
			PropDelay:   e.attrs.PropDelay,
		})
	}
	return out
}

// Validate runs the whole-graph topology checks: every node has a
// recognized type, every edge has a positive
// rate and non-negative propagation delay, and (implied by AddEdge's own
// checks, re-verified here for a topology assembled by other means) no edge
// dangles. It is independent of sim.NewSimulator's own per-node/per-edge
// validation, which runs again behind the narrow sim.Topology interface.
func (t *Topology) Validate() error {
	for name, a := range t.nodeAttrs {
		if a.Type != sim.NodeTypeGPU && a.Type != sim.NodeTypeSwitch {
			return sim.NewError(sim.KindInvalidTopology, "node %s must have type gpu or switch", name)
		}
	}
	edges := t.g.Edges()
	for edges.Next() {
		e, ok := edges.Edge().(*edge)
		if !ok {
			continue
		}
		from, to := t.nameOf[e.From().ID()], t.nameOf[e.To().ID()]
		if from == "" || to == "" {
			return sim.NewError(sim.KindInvalidTopology, "edge has dangling endpoint")
		}
		if e.attrs.LinkRateBps <= 0 {
			return sim.NewError(sim.KindInvalidTopology, "edge %s->%s needs link_rate_bps > 0", from, to)
		}
		if e.attrs.PropDelay < 0 {
			return sim.NewError(sim.KindInvalidTopology, "edge %s->%s needs prop_delay >= 0", from, to)
		}
	}
	return nil
}
