package sim

import (
	"github.com/sirupsen/logrus"
)

// Node is the shared forwarding surface for GPUs and switches: add an
// outbound port, and receive a packet.
type Node interface {
	ID() string
	Config() NodeConfig
	AddPort(nextHop string, link LinkSpec, deliver func(*Packet), numQPs, quantum int, txProcDelay float64, headerBytes int)
	PortTo(nextHop string) (*Port, bool)
	Receive(pkt *Packet)
}

// baseNode implements the forwarding surface shared by GPUNode and
// SwitchNode: a registry of outbound ports keyed by next-hop id, and the
// "advance hop, enqueue on the right port" step every forward performs.
type baseNode struct {
	sched *Scheduler
	cfg   NodeConfig
	ports map[string]*Port
}

func newBaseNode(sched *Scheduler, cfg NodeConfig) baseNode {
	return baseNode{sched: sched, cfg: cfg, ports: make(map[string]*Port)}
}

func (n *baseNode) ID() string         { return n.cfg.ID }
func (n *baseNode) Config() NodeConfig { return n.cfg }

func (n *baseNode) AddPort(nextHop string, link LinkSpec, deliver func(*Packet), numQPs, quantum int, txProcDelay float64, headerBytes int) {
	n.ports[nextHop] = NewPort(n.sched, n.cfg.ID, nextHop, link, deliver, numQPs, quantum, txProcDelay, headerBytes)
}

// PortTo returns the outbound port toward nextHop, if any.
func (n *baseNode) PortTo(nextHop string) (*Port, bool) {
	p, ok := n.ports[nextHop]
	return p, ok
}

// sendToNext advances pkt past its current hop and enqueues it on the
// matching outbound port. Returns KindNoRoute if no such port exists.
func (n *baseNode) sendToNext(pkt *Packet) error {
	nextHop, ok := pkt.NextHop()
	if !ok {
		return nil
	}
	port, ok := n.ports[nextHop]
	if !ok {
		return newErrorf(KindNoRoute, "%s has no port to %s", n.cfg.ID, nextHop)
	}
	pkt.Advance()
	port.Enqueue(pkt, pkt.QPID)
	return nil
}

// SwitchNode is a stateless store-and-forward relay: wait sw_proc_delay,
// then forward.
type SwitchNode struct {
	baseNode
}

// NewSwitchNode constructs a switch node.
func NewSwitchNode(sched *Scheduler, cfg NodeConfig) *SwitchNode {
	return &SwitchNode{baseNode: newBaseNode(sched, cfg)}
}

func (s *SwitchNode) Receive(pkt *Packet) {
	forward := func() {
		if err := s.sendToNext(pkt); err != nil {
			panic(err)
		}
	}
	if s.cfg.SwProcDelay > 0 {
		s.sched.Schedule(s.cfg.SwProcDelay, forward)
		return
	}
	forward()
}

// GPUNode is a transmission endpoint. A packet whose tx destination is this
// GPU is counted toward its transmission's completion; every other packet
// is relayed with no store delay, identically to a switch.
type GPUNode struct {
	baseNode

	onTxComplete func(tx TxID, now float64)
	onChunkReady func(nodeID string, chunk ChunkID, now float64)
	haveChunk    map[ChunkID]bool
	rxCount      map[TxID]int
}

// NewGPUNode constructs a GPU node. onTxComplete fires exactly once per
// TxID, the instant the last packet of that transmission arrives (plus
// gpu_store_delay). onChunkReady fires exactly once per chunk owned by this
// GPU, the first time that chunk completes (initial ownership is set via
// MarkInitialChunk, not through onChunkReady).
func NewGPUNode(sched *Scheduler, cfg NodeConfig, onTxComplete func(TxID, float64), onChunkReady func(string, ChunkID, float64)) *GPUNode {
	return &GPUNode{
		baseNode:     newBaseNode(sched, cfg),
		onTxComplete: onTxComplete,
		onChunkReady: onChunkReady,
		haveChunk:    make(map[ChunkID]bool),
		rxCount:      make(map[TxID]int),
	}
}

// MarkInitialChunk records that this GPU already owns chunk before the
// simulation starts (an initial source, per the policy engine's bootstrap).
func (g *GPUNode) MarkInitialChunk(chunk ChunkID) {
	g.haveChunk[chunk] = true
}

// HasChunk reports whether this GPU currently owns chunk.
func (g *GPUNode) HasChunk(chunk ChunkID) bool { return g.haveChunk[chunk] }

func (g *GPUNode) Receive(pkt *Packet) {
	if pkt.TxID.Dst == g.cfg.ID {
		g.receiveTerminal(pkt)
		return
	}
	if err := g.sendToNext(pkt); err != nil {
		panic(err)
	}
}

func (g *GPUNode) receiveTerminal(pkt *Packet) {
	tx := pkt.TxID
	g.rxCount[tx]++
	if g.rxCount[tx] < pkt.TotalPackets {
		return
	}

	complete := func() {
		now := g.sched.Now()
		logrus.Debugf("gpu %s: tx %s complete at t=%.9f", g.cfg.ID, tx, now)
		g.onTxComplete(tx, now)

		if !g.haveChunk[pkt.Chunk] {
			g.haveChunk[pkt.Chunk] = true
			g.onChunkReady(g.cfg.ID, pkt.Chunk, now)
		}
	}

	if g.cfg.GPUStoreDelay > 0 {
		g.sched.Schedule(g.cfg.GPUStoreDelay, complete)
		return
	}
	complete()
}
