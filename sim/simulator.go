package sim

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// NodeSpec is the minimal per-node description a Simulator needs: identity,
// type, and timing attributes. It is the narrow surface a topology
// implementation exposes — the simulator never sees the graph itself.
type NodeSpec struct {
	ID             string
	Type           NodeType
	NumQPs         int
	QuantumPackets int
	TxProcDelay    float64
	SwProcDelay    float64
	GPUStoreDelay  float64
}

// EdgeSpec is the minimal per-edge description a Simulator needs.
type EdgeSpec struct {
	From, To    string
	LinkRateBps float64
	PropDelay   float64
}

// Topology is the narrow construction interface a Simulator consumes. Any
// topology representation (see package topo) that can enumerate its nodes
// and edges satisfies it.
type Topology interface {
	Nodes() []NodeSpec
	Edges() []EdgeSpec
}

// RateUpdate is one link-rate change in a schedule: at its scheduled time,
// set the From->To link's rate to RateBps.
type RateUpdate struct {
	From, To string
	RateBps  float64
}

// ChunkNodeKey indexes ChunkReadyTime: a chunk known to be owned by a node.
type ChunkNodeKey struct {
	Chunk ChunkID
	Node  string
}

// Simulator wires nodes and ports from a Topology, drives an optional
// link-rate schedule, bootstraps the policy engine, and exposes read-only
// result maps once Run returns.
type Simulator struct {
	sched  *Scheduler
	nodes  map[string]Node
	spec   PacketSpec
	policy *PolicyEngine

	rateSchedule map[float64][]RateUpdate

	TxCompleteTime  map[TxID]float64
	ChunkReadyTime  map[ChunkNodeKey]float64
	TxFirstSendTime map[TxID]float64
}

// NewSimulator validates topo and builds a node/port graph from it.
func NewSimulator(topo Topology, spec PacketSpec) (*Simulator, error) {
	if spec.PacketSizeBytes <= 0 {
		return nil, newErrorf(KindInvalidTopology, "packet_size_bytes must be > 0")
	}

	s := &Simulator{
		sched:           NewScheduler(),
		nodes:           make(map[string]Node),
		spec:            spec,
		TxCompleteTime:  make(map[TxID]float64),
		ChunkReadyTime:  make(map[ChunkNodeKey]float64),
		TxFirstSendTime: make(map[TxID]float64),
	}
	s.policy = newPolicyEngine(s.sched, s, spec)

	for _, ns := range topo.Nodes() {
		if ns.ID == "" {
			return nil, newErrorf(KindInvalidTopology, "node id must not be empty")
		}
		if _, dup := s.nodes[ns.ID]; dup {
			return nil, newErrorf(KindInvalidTopology, "duplicate node id %s", ns.ID)
		}
		cfg := NodeConfig{
			ID:             ns.ID,
			Type:           ns.Type,
			NumQPs:         maxInt(1, ns.NumQPs),
			QuantumPackets: maxInt(1, ns.QuantumPackets),
			TxProcDelay:    ns.TxProcDelay,
			SwProcDelay:    ns.SwProcDelay,
			GPUStoreDelay:  ns.GPUStoreDelay,
		}
		switch ns.Type {
		case NodeTypeGPU:
			s.nodes[ns.ID] = NewGPUNode(s.sched, cfg, s.onTxComplete, s.onChunkReady)
		case NodeTypeSwitch:
			s.nodes[ns.ID] = NewSwitchNode(s.sched, cfg)
		default:
			return nil, newErrorf(KindInvalidTopology, "node %s must have type gpu or switch", ns.ID)
		}
	}

	for _, es := range topo.Edges() {
		if es.LinkRateBps <= 0 {
			return nil, newErrorf(KindInvalidTopology, "edge %s->%s needs link_rate_bps > 0", es.From, es.To)
		}
		if es.PropDelay < 0 {
			return nil, newErrorf(KindInvalidTopology, "edge %s->%s needs prop_delay >= 0", es.From, es.To)
		}
		srcNode, ok := s.nodes[es.From]
		if !ok {
			return nil, newErrorf(KindInvalidTopology, "edge references undeclared node %s", es.From)
		}
		if _, ok := s.nodes[es.To]; !ok {
			return nil, newErrorf(KindInvalidTopology, "edge references undeclared node %s", es.To)
		}

		cfg := srcNode.Config()
		numQPs, quantum := cfg.NumQPs, cfg.QuantumPackets
		if cfg.Type == NodeTypeSwitch {
			numQPs, quantum = 1, 1
		}

		dstID := es.To
		srcNode.AddPort(
			es.To,
			LinkSpec{RateBps: es.LinkRateBps, PropDelay: es.PropDelay},
			func(pkt *Packet) { s.nodes[dstID].Receive(pkt) },
			numQPs, quantum, cfg.TxProcDelay, spec.HeaderSizeBytes,
		)
	}

	return s, nil
}

// LoadPolicy installs policy rules.
func (s *Simulator) LoadPolicy(entries []*PolicyEntry) error {
	return s.policy.Install(entries)
}

// LoadLinkRateSchedule installs a time -> rate-updates schedule, validating
// every referenced edge and rate up front.
func (s *Simulator) LoadLinkRateSchedule(schedule map[float64][]RateUpdate) error {
	for t, updates := range schedule {
		if t < 0 {
			return newErrorf(KindInvalidRate, "schedule time must be >= 0, got %v", t)
		}
		for _, u := range updates {
			if !math.IsFinite(u.RateBps) || u.RateBps <= 0 {
				return newErrorf(KindInvalidRate, "schedule rate %s->%s must be finite and > 0, got %v", u.From, u.To, u.RateBps)
			}
			node, ok := s.nodes[u.From]
			if !ok {
				return newErrorf(KindUnknownNode, "schedule references undeclared node %s", u.From)
			}
			if _, ok := node.PortTo(u.To); !ok {
				return newErrorf(KindInvalidRate, "schedule references edge %s->%s with no port", u.From, u.To)
			}
		}
	}
	s.rateSchedule = schedule
	return nil
}

// Start launches the link-rate driver (if any) and bootstraps the policy
// engine's initial chunk sources. Not idempotent: calling Start twice on
// the same Simulator double-fires bootstrap.
func (s *Simulator) Start() error {
	s.startRateDriver()
	logrus.Debugf("simulator: starting with %d nodes", len(s.nodes))
	return s.policy.Bootstrap()
}

func (s *Simulator) startRateDriver() {
	if len(s.rateSchedule) == 0 {
		return
	}
	times := make([]float64, 0, len(s.rateSchedule))
	for t := range s.rateSchedule {
		times = append(times, t)
	}
	sort.Float64s(times)

	for _, t := range times {
		delay := t - s.sched.Now()
		if delay < 0 {
			delay = 0
		}
		for _, u := range s.rateSchedule[t] {
			u := u
			s.sched.Schedule(delay, func() {
				node := s.nodes[u.From]
				port, ok := node.PortTo(u.To)
				if !ok {
					panic(newErrorf(KindNoRoute, "rate schedule: no port %s->%s", u.From, u.To))
				}
				logrus.Infof("link-rate update %s->%s: %.0f bps at t=%.9f", u.From, u.To, u.RateBps, s.sched.Now())
				if err := port.SetLinkRate(u.RateBps); err != nil {
					panic(err)
				}
			})
		}
	}
}

// Run drains the event loop until it is empty, or (if until is non-nil)
// until the next pending callback's time would reach until.
func (s *Simulator) Run(until *float64) {
	s.sched.Run(until)
	logrus.Infof("simulator: run complete at t=%.9f, %d transmissions, makespan=%.9f", s.sched.Now(), len(s.TxCompleteTime), s.Makespan())
}

// Now returns the simulator's current virtual time.
func (s *Simulator) Now() float64 { return s.sched.Now() }

// Makespan is the maximum recorded TxCompleteTime.
func (s *Simulator) Makespan() float64 {
	var m float64
	var any bool
	for _, t := range s.TxCompleteTime {
		if math.IsNaN(t) {
			continue
		}
		if !any || t > m {
			m = t
			any = true
		}
	}
	return m
}

func (s *Simulator) registerTx(tx TxID) {
	if _, ok := s.TxCompleteTime[tx]; !ok {
		s.TxCompleteTime[tx] = math.NaN()
	}
}

func (s *Simulator) sendFromSrc(pkt *Packet) {
	srcID := pkt.Path[pkt.HopIdx]
	node, ok := s.nodes[srcID]
	if !ok {
		panic(newErrorf(KindUnknownNode, "policy src %s is not a declared node", srcID))
	}
	gpu, ok := node.(*GPUNode)
	if !ok {
		panic(newErrorf(KindInvalidPolicy, "policy src %s must be a GPU", srcID))
	}
	if _, ok := s.TxFirstSendTime[pkt.TxID]; !ok {
		s.TxFirstSendTime[pkt.TxID] = s.sched.Now()
	}
	if err := gpu.sendToNext(pkt); err != nil {
		panic(err)
	}
}

func (s *Simulator) onTxComplete(tx TxID, now float64) {
	if v, ok := s.TxCompleteTime[tx]; !ok || math.IsNaN(v) {
		s.TxCompleteTime[tx] = now
	}
}

func (s *Simulator) onChunkReady(nodeID string, chunk ChunkID, now float64) {
	key := ChunkNodeKey{Chunk: chunk, Node: nodeID}
	if _, ok := s.ChunkReadyTime[key]; !ok {
		s.ChunkReadyTime[key] = now
	}
	s.policy.OnChunkReady(nodeID, chunk)
}
