package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimulator_RejectsDuplicateNode(t *testing.T) {
	topo := &fakeTopology{
		nodes: []NodeSpec{
			{ID: "g1", Type: NodeTypeGPU},
			{ID: "g1", Type: NodeTypeGPU},
		},
	}
	_, err := NewSimulator(topo, PacketSpec{PacketSizeBytes: 1000})
	require.Error(t, err)
	assert.True(t, Is(err, KindInvalidTopology))
}

func TestNewSimulator_RejectsUnknownNodeType(t *testing.T) {
	topo := &fakeTopology{nodes: []NodeSpec{{ID: "g1", Type: NodeType(99)}}}
	_, err := NewSimulator(topo, PacketSpec{PacketSizeBytes: 1000})
	require.Error(t, err)
	assert.True(t, Is(err, KindInvalidTopology))
}

func TestNewSimulator_RejectsDanglingEdge(t *testing.T) {
	topo := &fakeTopology{
		nodes: []NodeSpec{{ID: "g1", Type: NodeTypeGPU}},
		edges: []EdgeSpec{{From: "g1", To: "ghost", LinkRateBps: 1000}},
	}
	_, err := NewSimulator(topo, PacketSpec{PacketSizeBytes: 1000})
	require.Error(t, err)
	assert.True(t, Is(err, KindInvalidTopology))
}

func TestNewSimulator_RejectsNonPositiveLinkRate(t *testing.T) {
	topo := &fakeTopology{
		nodes: []NodeSpec{{ID: "g1", Type: NodeTypeGPU}, {ID: "g2", Type: NodeTypeGPU}},
		edges: []EdgeSpec{{From: "g1", To: "g2", LinkRateBps: 0}},
	}
	_, err := NewSimulator(topo, PacketSpec{PacketSizeBytes: 1000})
	require.Error(t, err)
	assert.True(t, Is(err, KindInvalidTopology))
}

func TestSimulator_SwitchRelayThroughMultipleHops(t *testing.T) {
	topo := &fakeTopology{
		nodes: []NodeSpec{
			{ID: "g1", Type: NodeTypeGPU, NumQPs: 1, QuantumPackets: 1},
			{ID: "sw", Type: NodeTypeSwitch, SwProcDelay: 1},
			{ID: "g2", Type: NodeTypeGPU, NumQPs: 1, QuantumPackets: 1},
		},
		edges: []EdgeSpec{
			{From: "g1", To: "sw", LinkRateBps: 8_000, PropDelay: 0},
			{From: "sw", To: "g2", LinkRateBps: 8_000, PropDelay: 0},
		},
	}
	s, err := NewSimulator(topo, PacketSpec{PacketSizeBytes: 1000, HeaderSizeBytes: 0})
	require.NoError(t, err)

	e, err := NewPolicyEntry(NewChunkID("c1"), "g1", "g2", 0, MaxRate(), 1000, []string{"g1", "sw", "g2"}, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.LoadPolicy([]*PolicyEntry{e}))
	require.NoError(t, s.Start())
	s.Run(nil)

	tx := TxID{Chunk: NewChunkID("c1"), Src: "g1", Dst: "g2"}
	completeAt, ok := s.TxCompleteTime[tx]
	require.True(t, ok)
	// g1->sw: 1s service. sw: 1s proc delay. sw->g2: 1s service. Total 3s.
	assert.InDelta(t, 3.0, completeAt, 1e-9)
}

func TestSimulator_LinkRateScheduleAppliesAtScheduledTime(t *testing.T) {
	s, err := NewSimulator(simpleTwoNodeTopology(), PacketSpec{PacketSizeBytes: 1000, HeaderSizeBytes: 0})
	require.NoError(t, err)

	// Two packets of 1000 bytes each at the initial 8000 bps rate (1s each).
	e, err := NewPolicyEntry(NewChunkID("c1"), "g1", "g2", 0, MaxRate(), 2000, []string{"g1", "g2"}, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.LoadPolicy([]*PolicyEntry{e}))

	// Doubling the rate at t=0.5 (mid first packet's service) only affects
	// service computations that start after that instant; the first packet
	// is already past its own service start, so only the second packet is
	// sped up.
	require.NoError(t, s.LoadLinkRateSchedule(map[float64][]RateUpdate{
		0.5: {{From: "g1", To: "g2", RateBps: 16_000}},
	}))
	require.NoError(t, s.Start())
	s.Run(nil)

	tx := TxID{Chunk: NewChunkID("c1"), Src: "g1", Dst: "g2"}
	completeAt, ok := s.TxCompleteTime[tx]
	require.True(t, ok)
	// packet 1: begins service at t=0, before the schedule fires, so its
	// service time is computed at the old rate: 1s. packet 2 begins service
	// at t=1, after the rate doubled, so it takes 8000/16000=0.5s, completing
	// at 1.5.
	assert.InDelta(t, 1.5, completeAt, 1e-9)
}

func TestSimulator_LoadLinkRateSchedule_RejectsUnknownEdge(t *testing.T) {
	s, err := NewSimulator(simpleTwoNodeTopology(), PacketSpec{PacketSizeBytes: 1000})
	require.NoError(t, err)

	err = s.LoadLinkRateSchedule(map[float64][]RateUpdate{
		1: {{From: "g1", To: "ghost", RateBps: 1000}},
	})
	require.Error(t, err)
	assert.True(t, Is(err, KindInvalidRate))
}

func TestSimulator_FanOutAcrossQueuePairsIsFair(t *testing.T) {
	topo := &fakeTopology{
		nodes: []NodeSpec{
			{ID: "g1", Type: NodeTypeGPU, NumQPs: 2, QuantumPackets: 1},
			{ID: "g2", Type: NodeTypeGPU, NumQPs: 2, QuantumPackets: 1},
		},
		edges: []EdgeSpec{{From: "g1", To: "g2", LinkRateBps: 8_000, PropDelay: 0}},
	}
	s, err := NewSimulator(topo, PacketSpec{PacketSizeBytes: 1000, HeaderSizeBytes: 0})
	require.NoError(t, err)

	eA, err := NewPolicyEntry(NewChunkID("a"), "g1", "g2", 0, MaxRate(), 2000, []string{"g1", "g2"}, 0, nil)
	require.NoError(t, err)
	eB, err := NewPolicyEntry(NewChunkID("b"), "g1", "g2", 1, MaxRate(), 1000, []string{"g1", "g2"}, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.LoadPolicy([]*PolicyEntry{eA, eB}))
	require.NoError(t, s.Start())
	s.Run(nil)

	txA := TxID{Chunk: NewChunkID("a"), Src: "g1", Dst: "g2"}
	txB := TxID{Chunk: NewChunkID("b"), Src: "g1", Dst: "g2"}
	completeA, ok := s.TxCompleteTime[txA]
	require.True(t, ok)
	completeB, ok := s.TxCompleteTime[txB]
	require.True(t, ok)

	// qp0 (chunk a, 2 packets) and qp1 (chunk b, 1 packet) round-robin with
	// quantum 1: a[0] delivered at t=1 (tx a not yet complete, 2 packets
	// needed), b[0] delivered and completes at t=2, a[1] delivered and
	// completes at t=3.
	assert.InDelta(t, 2.0, completeB, 1e-9)
	assert.InDelta(t, 3.0, completeA, 1e-9)
}
