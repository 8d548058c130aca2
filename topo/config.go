package topo

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/inference-sim/sim"
)

// NodeConfig is one node entry in a scenario file.
type NodeConfig struct {
	ID             string  `yaml:"id"`
	Type           string  `yaml:"type"`
	NumQPs         int     `yaml:"num_qps"`
	QuantumPackets int     `yaml:"quantum_packets"`
	TxProcDelay    float64 `yaml:"tx_proc_delay"`
	SwProcDelay    float64 `yaml:"sw_proc_delay"`
	GPUStoreDelay  float64 `yaml:"gpu_store_delay"`
}

// EdgeConfig is one edge entry in a scenario file.
type EdgeConfig struct {
	From        string  `yaml:"from"`
	To          string  `yaml:"to"`
	LinkRateBps float64 `yaml:"link_rate_bps"`
	PropDelay   float64 `yaml:"prop_delay"`
}

// PolicyConfig is one policy entry in a scenario file. Rate is left as
// interface{} because the format accepts either a number or the string
// "Max"; sim.ParseRate resolves it.
type PolicyConfig struct {
	Chunk          string   `yaml:"chunk"`
	Src            string   `yaml:"src"`
	Dst            string   `yaml:"dst"`
	QPID           int      `yaml:"qpid"`
	Rate           any      `yaml:"rate"`
	ChunkSizeBytes int64    `yaml:"chunk_size_bytes"`
	Path           []string `yaml:"path"`
	Time           float64  `yaml:"time"`
	Dependency     []string `yaml:"dependency"`
}

// RateScheduleConfig is one scheduled link-rate change in a scenario file.
type RateScheduleConfig struct {
	Time float64 `yaml:"time"`
	From string  `yaml:"from"`
	To   string  `yaml:"to"`
	Rate float64 `yaml:"rate_bps"`
}

// ScenarioConfig is the full shape of a scenario YAML file: a topology plus
// the policy and (optional) rate schedule to run over it.
type ScenarioConfig struct {
	PacketSizeBytes int                  `yaml:"packet_size_bytes"`
	HeaderSizeBytes int                  `yaml:"header_size_bytes"`
	Nodes           []NodeConfig         `yaml:"nodes"`
	Edges           []EdgeConfig         `yaml:"edges"`
	Policy          []PolicyConfig       `yaml:"policy"`
	RateSchedule    []RateScheduleConfig `yaml:"rate_schedule"`
	UntilSeconds    *float64             `yaml:"until"`
}

// LoadFile reads and strictly decodes a scenario YAML file.
func LoadFile(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ScenarioConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BuildTopology constructs a *Topology from the scenario's nodes and edges.
func (c *ScenarioConfig) BuildTopology() (*Topology, error) {
	t := NewTopology()
	for _, n := range c.Nodes {
		var typ sim.NodeType
		switch n.Type {
		case "gpu":
			typ = sim.NodeTypeGPU
		case "switch":
			typ = sim.NodeTypeSwitch
		default:
			return nil, sim.NewError(sim.KindInvalidTopology, "node %s has unknown type %q (want gpu or switch)", n.ID, n.Type)
		}
		if err := t.AddNode(n.ID, NodeAttrs{
			Type:           typ,
			NumQPs:         n.NumQPs,
			QuantumPackets: n.QuantumPackets,
			TxProcDelay:    n.TxProcDelay,
			SwProcDelay:    n.SwProcDelay,
			GPUStoreDelay:  n.GPUStoreDelay,
		}); err != nil {
			return nil, err
		}
	}
	for _, e := range c.Edges {
		if err := t.AddEdge(e.From, e.To, EdgeAttrs{LinkRateBps: e.LinkRateBps, PropDelay: e.PropDelay}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// BuildPolicy converts the scenario's policy entries into []*sim.PolicyEntry.
func (c *ScenarioConfig) BuildPolicy() ([]*sim.PolicyEntry, error) {
	entries := make([]*sim.PolicyEntry, 0, len(c.Policy))
	for _, p := range c.Policy {
		deps := make([]sim.ChunkID, 0, len(p.Dependency))
		for _, d := range p.Dependency {
			deps = append(deps, sim.NewChunkID(d))
		}
		e, err := sim.NewPolicyEntry(sim.NewChunkID(p.Chunk), p.Src, p.Dst, p.QPID, p.Rate, p.ChunkSizeBytes, p.Path, p.Time, deps)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// BuildRateSchedule converts the scenario's rate-schedule entries into the
// time -> []sim.RateUpdate map sim.Simulator.LoadLinkRateSchedule expects.
func (c *ScenarioConfig) BuildRateSchedule() map[float64][]sim.RateUpdate {
	if len(c.RateSchedule) == 0 {
		return nil
	}
	out := make(map[float64][]sim.RateUpdate)
	for _, r := range c.RateSchedule {
		out[r.Time] = append(out[r.Time], sim.RateUpdate{From: r.From, To: r.To, RateBps: r.Rate})
	}
	return out
}
