package sim

import "sort"

// PolicyEntry is one immutable transmission rule: move chunk_id from src to
// dst along path, at qpid, at rate, no earlier than time, once every chunk
// in dependency is ready at src.
type PolicyEntry struct {
	Chunk          ChunkID
	Src, Dst       string
	QPID           int
	Rate           Rate
	ChunkSizeBytes int64
	Path           []string
	Time           float64
	Dependency     []ChunkID
}

// NewPolicyEntry validates and constructs a PolicyEntry. rate accepts a
// positive number (bps), the case-insensitive string "Max", or a Rate.
func NewPolicyEntry(chunk ChunkID, src, dst string, qpid int, rate any, chunkSizeBytes int64, path []string, timeSec float64, dependency []ChunkID) (*PolicyEntry, error) {
	r, ok := rate.(Rate)
	if !ok {
		var err error
		r, err = ParseRate(rate)
		if err != nil {
			return nil, err
		}
	}
	e := &PolicyEntry{
		Chunk:          chunk,
		Src:            src,
		Dst:            dst,
		QPID:           qpid,
		Rate:           r,
		ChunkSizeBytes: chunkSizeBytes,
		Path:           path,
		Time:           timeSec,
		Dependency:     dependency,
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *PolicyEntry) validate() error {
	if len(e.Path) == 0 || e.Path[0] != e.Src || e.Path[len(e.Path)-1] != e.Dst {
		return newErrorf(KindInvalidPolicy, "path must start at src and end at dst for chunk=%s: %v", e.Chunk, e.Path)
	}
	if e.ChunkSizeBytes <= 0 {
		return newErrorf(KindInvalidPolicy, "chunk_size_bytes must be > 0")
	}
	if e.QPID < 0 {
		return newErrorf(KindInvalidPolicy, "qpid must be >= 0")
	}
	if e.Time < 0 {
		return newErrorf(KindInvalidPolicy, "time must be >= 0")
	}
	for _, d := range e.Dependency {
		if d == e.Chunk {
			return newErrorf(KindInvalidPolicy, "chunk %s cannot depend on itself", e.Chunk)
		}
	}
	return nil
}

// ruleKey indexes rules by (chunk, src): the (chunk, node) pair whose
// readiness activates them.
type ruleKey struct {
	chunk ChunkID
	src   string
}

// PolicyEngine stores rules keyed by (chunk, src) and fires them, subject to
// a time gate then a dependency gate, when their (chunk, src) becomes
// ready.
type PolicyEngine struct {
	sched *Scheduler
	sim   *Simulator
	spec  PacketSpec

	rules   map[ruleKey][]*PolicyEntry
	latches *latchSet
}

func newPolicyEngine(sched *Scheduler, sim *Simulator, spec PacketSpec) *PolicyEngine {
	return &PolicyEngine{
		sched:   sched,
		sim:     sim,
		spec:    spec,
		rules:   make(map[ruleKey][]*PolicyEntry),
		latches: newLatchSet(),
	}
}

// Install validates and indexes entries. Installation order never matters.
func (pe *PolicyEngine) Install(entries []*PolicyEntry) error {
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return err
		}
		key := ruleKey{chunk: e.Chunk, src: e.Src}
		pe.rules[key] = append(pe.rules[key], e)
	}
	return nil
}

// inferInitialSources computes, per chunk, the sources that are never also
// a destination; if that set is empty it falls back to the full source
// set. Results are sorted for deterministic bootstrap order.
func (pe *PolicyEngine) inferInitialSources() map[ChunkID][]string {
	bySrc := make(map[ChunkID]map[string]bool)
	byDst := make(map[ChunkID]map[string]bool)

	for key, entries := range pe.rules {
		if bySrc[key.chunk] == nil {
			bySrc[key.chunk] = make(map[string]bool)
		}
		bySrc[key.chunk][key.src] = true
		for _, e := range entries {
			if byDst[e.Chunk] == nil {
				byDst[e.Chunk] = make(map[string]bool)
			}
			byDst[e.Chunk][e.Dst] = true
		}
	}

	result := make(map[ChunkID][]string, len(bySrc))
	for chunk, srcs := range bySrc {
		dsts := byDst[chunk]
		var init []string
		for s := range srcs {
			if !dsts[s] {
				init = append(init, s)
			}
		}
		if len(init) == 0 {
			for s := range srcs {
				init = append(init, s)
			}
		}
		sort.Strings(init)
		result[chunk] = init
	}
	return result
}

// Bootstrap marks every inferred initial (chunk, src) pair as owned and
// emits a synthetic chunk-ready so any rules keyed there can fire.
func (pe *PolicyEngine) Bootstrap() error {
	initial := pe.inferInitialSources()

	chunks := make([]ChunkID, 0, len(initial))
	for c := range initial {
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i] < chunks[j] })

	for _, chunk := range chunks {
		for _, src := range initial[chunk] {
			node, ok := pe.sim.nodes[src]
			if !ok {
				return newErrorf(KindUnknownNode, "initial source %s for chunk %s is not a declared node", src, chunk)
			}
			gpu, ok := node.(*GPUNode)
			if !ok {
				return newErrorf(KindInvalidPolicy, "initial source %s for chunk %s must be a GPU", src, chunk)
			}
			gpu.MarkInitialChunk(chunk)
			pe.sim.onChunkReady(src, chunk, pe.sched.Now())
		}
	}
	return nil
}

// OnChunkReady latches (chunk, node) ready and, the first time this fires,
// schedules every rule keyed (chunk, node).
func (pe *PolicyEngine) OnChunkReady(nodeID string, chunk ChunkID) {
	key := chunkNodeLatchKey{chunk: chunk, node: nodeID}
	if !pe.latches.Fire(key) {
		return
	}
	for _, e := range pe.rules[ruleKey{chunk: chunk, src: nodeID}] {
		pe.scheduleRule(e)
	}
}

// scheduleRule waits for the time gate, then the dependency gate, then
// fires. Each rule instance is scheduled exactly once, by construction:
// OnChunkReady only reaches this for the single (chunk, node) pair that
// indexes it, and that pair fires at most once.
func (pe *PolicyEngine) scheduleRule(e *PolicyEntry) {
	wait := e.Time - pe.sched.Now()
	if wait < 0 {
		wait = 0
	}
	pe.sched.Schedule(wait, func() {
		pe.awaitDependencies(e)
	})
}

func (pe *PolicyEngine) awaitDependencies(e *PolicyEntry) {
	if len(e.Dependency) == 0 {
		pe.fireEntry(e)
		return
	}
	remaining := len(e.Dependency)
	onReady := func() {
		remaining--
		if remaining == 0 {
			pe.fireEntry(e)
		}
	}
	for _, dep := range e.Dependency {
		pe.latches.Wait(chunkNodeLatchKey{chunk: dep, node: e.Src}, onReady)
	}
}

// fireEntry expands e into total_packets packets and injects them from src.
func (pe *PolicyEngine) fireEntry(e *PolicyEntry) {
	ps := int64(pe.spec.PacketSizeBytes)
	total := int((e.ChunkSizeBytes + ps - 1) / ps)
	if total < 1 {
		total = 1
	}

	tx := TxID{Chunk: e.Chunk, Src: e.Src, Dst: e.Dst}
	pe.sim.registerTx(tx)

	for i := 0; i < total; i++ {
		remaining := e.ChunkSizeBytes - int64(i)*ps
		sz := ps
		if remaining < ps {
			sz = remaining
		}
		if sz <= 0 {
			sz = ps
		}

		path := make([]string, len(e.Path))
		copy(path, e.Path)

		pkt := &Packet{
			TxID:         tx,
			Chunk:        e.Chunk,
			Seq:          i,
			TotalPackets: total,
			SizeBytes:    int(sz),
			Path:         path,
			HopIdx:       0,
			QPID:         e.QPID,
			Rate:         e.Rate,
			CreatedTime:  pe.sched.Now(),
		}
		pe.sim.sendFromSrc(pkt)
	}
}
