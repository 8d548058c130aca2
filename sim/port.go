package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// LinkSpec is a directed edge's mutable rate/delay pair.
type LinkSpec struct {
	RateBps   float64
	PropDelay float64
}

// Port models one directed output link: num_qps FIFOs multiplexed by
// round-robin with a quantum, a single server, and a fixed propagation
// delay applied after service. There is never more than one drain activity
// in flight per port; it restarts itself whenever the queue transitions
// from empty to non-empty.
type Port struct {
	sched   *Scheduler
	ownerID string
	nextHop string

	link        LinkSpec
	deliver     func(pkt *Packet)
	numQPs      int
	quantum     int
	txProcDelay float64
	headerBytes int

	queues      [][]*Packet
	totalQueued int
	rr          int
	draining    bool
}

// NewPort constructs a port for the owner->nextHop directed edge.
func NewPort(sched *Scheduler, ownerID, nextHop string, link LinkSpec, deliver func(*Packet), numQPs, quantum int, txProcDelay float64, headerBytes int) *Port {
	if numQPs < 1 {
		numQPs = 1
	}
	if quantum < 1 {
		quantum = 1
	}
	return &Port{
		sched:       sched,
		ownerID:     ownerID,
		nextHop:     nextHop,
		link:        link,
		deliver:     deliver,
		numQPs:      numQPs,
		quantum:     quantum,
		txProcDelay: math.Max(0, txProcDelay),
		headerBytes: headerBytes,
		queues:      make([][]*Packet, numQPs),
	}
}

// SetLinkRate atomically replaces the port's line rate, keeping the
// propagation delay. A packet already in service keeps its previously
// computed service time; every service computation beginning after this
// call observes the new rate.
func (p *Port) SetLinkRate(newRateBps float64) error {
	if !math.IsFinite(newRateBps) || newRateBps <= 0 {
		return newErrorf(KindInvalidRate, "new link_rate_bps must be finite and > 0 on %s->%s, got %v", p.ownerID, p.nextHop, newRateBps)
	}
	p.link = LinkSpec{RateBps: newRateBps, PropDelay: p.link.PropDelay}
	return nil
}

// Enqueue appends pkt to the tail of qpid's FIFO. O(1), never blocks; starts
// a drain activity only on an empty-to-nonempty transition.
func (p *Port) Enqueue(pkt *Packet, qpid int) {
	idx := ((qpid % p.numQPs) + p.numQPs) % p.numQPs
	wasEmpty := p.totalQueued == 0
	p.queues[idx] = append(p.queues[idx], pkt)
	p.totalQueued++
	logrus.Debugf("port %s->%s: enqueue tx=%s seq=%d qp=%d queued=%d", p.ownerID, p.nextHop, pkt.TxID, pkt.Seq, idx, p.totalQueued)
	if wasEmpty && !p.draining {
		p.draining = true
		p.sched.Schedule(0, p.drainStep)
	}
}

func (p *Port) nextNonEmptyQP() int {
	for i := 0; i < p.numQPs; i++ {
		idx := (p.rr + i) % p.numQPs
		if len(p.queues[idx]) > 0 {
			return idx
		}
	}
	return -1
}

// drainStep picks the current RR queue and begins serving it; it exits
// (clearing the in-flight latch) once the total queued count reaches zero.
func (p *Port) drainStep() {
	if p.totalQueued == 0 {
		p.draining = false
		return
	}
	qp := p.nextNonEmptyQP()
	if qp < 0 {
		p.draining = false
		return
	}
	p.serveQuantum(qp, 0)
}

// serveQuantum serves up to p.quantum consecutive packets from qp, one at a
// time, each step suspending for tx_proc_delay then service_time before the
// next packet begins service. When the quantum is exhausted or qp empties,
// the RR cursor advances and drainStep is re-entered.
func (p *Port) serveQuantum(qp, sent int) {
	if sent >= p.quantum || len(p.queues[qp]) == 0 {
		p.rr = (qp + 1) % p.numQPs
		p.sched.Schedule(0, p.drainStep)
		return
	}

	pkt := p.queues[qp][0]
	p.queues[qp] = p.queues[qp][1:]
	p.totalQueued--

	serve := func() {
		st := p.serviceTime(pkt)
		p.sched.Schedule(st, func() {
			pd := p.link.PropDelay
			p.sched.Schedule(pd, func() {
				logrus.Debugf("port %s->%s: deliver tx=%s seq=%d at t=%.9f", p.ownerID, p.nextHop, pkt.TxID, pkt.Seq, p.sched.Now())
				p.deliver(pkt)
			})
			p.serveQuantum(qp, sent+1)
		})
	}

	if p.txProcDelay > 0 {
		p.sched.Schedule(p.txProcDelay, serve)
	} else {
		serve()
	}
}

// serviceTime computes (size+header)*8/effective_rate. It panics on
// InvalidRate: by the time a packet reaches service every rate should
// already have been validated at PolicyEntry install or SetLinkRate, so a
// failure here indicates an uncaught programmer/config error reaching the
// event loop, which the kernel does not swallow.
func (p *Port) serviceTime(pkt *Packet) float64 {
	linkRate := p.link.RateBps
	if linkRate <= 0 {
		panic(newErrorf(KindInvalidRate, "link_rate_bps must be > 0 on %s->%s", p.ownerID, p.nextHop))
	}

	bps, useMax := pkt.Rate.Resolve()
	var eff float64
	if useMax {
		eff = linkRate
	} else {
		if bps <= 0 {
			panic(newErrorf(KindInvalidRate, "rate_bps must be > 0 for tx=%s", pkt.TxID))
		}
		eff = math.Min(bps, linkRate)
	}

	totalBits := float64(pkt.SizeBytes+p.headerBytes) * 8
	return totalBits / eff
}
