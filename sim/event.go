package sim

import "container/heap"

// Event is a single scheduled callback. Ordering is by (Time, Seq): ties are
// broken by insertion order, so the scheduler is deterministic for a fixed
// sequence of Schedule calls.
type Event interface {
	Time() float64
	Seq() uint64
	Run()
}

// funcEvent adapts a plain closure to Event. Every "process" in this kernel
// (port drain, policy waiter, link-rate driver) is a closure that, when it
// needs to suspend, schedules its own continuation and returns — there is no
// stack to save.
type funcEvent struct {
	t   float64
	seq uint64
	fn  func()
}

func (e *funcEvent) Time() float64 { return e.t }
func (e *funcEvent) Seq() uint64   { return e.seq }
func (e *funcEvent) Run()          { e.fn() }

// eventHeap implements heap.Interface over Event, ordered by (Time, Seq).
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time() != h[j].Time() {
		return h[i].Time() < h[j].Time()
	}
	return h[i].Seq() < h[j].Seq()
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler is the virtual-clock event loop: a monotonically increasing
// clock and a priority queue of pending callbacks. It is single-threaded and
// cooperative — callbacks never block on real I/O, only on scheduling a
// future callback and returning.
type Scheduler struct {
	now     float64
	queue   eventHeap
	nextSeq uint64
}

// NewScheduler creates an idle scheduler with the clock at zero.
func NewScheduler() *Scheduler {
	s := &Scheduler{queue: make(eventHeap, 0)}
	heap.Init(&s.queue)
	return s
}

// Now returns the current virtual time.
func (s *Scheduler) Now() float64 { return s.now }

// Pending reports how many callbacks are still queued.
func (s *Scheduler) Pending() int { return s.queue.Len() }

// Schedule enqueues fn to run at s.Now()+delay. delay must be >= 0; delay 0
// schedules strictly after already-queued callbacks at the current instant,
// since Seq only increases.
func (s *Scheduler) Schedule(delay float64, fn func()) {
	s.nextSeq++
	heap.Push(&s.queue, &funcEvent{t: s.now + delay, seq: s.nextSeq, fn: fn})
}

// Run pops the earliest pending callback, advances the clock to its time,
// and invokes it, repeating until the queue drains or the next pending
// callback is at or after until; that callback stays queued and the clock is
// not advanced to it. A nil until runs to quiescence.
func (s *Scheduler) Run(until *float64) {
	for s.queue.Len() > 0 {
		next := s.queue[0]
		if until != nil && next.Time() >= *until {
			return
		}
		e := heap.Pop(&s.queue).(Event)
		s.now = e.Time()
		e.Run()
	}
}
