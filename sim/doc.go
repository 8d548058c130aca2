// Package sim is the discrete-event kernel for the collective-communication
// packet simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go: the virtual-time scheduler (priority queue of callbacks)
//   - port.go: per-link queueing, round-robin service, propagation delay
//   - node.go: GPU/switch receive behavior
//   - policy.go: rule installation, dependency/time gating, packet fan-out
//   - simulator.go: wires nodes/ports from a topology and drains the event loop
//
// The kernel has no notion of wall-clock time, goroutines, or locking: it is
// single-threaded and cooperative. Every suspension point is expressed as a
// Scheduler callback rescheduling itself (see event.go).
package sim
