// Package timeline provides the single event-processing timeline every
// ledger mutation and sync transition runs on.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Work is submitted as tasks into a FIFO queue and executed one at a time
// by the goroutine that called Run. Two tasks never interleave, so the
// ledger and the bridge need no locks. Remote calls run elsewhere and
// come back as new tasks, which is how "responses are handled strictly one
// at a time" is enforced.
//
// Ordering is queue order, not wall-clock order. Each executed task is
// stamped with a monotonic sequence number from Clock.
//
// Thread-safety model:
//   - Post(), Do(): safe from any goroutine
//   - Run(), RunPending(): from exactly one goroutine at a time
package timeline
