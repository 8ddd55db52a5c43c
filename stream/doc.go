// Package stream turns callback-driven lifecycle pushes into a pull-based
// event sequence.
//
// Three pieces cooperate: Bridge serializes concurrent pushes into a strict
// FIFO a single consumer drains; Tracer is a callbacks.Handler that builds
// an Event per lifecycle transition, applies the root event Filter, and
// publishes survivors through its bridge; Events ties them together,
// running a computation in a producer goroutine while the caller iterates
// the resulting stream.
//
// Ordering: within one run, the start event precedes every stream event,
// which precede the end event. Across sibling runs the stream preserves
// whatever order the producers pushed in, nothing more.
//
// Events failing the filter are dropped silently by design; selective
// subscription is a volume knob, not an error.
package stream
