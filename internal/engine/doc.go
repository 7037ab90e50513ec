// Package engine is the real-time distribution core: it tracks client
// connections, their subscriptions, and liveness, schedules periodic
// catch-up pushes, and fans newly appended points out to subscribers.
//
// Locking: engine.mu guards the connection table; each stream carries its
// own lock guarding buffer and fan-out set. Lock order is engine before
// stream, never the reverse, and no I/O happens under either lock;
// deliveries are non-blocking enqueues onto each connection's sink.
package engine
