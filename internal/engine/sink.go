package engine

import (
	"errors"

	"github.com/rzbill/pulse/internal/protocol"
)

// Sentinel errors returned by Sink implementations. The engine treats any
// Send error as a delivery failure; ErrClosed additionally triggers the
// connection cleanup path immediately rather than waiting for the next
// liveness sweep.
var (
	// ErrClosed reports a sink whose transport has gone away.
	ErrClosed = errors.New("engine: sink closed")
	// ErrQueueFull reports a slow consumer whose outbound queue is full.
	// The message is dropped; the connection stays registered.
	ErrQueueFull = errors.New("engine: outbound queue full")
)

// Sink is the transport half of a connection. Implementations queue
// outbound work for a writer goroutine; no method may block, because Send
// runs on dispatch paths that hold a stream lock.
type Sink interface {
	// Send enqueues one outbound message. It returns ErrQueueFull when the
	// client cannot keep up and ErrClosed once the transport is gone.
	Send(msg protocol.Outbound) error
	// Probe enqueues a transport-level liveness probe. The transport calls
	// Engine.MarkAlive when the peer acknowledges.
	Probe() error
	// Close tears the transport down. It must be idempotent.
	Close() error
}
