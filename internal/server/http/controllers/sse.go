package controllers

import (
	"sync"

	"github.com/rzbill/pulse/internal/engine"
	"github.com/rzbill/pulse/internal/protocol"
)

type sseFrame struct {
	probe   bool
	payload []byte
}

// sseSession adapts a Server-Sent Events response into an engine.Sink. Send
// and Probe enqueue; the request goroutine drains the queue and writes.
// Probes become SSE comment lines: a dead peer surfaces as a write error,
// and a successful write acks the probe synchronously.
type sseSession struct {
	out    chan sseFrame
	closed chan struct{}
	once   sync.Once
}

func newSSESession(sendBuf int) *sseSession {
	return &sseSession{
		out:    make(chan sseFrame, sendBuf),
		closed: make(chan struct{}),
	}
}

func (s *sseSession) Send(msg protocol.Outbound) error {
	b, err := protocol.EncodeOutbound(msg)
	if err != nil {
		return err
	}
	select {
	case <-s.closed:
		return engine.ErrClosed
	default:
	}
	select {
	case s.out <- sseFrame{payload: b}:
		return nil
	case <-s.closed:
		return engine.ErrClosed
	default:
		return engine.ErrQueueFull
	}
}

func (s *sseSession) Probe() error {
	select {
	case s.out <- sseFrame{probe: true}:
		return nil
	case <-s.closed:
		return engine.ErrClosed
	default:
		return engine.ErrQueueFull
	}
}

func (s *sseSession) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
