package engine

import (
	"fmt"
	"time"

	"github.com/rzbill/pulse/internal/protocol"
	"github.com/rzbill/pulse/internal/stream"
)

// HandleMessage dispatches one decoded inbound message for connID. Replies
// go back through the connection's sink; failures stay local to the
// connection. Unknown connection ids are no-ops.
func (e *Engine) HandleMessage(connID string, in protocol.Inbound) {
	e.Touch(connID)
	if e.metrics != nil {
		e.metrics.IncMessages()
	}

	sink, ok := e.sinkFor(connID)
	if !ok {
		return
	}

	switch m := in.(type) {
	case *protocol.Subscribe:
		e.handleSubscribe(connID, sink, m)
	case *protocol.Unsubscribe:
		e.Unsubscribe(connID, m.StreamID)
		e.reply(connID, sink, protocol.NewUnsubscriptionConfirmed(m.StreamID))
	case *protocol.RequestData:
		e.handleRequestData(connID, sink, m)
	case *protocol.UpdateConfig:
		e.handleUpdateConfig(connID, sink, m)
	case *protocol.Ping:
		e.reply(connID, sink, protocol.NewPong())
	default:
		// The inbound set is closed; hitting this means a decoder change
		// outpaced the dispatcher.
		e.reply(connID, sink, protocol.NewError(fmt.Sprintf("unsupported message type %T", in)))
	}
}

func (e *Engine) handleSubscribe(connID string, sink Sink, m *protocol.Subscribe) {
	if m.StreamID == "" {
		e.reply(connID, sink, protocol.NewError("subscribe: streamId is required"))
		return
	}
	interval := e.intervalFor(connID)
	if m.IntervalMs != nil {
		if *m.IntervalMs <= 0 {
			e.reply(connID, sink, protocol.NewError(fmt.Sprintf("subscribe: intervalMs must be positive, got %d", *m.IntervalMs)))
			return
		}
		interval = time.Duration(*m.IntervalMs) * time.Millisecond
	}
	if err := e.Subscribe(connID, m.StreamID, interval, m.Filters); err != nil {
		e.reply(connID, sink, protocol.NewError(err.Error()))
		return
	}
	e.reply(connID, sink, protocol.NewSubscriptionConfirmed(m.StreamID, int(interval.Milliseconds())))
}

func (e *Engine) handleRequestData(connID string, sink Sink, m *protocol.RequestData) {
	var opts stream.QueryOptions
	if m.TimeRange != nil {
		if m.TimeRange.From > 0 {
			opts.From = time.UnixMilli(m.TimeRange.From)
		}
		if m.TimeRange.To > 0 {
			opts.To = time.UnixMilli(m.TimeRange.To)
		}
	}
	opts.Limit = m.Limit

	// Unknown stream is an empty response, not an error.
	data := e.streams.Query(m.StreamID, opts)
	total := 0
	if st, ok := e.streams.Get(m.StreamID); ok {
		total = st.Len()
	}
	e.reply(connID, sink, protocol.NewDataResponse(m.StreamID, data, total))
}

func (e *Engine) handleUpdateConfig(connID string, sink Sink, m *protocol.UpdateConfig) {
	if m.IntervalMs == nil {
		return
	}
	if *m.IntervalMs <= 0 {
		e.reply(connID, sink, protocol.NewError(fmt.Sprintf("update_config: intervalMs must be positive, got %d", *m.IntervalMs)))
		return
	}
	e.mu.Lock()
	if c, ok := e.conns[connID]; ok {
		c.defaultInterval = time.Duration(*m.IntervalMs) * time.Millisecond
	}
	e.mu.Unlock()
}

func (e *Engine) intervalFor(connID string) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.conns[connID]; ok {
		return c.defaultInterval
	}
	return e.opts.DefaultInterval
}

func (e *Engine) reply(connID string, sink Sink, msg protocol.Outbound) {
	if err := sink.Send(msg); err != nil {
		e.dropped(connID, msg.Kind(), err)
	}
}
