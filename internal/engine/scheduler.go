package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/pulse/internal/protocol"
	"github.com/rzbill/pulse/internal/stream"
)

// Subscribe starts (or replaces) connID's subscription to streamID. The
// stream is created lazily, the connection joins its fan-out set, a priming
// push with the most recent slice is sent immediately, and a recurring
// catch-up task begins at interval. A prior subscription to the same stream
// is cancelled first: repeated subscribes replace, never stack.
//
// filters is the opaque config blob from the subscribe message; its "expr"
// key, when present, must compile as a CEL expression or no state is
// mutated.
func (e *Engine) Subscribe(connID, streamID string, interval time.Duration, filters map[string]any) error {
	if streamID == "" {
		return fmt.Errorf("engine: subscribe: empty stream id")
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}
	filter, err := stream.FilterFromConfig(filters)
	if err != nil {
		return fmt.Errorf("engine: subscribe %s: %w", streamID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		streamID:  streamID,
		interval:  interval,
		filter:    filter,
		cancel:    cancel,
		createdAt: time.Now(),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return ErrShutdown
	}
	c, ok := e.conns[connID]
	if !ok {
		e.mu.Unlock()
		cancel()
		return ErrUnknownConnection
	}
	if prev, ok := c.subs[streamID]; ok {
		prev.cancel()
	}
	c.subs[streamID] = sub
	sink := c.sink
	e.mu.Unlock()

	st := e.streams.Create(streamID, stream.Options{Config: filters})
	st.Attach(connID, &fanout{e: e, connID: connID, sink: sink, filter: filter})

	pts := filter.Apply(st.Last(e.opts.PrimingCount))
	if err := sink.Send(protocol.NewDataUpdate(streamID, pts)); err != nil {
		e.dropped(connID, protocol.KindDataUpdate, err)
	}

	go e.runCatchup(ctx, connID, sub)
	e.log.Debug().Str("conn", connID).Str("stream", streamID).Dur("interval", interval).Msg("subscribed")
	return nil
}

// Unsubscribe cancels connID's subscription to streamID and removes the
// connection from the stream's fan-out set. No-op when the subscription
// does not exist.
func (e *Engine) Unsubscribe(connID, streamID string) {
	e.mu.Lock()
	c, ok := e.conns[connID]
	if !ok {
		e.mu.Unlock()
		return
	}
	sub, ok := c.subs[streamID]
	if !ok {
		e.mu.Unlock()
		return
	}
	sub.cancel()
	delete(c.subs, streamID)
	e.mu.Unlock()

	if st, ok := e.streams.Get(streamID); ok {
		st.Detach(connID)
	}
	e.log.Debug().Str("conn", connID).Str("stream", streamID).Msg("unsubscribed")
}

// runCatchup is the recurring task for one subscription. Each tick
// re-validates that the connection is registered and sub is still its
// current subscription (identity check, so a replacement task is never
// confused for this one); when either has gone it self-cancels.
func (e *Engine) runCatchup(ctx context.Context, connID string, sub *subscription) {
	e.tasks.Add(1)
	defer e.tasks.Add(-1)

	t := time.NewTicker(sub.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sink, ok := e.currentSink(connID, sub)
			if !ok {
				return
			}
			pts := sub.filter.Apply(e.streams.Recent(sub.streamID, e.opts.CatchupCount))
			if err := sink.Send(protocol.NewDataUpdate(sub.streamID, pts)); err != nil {
				e.dropped(connID, protocol.KindDataUpdate, err)
			}
		}
	}
}

// currentSink returns connID's sink iff sub is still its live subscription.
func (e *Engine) currentSink(connID string, sub *subscription) (Sink, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conns[connID]
	if !ok {
		return nil, false
	}
	if c.subs[sub.streamID] != sub {
		return nil, false
	}
	return c.sink, true
}

// fanout adapts one subscriber's sink into a stream.Sink. OnPoint runs
// under the stream lock, so it must only filter and enqueue; failures are
// counted and, for closed sinks, kick off asynchronous cleanup.
type fanout struct {
	e      *Engine
	connID string
	sink   Sink
	filter stream.Filter
}

func (f *fanout) OnPoint(streamID string, p stream.Point) {
	if !f.filter.Eval(p) {
		return
	}
	if err := f.sink.Send(protocol.NewDataPoint(streamID, p)); err != nil {
		f.e.dropped(f.connID, protocol.KindDataPoint, err)
	}
}
