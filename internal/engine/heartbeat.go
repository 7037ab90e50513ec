package engine

import (
	"context"
	"time"
)

// Run drives the liveness monitor until ctx is cancelled. Each sweep evicts
// every connection whose flag is still false from the previous sweep, then
// clears the remaining flags and sends probes. A single missed window
// evicts: the flag is cleared right before each probe and restored only by
// MarkAlive, so there is no two-strikes grace.
func (e *Engine) Run(ctx context.Context) {
	t := time.NewTicker(e.opts.HeartbeatPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.sweep()
		}
	}
}

// sweep partitions connections into dead (flag still false) and live; dead
// ones are terminated, live ones get their flag cleared and a probe. Probes
// run outside engine.mu; a sink's Probe must not block, but it may still
// touch transport state the engine has no business holding a lock over.
func (e *Engine) sweep() {
	type probe struct {
		id   string
		sink Sink
	}
	var dead []string
	var probes []probe

	e.mu.Lock()
	for id, c := range e.conns {
		if !c.alive {
			dead = append(dead, id)
			continue
		}
		c.alive = false
		probes = append(probes, probe{id: id, sink: c.sink})
	}
	e.mu.Unlock()

	for _, id := range dead {
		e.log.Info().Str("conn", id).Msg("heartbeat missed, evicting connection")
		e.Unregister(id)
	}
	for _, p := range probes {
		if err := p.sink.Probe(); err != nil {
			e.log.Debug().Str("conn", p.id).Err(err).Msg("probe failed, evicting connection")
			e.Unregister(p.id)
		}
	}
}
