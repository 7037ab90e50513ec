package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rzbill/pulse/internal/metrics"
	"github.com/rzbill/pulse/internal/protocol"
	"github.com/rzbill/pulse/internal/stream"
)

// Sentinel errors for the engine's operational surface.
var (
	// ErrShutdown reports an operation attempted after Shutdown.
	ErrShutdown = errors.New("engine: shut down")
	// ErrInvalidInterval reports a non-positive subscribe interval.
	ErrInvalidInterval = errors.New("engine: interval must be positive")
	// ErrUnknownConnection reports an operation naming an unregistered
	// connection. Callers treat it as benign; disconnect races are expected.
	ErrUnknownConnection = errors.New("engine: unknown connection")
)

// Options configures an Engine. Zero fields take the documented defaults.
type Options struct {
	// Streams is the stream registry; a fresh one is created when nil.
	Streams *stream.Registry
	// Metrics is optional; a nil collector disables counting.
	Metrics *metrics.Collector
	Logger  zerolog.Logger

	// DefaultInterval is the catch-up cadence applied when a subscribe
	// omits intervalMs. Default 5s.
	DefaultInterval time.Duration
	// PrimingCount bounds the slice pushed at subscribe time. Default 50.
	PrimingCount int
	// CatchupCount bounds the slice pushed on each catch-up tick. Default 10.
	CatchupCount int
	// HeartbeatPeriod is the liveness sweep period. Default 30s.
	HeartbeatPeriod time.Duration
	// MaxPayloadBytes is announced to clients in connection_established;
	// transports enforce it. Default 1 MiB.
	MaxPayloadBytes int64
}

func (o *Options) fill() {
	if o.DefaultInterval <= 0 {
		o.DefaultInterval = 5 * time.Second
	}
	if o.PrimingCount <= 0 {
		o.PrimingCount = 50
	}
	if o.CatchupCount <= 0 {
		o.CatchupCount = 10
	}
	if o.HeartbeatPeriod <= 0 {
		o.HeartbeatPeriod = 30 * time.Second
	}
	if o.MaxPayloadBytes <= 0 {
		o.MaxPayloadBytes = 1 << 20
	}
	if o.Streams == nil {
		o.Streams = stream.NewRegistry(0)
	}
}

// Engine owns the connection table and drives subscriptions, dispatch, and
// liveness. See the package comment for the locking discipline.
type Engine struct {
	opts    Options
	streams *stream.Registry
	metrics *metrics.Collector
	log     zerolog.Logger

	mu     sync.Mutex
	conns  map[string]*connection
	closed bool

	// tasks counts live catch-up goroutines; leaked tasks are correctness
	// bugs, so tests assert on this.
	tasks    atomic.Int64
	shutdown sync.Once
}

// New builds an Engine. Call Run to start the liveness monitor.
func New(opts Options) *Engine {
	opts.fill()
	return &Engine{
		opts:    opts,
		streams: opts.Streams,
		metrics: opts.Metrics,
		log:     opts.Logger,
		conns:   make(map[string]*connection),
	}
}

// Streams exposes the stream registry for read paths (HTTP query, stats).
func (e *Engine) Streams() *stream.Registry { return e.streams }

// SessionConfig is the config blob announced in connection_established.
func (e *Engine) SessionConfig() protocol.SessionConfig {
	return protocol.SessionConfig{
		DefaultIntervalMs: int(e.opts.DefaultInterval.Milliseconds()),
		HeartbeatMs:       e.opts.HeartbeatPeriod.Milliseconds(),
		MaxPayloadBytes:   e.opts.MaxPayloadBytes,
	}
}

// Register adds a connection with the given transport sink and returns its
// id. The connection_established greeting is sent before return. Fails only
// after Shutdown.
func (e *Engine) Register(sink Sink, meta ConnMeta) (string, error) {
	now := time.Now()
	c := &connection{
		id:              uuid.NewString(),
		meta:            meta,
		sink:            sink,
		createdAt:       now,
		lastActive:      now,
		alive:           true,
		defaultInterval: e.opts.DefaultInterval,
		subs:            make(map[string]*subscription),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrShutdown
	}
	e.conns[c.id] = c
	e.mu.Unlock()

	if err := sink.Send(protocol.NewConnectionEstablished(c.id, e.SessionConfig())); err != nil {
		e.dropped(c.id, "connection_established", err)
	}
	e.log.Debug().Str("conn", c.id).Str("remote", meta.RemoteAddr).Msg("connection registered")
	return c.id, nil
}

// Unregister cancels every subscription owned by connID, removes the
// connection from each stream's fan-out set, closes the sink, and deletes
// the record. Idempotent: unknown or repeated ids are no-ops.
func (e *Engine) Unregister(connID string) {
	e.mu.Lock()
	c, ok := e.conns[connID]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.conns, connID)
	streamIDs := make([]string, 0, len(c.subs))
	for id, sub := range c.subs {
		sub.cancel()
		streamIDs = append(streamIDs, id)
	}
	c.subs = nil
	e.mu.Unlock()

	for _, id := range streamIDs {
		if st, ok := e.streams.Get(id); ok {
			st.Detach(connID)
		}
	}
	_ = c.sink.Close()
	e.log.Debug().Str("conn", connID).Int("subscriptions", len(streamIDs)).Msg("connection unregistered")
}

// Touch updates connID's last-activity timestamp. No-op on unknown ids.
func (e *Engine) Touch(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.conns[connID]; ok {
		c.lastActive = time.Now()
	}
}

// MarkAlive restores connID's liveness flag after a probe acknowledgment.
func (e *Engine) MarkAlive(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.conns[connID]; ok {
		c.alive = true
		c.lastActive = time.Now()
	}
}

// IsAlive reports connID's liveness flag; false for unknown ids.
func (e *Engine) IsAlive(connID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conns[connID]
	return ok && c.alive
}

// Connection returns a summary of connID.
func (e *Engine) Connection(connID string) (ConnInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conns[connID]
	if !ok {
		return ConnInfo{}, false
	}
	return e.infoLocked(c), true
}

// Connections summarizes every registered connection.
func (e *Engine) Connections() []ConnInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ConnInfo, 0, len(e.conns))
	for _, c := range e.conns {
		out = append(out, e.infoLocked(c))
	}
	return out
}

func (e *Engine) infoLocked(c *connection) ConnInfo {
	subs := make([]string, 0, len(c.subs))
	for id := range c.subs {
		subs = append(subs, id)
	}
	return ConnInfo{ID: c.id, Meta: c.meta, CreatedAt: c.createdAt, LastActive: c.lastActive, Subscriptions: subs}
}

// AppendPoint is the producer-facing entry: it assigns the point an id (and
// timestamp when ts is zero) and appends it to streamID, fanning out to
// subscribers. Returns false after Shutdown or for an empty stream id.
func (e *Engine) AppendPoint(streamID string, value any, ts time.Time, md map[string]string) bool {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return false
	}
	_, ok := e.streams.Append(streamID, stream.Point{Value: value, Timestamp: ts, Metadata: md})
	if ok && e.metrics != nil {
		e.metrics.AddPoints(1)
	}
	return ok
}

// Counts samples the instantaneous gauge values: registered connections,
// live streams, and active subscriptions. Wired as the metrics collector's
// Gauges func.
func (e *Engine) Counts() (connections, streams, subscriptions int) {
	e.mu.Lock()
	connections = len(e.conns)
	for _, c := range e.conns {
		subscriptions += len(c.subs)
	}
	e.mu.Unlock()
	streams = e.streams.Len()
	return connections, streams, subscriptions
}

// Tasks returns the number of live catch-up task goroutines.
func (e *Engine) Tasks() int { return int(e.tasks.Load()) }

// Metrics samples the collector; zero snapshot when none is wired.
func (e *Engine) Metrics() metrics.Snapshot {
	if e.metrics == nil {
		return metrics.Snapshot{At: time.Now()}
	}
	return e.metrics.Snapshot()
}

// Shutdown cancels every task, closes every connection, and releases the
// stream buffers. Safe to call once; later calls are no-ops. New
// registrations are refused afterwards.
func (e *Engine) Shutdown() {
	e.shutdown.Do(func() {
		e.mu.Lock()
		e.closed = true
		ids := make([]string, 0, len(e.conns))
		for id := range e.conns {
			ids = append(ids, id)
		}
		e.mu.Unlock()

		for _, id := range ids {
			e.Unregister(id)
		}
		e.streams.Clear()
		e.log.Info().Int("connections", len(ids)).Msg("engine shut down")
	})
}

func (e *Engine) dropped(connID, kind string, err error) {
	if e.metrics != nil {
		e.metrics.IncDropped()
	}
	e.log.Debug().Str("conn", connID).Str("message", kind).Err(err).Msg("delivery dropped")
	if errors.Is(err, ErrClosed) {
		// Can run under a stream lock; cleanup needs engine.mu, so it must
		// not happen inline.
		go e.Unregister(connID)
	}
}

// sinkFor fetches connID's sink for reply paths.
func (e *Engine) sinkFor(connID string) (Sink, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conns[connID]
	if !ok {
		return nil, false
	}
	return c.sink, true
}
