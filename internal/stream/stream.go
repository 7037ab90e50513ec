package stream

import (
	"sync"
	"time"
)

// Sink receives points fanned out from a stream. OnPoint runs under the
// stream lock so per-stream delivery order equals append order; sinks must
// not block (hand off to a buffered queue and drop on overflow).
type Sink interface {
	OnPoint(streamID string, p Point)
}

// Stream owns one bounded buffer, an opaque config blob, and the fan-out
// set of subscriber sinks keyed by connection id.
type Stream struct {
	id string

	mu         sync.RWMutex
	buf        *Buffer
	config     map[string]any
	lastUpdate time.Time
	subs       map[string]Sink
}

func newStream(id string, capacity int) *Stream {
	return &Stream{
		id:   id,
		buf:  NewBuffer(capacity),
		subs: make(map[string]Sink),
	}
}

// ID returns the stream's caller-supplied identifier.
func (s *Stream) ID() string { return s.id }

// Append stores p and fans it out to every attached sink. Buffer mutation
// and fan-out share one critical section: two racing appends cannot
// interleave their deliveries, which is what keeps per-subscriber order
// equal to append order.
func (s *Stream) Append(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Append(p)
	s.lastUpdate = time.Now()
	for _, sink := range s.subs {
		sink.OnPoint(s.id, p)
	}
}

// Attach adds or replaces the sink registered under connID.
func (s *Stream) Attach(connID string, sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[connID] = sink
}

// Detach removes the sink registered under connID, if any.
func (s *Stream) Detach(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, connID)
}

// Subscribers returns the current fan-out set size.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Last returns a copy of the newest n points in chronological order.
func (s *Stream) Last(n int) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Last(n)
}

// Len returns the number of buffered points.
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Len()
}

// QueryOptions narrows a Query. Zero From/To leave that bound open; both
// bounds are inclusive. Limit > 0 keeps only the newest Limit matches,
// still returned in chronological order.
type QueryOptions struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Query returns a filtered copy of the buffer contents. The result is never
// a live reference into the buffer.
func (s *Stream) Query(opts QueryOptions) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Point, 0, s.buf.Len())
	for i := 0; i < s.buf.Len(); i++ {
		p := s.buf.at(i)
		if !opts.From.IsZero() && p.Timestamp.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && p.Timestamp.After(opts.To) {
			continue
		}
		matched = append(matched, p)
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[len(matched)-opts.Limit:]
	}
	return matched
}

// SetConfig replaces the stream's opaque config blob.
func (s *Stream) SetConfig(cfg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Config returns a copy of the stream's config blob.
func (s *Stream) Config() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil
	}
	out := make(map[string]any, len(s.config))
	for k, v := range s.config {
		out[k] = v
	}
	return out
}

// Stats summarizes a stream for the operational surface.
type Stats struct {
	Stream       string         `json:"stream"`
	Count        int            `json:"count"`
	Capacity     int            `json:"capacity"`
	Subscribers  int            `json:"subscribers"`
	LastUpdateMs int64          `json:"last_update_ms"`
	Config       map[string]any `json:"config,omitempty"`
}

// Stats returns a point-in-time summary.
func (s *Stream) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Stream:      s.id,
		Count:       s.buf.Len(),
		Capacity:    s.buf.Cap(),
		Subscribers: len(s.subs),
	}
	if s.config != nil {
		cfg := make(map[string]any, len(s.config))
		for k, v := range s.config {
			cfg[k] = v
		}
		st.Config = cfg
	}
	if !s.lastUpdate.IsZero() {
		st.LastUpdateMs = s.lastUpdate.UnixMilli()
	}
	return st
}
