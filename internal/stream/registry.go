package stream

import (
	"sort"
	"sync"
	"time"

	"github.com/rzbill/pulse/pkg/id"
)

// Options carries per-stream overrides applied at creation time.
type Options struct {
	// Capacity overrides the registry default when > 0. It only applies
	// when the stream is created; existing buffers are never resized.
	Capacity int
	// Config is the opaque filter/config blob stored on the stream.
	Config map[string]any
}

// Registry owns all named streams. Streams are created lazily on first
// subscribe or first append and persist until the registry is cleared at
// shutdown.
type Registry struct {
	mu       sync.RWMutex
	streams  map[string]*Stream
	capacity int
	gen      *id.Generator
}

// NewRegistry returns a Registry whose streams default to the given buffer
// capacity. Non-positive capacities fall back to DefaultCapacity.
func NewRegistry(defaultCapacity int) *Registry {
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultCapacity
	}
	return &Registry{
		streams:  make(map[string]*Stream),
		capacity: defaultCapacity,
		gen:      id.NewGenerator(),
	}
}

// Ensure returns the stream named streamID, creating it with defaults when
// absent.
func (r *Registry) Ensure(streamID string) *Stream {
	return r.Create(streamID, Options{})
}

// Create returns the stream named streamID, creating it with opts when
// absent. For an existing stream a non-nil opts.Config replaces the stored
// blob; capacity changes are ignored.
func (r *Registry) Create(streamID string, opts Options) *Stream {
	r.mu.RLock()
	st, ok := r.streams[streamID]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		st, ok = r.streams[streamID]
		if !ok {
			capacity := r.capacity
			if opts.Capacity > 0 {
				capacity = opts.Capacity
			}
			st = newStream(streamID, capacity)
			r.streams[streamID] = st
		}
		r.mu.Unlock()
	}
	if opts.Config != nil {
		st.SetConfig(opts.Config)
	}
	return st
}

// Get returns the stream named streamID without creating it.
func (r *Registry) Get(streamID string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.streams[streamID]
	return st, ok
}

// Append assigns the point an id (and a timestamp when missing), clones its
// metadata, and appends it to streamID, lazily creating the stream. The
// stored point is returned; ok is false only for an empty stream id.
func (r *Registry) Append(streamID string, p Point) (Point, bool) {
	if streamID == "" {
		return Point{}, false
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
		p.ID = r.gen.Next()
	} else {
		p.ID = r.gen.NextAt(p.Timestamp)
	}
	p.Metadata = cloneMetadata(p.Metadata)

	st := r.Ensure(streamID)
	st.Append(p)
	return p, true
}

// Query returns a filtered copy of streamID's buffer. An unknown stream
// yields an empty result, not an error.
func (r *Registry) Query(streamID string, opts QueryOptions) []Point {
	st, ok := r.Get(streamID)
	if !ok {
		return nil
	}
	return st.Query(opts)
}

// Recent returns the newest n points of streamID in chronological order.
// An unknown stream yields an empty result.
func (r *Registry) Recent(streamID string, n int) []Point {
	st, ok := r.Get(streamID)
	if !ok {
		return nil
	}
	return st.Last(n)
}

// Len returns the number of live streams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

// Stats summarizes every stream, sorted by stream id.
func (r *Registry) Stats() []Stats {
	r.mu.RLock()
	streams := make([]*Stream, 0, len(r.streams))
	for _, st := range r.streams {
		streams = append(streams, st)
	}
	r.mu.RUnlock()

	out := make([]Stats, 0, len(streams))
	for _, st := range streams {
		out = append(out, st.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stream < out[j].Stream })
	return out
}

// StatsFor summarizes a single stream.
func (r *Registry) StatsFor(streamID string) (Stats, bool) {
	st, ok := r.Get(streamID)
	if !ok {
		return Stats{}, false
	}
	return st.Stats(), true
}

// Clear drops every stream, releasing the buffers. Called once at shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = make(map[string]*Stream)
}
