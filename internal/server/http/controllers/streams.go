package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rzbill/pulse/internal/engine"
	"github.com/rzbill/pulse/internal/stream"
)

// StreamsController handles the REST stream surface: management, producer
// append, buffer query, and the SSE tail.
type StreamsController struct {
	eng     *engine.Engine
	log     zerolog.Logger
	sendBuf int
}

// NewStreamsController creates a new streams controller.
func NewStreamsController(eng *engine.Engine, sendBuf int, logger zerolog.Logger) *StreamsController {
	if sendBuf <= 0 {
		sendBuf = 256
	}
	return &StreamsController{eng: eng, log: logger, sendBuf: sendBuf}
}

// RegisterRoutes registers all stream-related routes with the given mux.
func (c *StreamsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/streams", c.handleListStreams)
	mux.HandleFunc("/v1/streams/create", c.handleCreate)
	mux.HandleFunc("/v1/streams/append", c.handleAppend)
	mux.HandleFunc("/v1/streams/query", c.handleQuery)
	mux.HandleFunc("/v1/streams/stats", c.handleStats)
	mux.HandleFunc("/v1/streams/tail", c.handleTailSSE)
}

// handleListStreams lists every stream with its stats.
func (c *StreamsController) handleListStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	stats := c.eng.Streams().Stats()
	writeJSON(w, map[string]any{"streams": stats, "count": len(stats)})
}

// handleCreate explicitly creates a stream with an optional capacity
// override and config blob. Lazy creation on subscribe/append still applies
// elsewhere; this is for callers that want a non-default capacity.
func (c *StreamsController) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Stream == "" {
		writeError(w, http.StatusBadRequest, "stream is required")
		return
	}
	if req.Capacity < 0 {
		writeError(w, http.StatusBadRequest, "capacity must be non-negative")
		return
	}
	c.eng.Streams().Create(req.Stream, stream.Options{Capacity: req.Capacity, Config: req.Filters})
	writeCreated(w)
}

// handleAppend is the HTTP producer path.
func (c *StreamsController) handleAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req appendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Stream == "" {
		writeError(w, http.StatusBadRequest, "stream is required")
		return
	}
	var ts time.Time
	if req.Timestamp != "" {
		ts = parseTimestamp(req.Timestamp)
		if ts.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid timestamp; use RFC3339 or unix milliseconds")
			return
		}
	}
	accepted := c.eng.AppendPoint(req.Stream, req.Value, ts, req.Metadata)
	if !accepted {
		writeError(w, http.StatusServiceUnavailable, "append rejected")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(appendResp{Stream: req.Stream, Accepted: true})
}

// handleQuery reads a filtered window of a stream's buffer. Unknown streams
// yield an empty result, not an error.
func (c *StreamsController) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	streamID := q.Get("stream")
	if streamID == "" {
		writeError(w, http.StatusBadRequest, "stream parameter is required")
		return
	}
	opts := stream.QueryOptions{
		From:  parseTimestamp(q.Get("from")),
		To:    parseTimestamp(q.Get("to")),
		Limit: parseLimit(q.Get("limit")),
	}
	data := c.eng.Streams().Query(streamID, opts)
	total := 0
	if st, ok := c.eng.Streams().Get(streamID); ok {
		total = st.Len()
	}
	if data == nil {
		data = []stream.Point{}
	}
	writeJSON(w, map[string]any{"stream": streamID, "total_points": total, "data": data})
}

// handleStats returns one stream's stats.
func (c *StreamsController) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	streamID := r.URL.Query().Get("stream")
	if streamID == "" {
		writeError(w, http.StatusBadRequest, "stream parameter is required")
		return
	}
	stats, ok := c.eng.Streams().StatsFor(streamID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown stream")
		return
	}
	writeJSON(w, stats)
}

// handleTailSSE tails a stream over Server-Sent Events. The client becomes
// an ephemeral engine connection: it joins the fan-out set, gets the
// priming push and catch-up cadence like any subscriber, and is evicted by
// the liveness sweep when writes start failing.
// Query params: stream (required), expr (CEL filter), interval_ms.
func (c *StreamsController) handleTailSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	streamID := r.URL.Query().Get("stream")
	if streamID == "" {
		writeError(w, http.StatusBadRequest, "stream parameter is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	interval := time.Duration(c.eng.SessionConfig().DefaultIntervalMs) * time.Millisecond
	if ms := parseLimit(r.URL.Query().Get("interval_ms")); ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	var filters map[string]any
	if expr := r.URL.Query().Get("expr"); expr != "" {
		filters = map[string]any{"expr": expr}
	}

	session := newSSESession(c.sendBuf)
	meta := engine.ConnMeta{RemoteAddr: r.RemoteAddr, UserAgent: r.UserAgent(), Origin: r.Header.Get("Origin")}
	id, err := c.eng.Register(session, meta)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer c.eng.Unregister(id)

	if err := c.eng.Subscribe(id, streamID, interval, filters); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.closed:
			return
		case f := <-session.out:
			if f.probe {
				if _, err := w.Write([]byte(": ping\n\n")); err != nil {
					return
				}
				flusher.Flush()
				// A live write is the ack for an SSE peer.
				c.eng.MarkAlive(id)
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(f.payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
