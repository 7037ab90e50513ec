// Package stream implements Pulse's named data streams: per-stream ring
// buffers, the stream registry, subscriber fan-out, and CEL point filters.
//
// # Overview
//
// Each Stream owns one bounded Buffer (FIFO eviction, default capacity
// 1000) plus the fan-out set of subscriber sinks. The Registry creates
// streams lazily on first subscribe or first append and assigns every
// appended point a sortable id. Appending and fan-out share the stream
// lock, so delivery order per subscriber always equals append order;
// sinks must therefore never block.
//
// Reads are copy-on-read: Query, Recent, and Last return fresh slices,
// never live references into a buffer.
//
// API surface (internal)
//
//	r := stream.NewRegistry(1000)
//	p, _ := r.Append("temp", stream.Point{Value: 21.5})
//	recent := r.Recent("temp", 10)
//	window := r.Query("temp", stream.QueryOptions{From: t0, Limit: 5})
//
//	// Fan-out
//	st := r.Ensure("temp")
//	st.Attach(connID, sink) // sink.OnPoint fires for every append
//	st.Detach(connID)
//
//	// Optional CEL filter over value, metadata, ts_ms, now_ms
//	f, err := stream.NewFilter(`value > 20.0 && metadata["unit"] == "C"`)
//	ok := f.Eval(p)
package stream
