// Package id provides 128-bit, lexicographically sortable data point
// identifiers.
//
// # Format
//
// The ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// Byte-wise comparison preserves chronological order, and IDs generated
// within the same millisecond remain strictly increasing by sequence. IDs
// serialize to JSON as 32-character hex strings, which is how they appear
// in data point payloads on the wire.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next ID.
//   - NextAt accepts a producer-supplied timestamp but never moves behind the
//     high-water mark, so assignment order always matches sort order.
//
// Usage
//
//	g := id.NewGenerator()
//	pointID := g.Next()
//	s := pointID.String()      // hex string, also the JSON form
//	t := pointID.Time()        // embedded millisecond timestamp
package id
