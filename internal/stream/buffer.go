package stream

// DefaultCapacity bounds a stream's buffer when no capacity is configured.
const DefaultCapacity = 1000

// Buffer is a fixed-capacity ring of Points. Appending to a full buffer
// evicts the oldest point first; points are time-ordered, so oldest-first
// discard keeps the freshest window. Buffer is not safe for concurrent use;
// Stream serializes access.
type Buffer struct {
	points []Point
	head   int
	size   int
}

// NewBuffer returns an empty buffer holding at most capacity points.
// Non-positive capacities fall back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{points: make([]Point, capacity)}
}

// Len returns the number of buffered points.
func (b *Buffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.points) }

// Append adds p, evicting the oldest point when the buffer is full.
func (b *Buffer) Append(p Point) {
	if b.size < len(b.points) {
		b.points[(b.head+b.size)%len(b.points)] = p
		b.size++
		return
	}
	b.points[b.head] = p
	b.head = (b.head + 1) % len(b.points)
}

// Last returns a copy of the newest n points in chronological order.
// When n exceeds the buffered count, all points are returned.
func (b *Buffer) Last(n int) []Point {
	if n <= 0 || b.size == 0 {
		return nil
	}
	if n > b.size {
		n = b.size
	}
	out := make([]Point, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.at(start + i)
	}
	return out
}

// Snapshot returns a copy of all buffered points in chronological order.
func (b *Buffer) Snapshot() []Point {
	return b.Last(b.size)
}

// at returns the point at logical index i, 0 being the oldest.
func (b *Buffer) at(i int) Point {
	return b.points[(b.head+i)%len(b.points)]
}
