package stream

import (
	"sync"
	"testing"
	"time"
)

// recordingSink collects fanned-out points for assertions.
type recordingSink struct {
	mu     sync.Mutex
	points []Point
}

func (s *recordingSink) OnPoint(streamID string, p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, p)
}

func (s *recordingSink) snapshot() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

func TestEnsureIsLazyAndIdempotent(t *testing.T) {
	r := NewRegistry(10)
	if r.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
	a := r.Ensure("temp")
	b := r.Ensure("temp")
	if a != b {
		t.Fatalf("expected same stream instance")
	}
	if r.Len() != 1 {
		t.Fatalf("expected one stream, got %d", r.Len())
	}
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	r := NewRegistry(10)
	p1, ok := r.Append("temp", Point{Value: 1.0})
	if !ok {
		t.Fatalf("append rejected")
	}
	if p1.ID.IsZero() {
		t.Fatalf("expected assigned id")
	}
	if p1.Timestamp.IsZero() {
		t.Fatalf("expected assigned timestamp")
	}
	p2, _ := r.Append("temp", Point{Value: 2.0})
	if p1.ID.Compare(p2.ID) >= 0 {
		t.Fatalf("ids must be monotonic")
	}
}

func TestAppendKeepsProducerTimestamp(t *testing.T) {
	r := NewRegistry(10)
	ts := time.UnixMilli(1234)
	p, _ := r.Append("temp", Point{Value: 1.0, Timestamp: ts})
	if !p.Timestamp.Equal(ts) {
		t.Fatalf("expected producer timestamp preserved, got %v", p.Timestamp)
	}
}

func TestAppendClonesMetadata(t *testing.T) {
	r := NewRegistry(10)
	meta := map[string]string{"unit": "C"}
	r.Append("temp", Point{Value: 1.0, Metadata: meta})
	meta["unit"] = "F" // producer mutates after append
	got := r.Recent("temp", 1)
	if got[0].Metadata["unit"] != "C" {
		t.Fatalf("metadata mutation leaked into buffer: %v", got[0].Metadata)
	}
}

func TestAppendRejectsEmptyStreamID(t *testing.T) {
	r := NewRegistry(10)
	if _, ok := r.Append("", Point{Value: 1.0}); ok {
		t.Fatalf("expected rejection for empty stream id")
	}
}

func TestAppendLazilyCreatesStream(t *testing.T) {
	r := NewRegistry(10)
	r.Append("fresh", Point{Value: 1.0})
	if _, ok := r.Get("fresh"); !ok {
		t.Fatalf("append should create the stream")
	}
}

func TestQueryUnknownStreamIsEmpty(t *testing.T) {
	r := NewRegistry(10)
	if got := r.Query("nope", QueryOptions{}); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
	if got := r.Recent("nope", 5); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestQueryLimitReturnsNewestChronological(t *testing.T) {
	r := NewRegistry(100)
	for i := 0; i < 20; i++ {
		r.Append("temp", Point{Value: float64(i), Timestamp: time.UnixMilli(int64(i))})
	}
	got := r.Query("temp", QueryOptions{Limit: 5})
	if len(got) != 5 {
		t.Fatalf("expected 5 points, got %d", len(got))
	}
	for i, p := range got {
		if want := float64(15 + i); p.Value.(float64) != want {
			t.Fatalf("expected value %v at %d, got %v", want, i, p.Value)
		}
	}
}

func TestQueryTimeRange(t *testing.T) {
	r := NewRegistry(100)
	for i := 0; i < 10; i++ {
		r.Append("temp", Point{Value: float64(i), Timestamp: time.UnixMilli(int64(i * 100))})
	}
	got := r.Query("temp", QueryOptions{From: time.UnixMilli(200), To: time.UnixMilli(500)})
	if len(got) != 4 {
		t.Fatalf("expected 4 points in [200,500], got %d", len(got))
	}
	if got[0].Value.(float64) != 2 || got[3].Value.(float64) != 5 {
		t.Fatalf("unexpected window: %v .. %v", got[0].Value, got[3].Value)
	}
}

func TestCapacityEvictionThroughRegistry(t *testing.T) {
	r := NewRegistry(100)
	r.Create("small", Options{Capacity: 3})
	for i := 1; i <= 5; i++ {
		r.Append("small", Point{Value: float64(i), Timestamp: time.UnixMilli(int64(i))})
	}
	got := r.Query("small", QueryOptions{})
	want := []float64{3, 4, 5}
	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}
	for i := range want {
		if got[i].Value.(float64) != want[i] {
			t.Fatalf("expected %v, got %v at %d", want[i], got[i].Value, i)
		}
	}
}

func TestCreateStoresConfigBlob(t *testing.T) {
	r := NewRegistry(10)
	r.Create("temp", Options{Config: map[string]any{"expr": "value > 1.0", "source": "sensor"}})
	st, _ := r.Get("temp")
	cfg := st.Config()
	if cfg["source"] != "sensor" {
		t.Fatalf("config blob not stored: %v", cfg)
	}
	// Re-create with new config replaces the blob, capacity stays.
	r.Create("temp", Options{Capacity: 7, Config: map[string]any{"source": "other"}})
	st2, _ := r.Get("temp")
	if st2 != st {
		t.Fatalf("create must not replace an existing stream")
	}
	if st2.Config()["source"] != "other" {
		t.Fatalf("config blob not replaced")
	}
}

func TestFanOutDeliversInAppendOrder(t *testing.T) {
	r := NewRegistry(10)
	st := r.Ensure("temp")
	a := &recordingSink{}
	b := &recordingSink{}
	st.Attach("conn-a", a)
	st.Attach("conn-b", b)

	for i := 0; i < 5; i++ {
		r.Append("temp", Point{Value: float64(i)})
	}
	for _, sink := range []*recordingSink{a, b} {
		got := sink.snapshot()
		if len(got) != 5 {
			t.Fatalf("expected 5 deliveries, got %d", len(got))
		}
		for i, p := range got {
			if p.Value.(float64) != float64(i) {
				t.Fatalf("out of order delivery at %d: %v", i, p.Value)
			}
		}
	}
}

func TestDetachStopsDelivery(t *testing.T) {
	r := NewRegistry(10)
	st := r.Ensure("temp")
	a := &recordingSink{}
	st.Attach("conn-a", a)
	r.Append("temp", Point{Value: 1.0})
	st.Detach("conn-a")
	r.Append("temp", Point{Value: 2.0})
	if got := a.snapshot(); len(got) != 1 {
		t.Fatalf("expected 1 delivery after detach, got %d", len(got))
	}
	if st.Subscribers() != 0 {
		t.Fatalf("expected empty fan-out set")
	}
}

func TestStatsAndClear(t *testing.T) {
	r := NewRegistry(10)
	r.Append("b", Point{Value: 1.0})
	r.Append("a", Point{Value: 1.0})
	stats := r.Stats()
	if len(stats) != 2 || stats[0].Stream != "a" || stats[1].Stream != "b" {
		t.Fatalf("expected sorted stats, got %+v", stats)
	}
	if stats[0].Count != 1 || stats[0].LastUpdateMs == 0 {
		t.Fatalf("unexpected stats: %+v", stats[0])
	}
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after clear")
	}
}
