package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rzbill/pulse/pkg/log"
)

func TestCountersAndSnapshot(t *testing.T) {
	c := New(Options{
		Logger: log.Nop(),
		Gauges: func() (int, int, int) { return 2, 3, 4 },
	})
	c.IncMessages()
	c.IncMessages()
	c.AddPoints(5)
	c.AddPoints(0)
	c.IncDropped()

	s := c.Snapshot()
	if s.Messages != 2 || s.TotalMessages != 2 {
		t.Fatalf("messages: %+v", s)
	}
	if s.TotalPoints != 5 {
		t.Fatalf("points: %d", s.TotalPoints)
	}
	if s.DroppedDeliveries != 1 {
		t.Fatalf("dropped: %d", s.DroppedDeliveries)
	}
	if s.ActiveConnections != 2 || s.ActiveStreams != 3 || s.Subscriptions != 4 {
		t.Fatalf("gauges: %+v", s)
	}
}

func TestFlushResetsPeriodCountersOnly(t *testing.T) {
	var emitted []Snapshot
	c := New(Options{
		Logger: log.Nop(),
		Hook:   func(s Snapshot) { emitted = append(emitted, s) },
	})
	c.IncMessages()
	c.AddPoints(3)

	c.flush()
	if len(emitted) != 1 {
		t.Fatalf("emissions: %d", len(emitted))
	}
	if emitted[0].Messages != 1 {
		t.Fatalf("period messages: %d", emitted[0].Messages)
	}

	s := c.Snapshot()
	if s.Messages != 0 {
		t.Fatalf("period counter not reset: %d", s.Messages)
	}
	if s.TotalMessages != 1 || s.TotalPoints != 3 {
		t.Fatalf("totals lost on flush: %+v", s)
	}
}

func TestPrometheusExposition(t *testing.T) {
	c := New(Options{Logger: log.Nop(), Gauges: func() (int, int, int) { return 1, 1, 1 }})
	c.AddPoints(7)
	c.flush()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "pulse_points_total 7") {
		t.Fatalf("missing points counter:\n%s", body)
	}
	if !strings.Contains(body, "pulse_active_connections 1") {
		t.Fatalf("missing connections gauge:\n%s", body)
	}
}
