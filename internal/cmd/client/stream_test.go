package client

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rzbill/pulse/internal/engine"
	"github.com/rzbill/pulse/internal/metrics"
	httpserver "github.com/rzbill/pulse/internal/server/http"
	"github.com/rzbill/pulse/pkg/log"
	"github.com/spf13/cobra"
)

// startServer brings up a real engine behind an httptest server so the
// commands exercise the actual HTTP surface.
func startServer(t *testing.T) (BaseURLFunc, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Options{Logger: log.Nop()})
	t.Cleanup(eng.Shutdown)
	coll := metrics.New(metrics.Options{Logger: log.Nop(), Gauges: eng.Counts})
	srv := httpserver.New(httpserver.Options{Engine: eng, Metrics: coll, Logger: log.Nop()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return func() string { return ts.URL }, eng
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	return buf.String()
}

func TestStreamCreateAndAppend(t *testing.T) {
	baseURL, eng := startServer(t)

	out := execute(t, newStreamCreateCommand(baseURL), "--stream", "temp", "--capacity", "3")
	if !strings.Contains(out, "status: OK") {
		t.Fatalf("create output: %s", out)
	}

	out = execute(t, newStreamAppendCommand(baseURL),
		"--stream", "temp", "--value", "21.5", "--metadata", "sensor=roof")
	if !strings.Contains(out, "status: OK") {
		t.Fatalf("append output: %s", out)
	}

	pts := eng.Streams().Recent("temp", 10)
	if len(pts) != 1 {
		t.Fatalf("points: %d", len(pts))
	}
	if pts[0].Value != 21.5 {
		t.Fatalf("value: %v", pts[0].Value)
	}
	if pts[0].Metadata["sensor"] != "roof" {
		t.Fatalf("metadata: %v", pts[0].Metadata)
	}
}

func TestStreamAppendRequiresStream(t *testing.T) {
	baseURL, _ := startServer(t)
	cmd := newStreamAppendCommand(baseURL)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--value", "1"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --stream")
	}
}

func TestStreamQueryAndStats(t *testing.T) {
	baseURL, eng := startServer(t)
	for i := 0; i < 5; i++ {
		eng.AppendPoint("temp", float64(i), time.Time{}, nil)
	}

	out := execute(t, newStreamQueryCommand(baseURL), "--stream", "temp", "--limit", "2")
	var q struct {
		TotalPoints int               `json:"total_points"`
		Data        []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &q); err != nil {
		t.Fatalf("decode %s: %v", out, err)
	}
	if q.TotalPoints != 5 || len(q.Data) != 2 {
		t.Fatalf("query: total=%d len=%d", q.TotalPoints, len(q.Data))
	}

	out = execute(t, newStreamStatsCommand(baseURL), "--stream", "temp")
	if !strings.Contains(out, `"count": 5`) {
		t.Fatalf("stats output: %s", out)
	}

	out = execute(t, newStreamListCommand(baseURL))
	if !strings.Contains(out, `"temp"`) {
		t.Fatalf("list output: %s", out)
	}
}

func TestStreamTailStopsAtLimit(t *testing.T) {
	baseURL, eng := startServer(t)
	eng.AppendPoint("temp", 1.0, time.Time{}, nil)

	// The priming data_update satisfies --limit 1, so tail returns.
	out := execute(t, newStreamTailCommand(baseURL), "--stream", "temp", "--limit", "1")
	if !strings.Contains(out, `"data_update"`) {
		t.Fatalf("tail output: %s", out)
	}
}

func TestStreamWatchReceivesPush(t *testing.T) {
	baseURL, eng := startServer(t)
	eng.AppendPoint("temp", 1.0, time.Time{}, nil)

	go func() {
		time.Sleep(100 * time.Millisecond)
		eng.AppendPoint("temp", 2.0, time.Time{}, nil)
	}()

	// Frames: connection_established, then confirmation and priming push,
	// then the live data_point.
	out := execute(t, newStreamWatchCommand(baseURL), "--stream", "temp", "--limit", "4")
	if !strings.Contains(out, `"connection_established"`) {
		t.Fatalf("no greeting: %s", out)
	}
	if !strings.Contains(out, `"data_point"`) {
		t.Fatalf("no push: %s", out)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"21.5", 21.5},
		{"true", true},
		{"warm", "warm"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	m, ok := parseValue(`{"a":1}`).(map[string]any)
	if !ok || m["a"] != 1.0 {
		t.Errorf("parseValue object = %v", m)
	}
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/v1/ws"},
		{"https://pulse.example.com/", "wss://pulse.example.com/v1/ws"},
	}
	for _, tt := range tests {
		if got := wsURL(tt.base); got != tt.want {
			t.Errorf("wsURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
