package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rzbill/pulse/internal/engine"
	"github.com/rzbill/pulse/internal/metrics"
	"github.com/rzbill/pulse/pkg/log"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Options{Logger: log.Nop()})
	t.Cleanup(eng.Shutdown)
	coll := metrics.New(metrics.Options{Logger: log.Nop(), Gauges: eng.Counts})
	s := New(Options{Engine: eng, Metrics: coll, Logger: log.Nop()})
	return s, eng
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestCreateAppendQueryRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"stream":"temp","capacity":3}`
	req := httptest.NewRequest(http.MethodPost, "/v1/streams/create", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: %d", w.Code)
	}

	// Capacity 3: five appends keep only the newest three.
	for _, v := range []string{"1", "2", "3", "4", "5"} {
		req = httptest.NewRequest(http.MethodPost, "/v1/streams/append",
			strings.NewReader(`{"stream":"temp","value":`+v+`}`))
		w = httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusAccepted {
			t.Fatalf("append status: %d", w.Code)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/streams/query?stream=temp", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("query status: %d", w.Code)
	}
	var resp struct {
		TotalPoints int `json:"total_points"`
		Data        []struct {
			Value float64 `json:"value"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalPoints != 3 || len(resp.Data) != 3 {
		t.Fatalf("query result: total=%d len=%d", resp.TotalPoints, len(resp.Data))
	}
	for i, want := range []float64{3, 4, 5} {
		if resp.Data[i].Value != want {
			t.Fatalf("point %d: %v", i, resp.Data[i].Value)
		}
	}
}

func TestQueryUnknownStreamIsEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/streams/query?stream=nope", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	var resp struct {
		TotalPoints int               `json:"total_points"`
		Data        []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalPoints != 0 || len(resp.Data) != 0 {
		t.Fatalf("unknown stream response: %s", w.Body.String())
	}
}

func TestStatsHandlers(t *testing.T) {
	s, eng := newTestServer(t)
	eng.AppendPoint("temp", 1.0, time.Time{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/streams/stats?stream=temp", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("stats status: %d", w.Code)
	}
	var stats struct {
		Stream string `json:"stream"`
		Count  int    `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Stream != "temp" || stats.Count != 1 {
		t.Fatalf("stats: %+v", stats)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/streams/stats?stream=nope", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown stream stats status: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/streams", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"temp"`) {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/statsz", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "total_points") {
		t.Fatalf("statsz: %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "pulse_points_total") {
		t.Fatalf("prometheus: %d", w.Code)
	}
}

func TestWebSocketSession(t *testing.T) {
	s, eng := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	readMsg := func() map[string]any {
		t.Helper()
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return m
	}

	est := readMsg()
	if est["type"] != "connection_established" {
		t.Fatalf("greeting: %v", est)
	}

	eng.AppendPoint("temp", 10.0, time.Time{}, nil)
	eng.AppendPoint("temp", 20.0, time.Time{}, nil)

	sub := `{"type":"subscribe","streamId":"temp","intervalMs":60000}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The priming data_update precedes subscription_confirmed, but accept
	// either order here; the property under test is that both arrive.
	got := map[string]map[string]any{}
	for i := 0; i < 2; i++ {
		m := readMsg()
		got[m["type"].(string)] = m
	}
	if _, ok := got["subscription_confirmed"]; !ok {
		t.Fatalf("no confirmation: %v", got)
	}
	prime, ok := got["data_update"]
	if !ok {
		t.Fatalf("no priming push: %v", got)
	}
	if pts := prime["data"].([]any); len(pts) != 2 {
		t.Fatalf("priming points: %d", len(pts))
	}

	eng.AppendPoint("temp", 30.0, time.Time{}, nil)
	push := readMsg()
	if push["type"] != "data_point" {
		t.Fatalf("push: %v", push)
	}
	if v := push["dataPoint"].(map[string]any)["value"]; v != 30.0 {
		t.Fatalf("pushed value: %v", v)
	}

	// Malformed frame: error reply, connection stays usable.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := readMsg(); m["type"] != "error" {
		t.Fatalf("expected error reply: %v", m)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := readMsg(); m["type"] != "pong" {
		t.Fatalf("expected pong: %v", m)
	}
}

func TestSSETail(t *testing.T) {
	s, eng := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	eng.AppendPoint("temp", 1.0, time.Time{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/streams/tail?stream=temp", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %s", ct)
	}

	go func() {
		// Give the subscription a moment to attach, then push.
		time.Sleep(50 * time.Millisecond)
		eng.AppendPoint("temp", 2.0, time.Time{}, nil)
	}()

	sc := bufio.NewScanner(resp.Body)
	var sawPriming, sawPush bool
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, `"data_update"`) {
			sawPriming = true
		}
		if strings.Contains(line, `"data_point"`) {
			sawPush = true
			break
		}
	}
	if !sawPriming || !sawPush {
		t.Fatalf("priming=%v push=%v", sawPriming, sawPush)
	}
}
