package api

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

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
)

func streamServer(t *testing.T) (*fixture, *httptest.Server) {
	t.Helper()
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.e)
	t.Cleanup(srv.Close)
	return f, srv
}

// readSSEEvent consumes one event/data pair from the stream.
func readSSEEvent(r *bufio.Reader) (event, data string, err error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data, nil
		}
	}
}

// nextEvent skips heartbeats, which interleave freely with broadcasts.
func nextEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	for i := 0; i < 20; i++ {
		event, data, err := readSSEEvent(r)
		if err != nil {
			t.Fatalf("read sse event: %v", err)
		}
		if event != "heartbeat" {
			return event, data
		}
	}
	t.Fatalf("stream produced only heartbeats")
	return "", ""
}

func TestStreamSSE(t *testing.T) {
	f, srv := streamServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream?symbol=tsla", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)

	// The connected status always arrives first.
	event, data := nextEvent(t, reader)
	if event != "status" || !strings.Contains(data, `"connected"`) || !strings.Contains(data, `"ok":true`) {
		t.Fatalf("first event = %s %s, want connected status", event, data)
	}

	bar := sampleBars[0]
	f.hub.Broadcast(models.NewBarEvent(&bar))

	event, data = nextEvent(t, reader)
	if event != "bar" {
		t.Fatalf("event = %s, want bar", event)
	}
	if !strings.Contains(data, `"close":180.7`) || !strings.Contains(data, `"symbol":"TSLA"`) {
		t.Fatalf("bar payload = %s", data)
	}

	// Heartbeats keep flowing with no broadcasts pending.
	sawHeartbeat := false
	for i := 0; i < 5 && !sawHeartbeat; i++ {
		ev, _, err := readSSEEvent(reader)
		if err != nil {
			t.Fatalf("read heartbeat: %v", err)
		}
		sawHeartbeat = ev == "heartbeat"
	}
	if !sawHeartbeat {
		t.Fatalf("no heartbeat observed")
	}
}

func TestStreamRequiresSymbol(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := do(t, f.e, http.MethodGet, "/api/v1/stream", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_REQUIRED") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestStreamWS(t *testing.T) {
	f, srv := streamServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream/ws?symbol=TSLA"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var frame struct {
		Event  string          `json:"event"`
		Symbol string          `json:"symbol"`
		Data   json.RawMessage `json:"data"`
	}

	readFrame := func() {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
	}

	readFrame()
	if frame.Event != "status" || !strings.Contains(string(frame.Data), `"connected"`) {
		t.Fatalf("first frame = %+v, want connected status", frame)
	}

	bar := sampleBars[1]
	f.hub.Broadcast(models.NewBarEvent(&bar))

	for i := 0; i < 20; i++ {
		readFrame()
		if frame.Event != "heartbeat" {
			break
		}
	}
	if frame.Event != "bar" || frame.Symbol != "TSLA" {
		t.Fatalf("frame = %+v, want bar", frame)
	}
	if !strings.Contains(string(frame.Data), `"close":181.4`) {
		t.Fatalf("bar payload = %s", frame.Data)
	}

	// Closing the socket tears the subscription down.
	conn.Close()
	deadline := time.After(2 * time.Second)
	for f.hub.Subscribers("TSLA") != 0 {
		select {
		case <-deadline:
			t.Fatalf("subscription not released, %d left", f.hub.Subscribers("TSLA"))
		case <-time.After(5 * time.Millisecond):
		}
	}
}
