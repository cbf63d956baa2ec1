package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/bus"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
)

func TestBridgeRelaysBarsAndStatusNotHeartbeats(t *testing.T) {
	metrics := newRecordingMetrics()
	l := testLogger(t)

	inproc := bus.NewInproc(16, metrics, l)
	hub := NewHub(16, metrics, l)
	defer hub.Close()

	bridge := NewBridge(inproc, hub, metrics, l)
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer bridge.Close()

	sub, err := hub.Subscribe("TSLA")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	receive(t, sub) // connected

	ctx := context.Background()
	if err := inproc.Publish(ctx, models.NewHeartbeatEvent()); err != nil {
		t.Fatalf("publish heartbeat: %v", err)
	}
	if err := inproc.Publish(ctx, models.NewBarEvent(sampleBar("TSLA"))); err != nil {
		t.Fatalf("publish bar: %v", err)
	}
	if err := inproc.Publish(ctx, models.NewStatusEvent("TSLA", false, "provider unavailable")); err != nil {
		t.Fatalf("publish status: %v", err)
	}

	first := receive(t, sub)
	if first.Type != models.EventTypeBar {
		t.Fatalf("first relayed event = %s, want bar (heartbeat must be filtered)", first.Type)
	}
	second := receive(t, sub)
	if second.Type != models.EventTypeStatus || second.OK {
		t.Fatalf("second relayed event = %+v, want failing status", second)
	}

	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected extra event %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}

	metrics.mu.Lock()
	gotClose := metrics.lastClose["TSLA"]
	metrics.mu.Unlock()
	if gotClose != 180.7 {
		t.Fatalf("last close gauge = %v, want 180.7", gotClose)
	}
}
