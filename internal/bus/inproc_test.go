package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

type recordingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{errors: make(map[string]int)}
}

func (m *recordingMetrics) RecordIngest(string, string, string) {}
func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *recordingMetrics) RecordQuery(string, string)      {}
func (m *recordingMetrics) RecordLatency(string, float64)   {}
func (m *recordingMetrics) RecordLastClose(string, float64) {}
func (m *recordingMetrics) SetSubscribers(string, int)      {}

func (m *recordingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func collect(t *testing.T, ch <-chan *models.Event, n int) []*models.Event {
	t.Helper()
	out := make([]*models.Event, 0, n)
	for len(out) < n {
		select {
		case evt := <-ch:
			out = append(out, evt)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestInprocDeliversInPublishOrder(t *testing.T) {
	b := NewInproc(32, newRecordingMetrics(), testLogger(t))
	defer b.Close()

	got := make(chan *models.Event, 32)
	b.Subscribe(func(evt *models.Event) { got <- evt })
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 10; i++ {
		evt := models.NewStatusEvent("TSLA", true, fmt.Sprintf("m%d", i))
		if err := b.Publish(context.Background(), evt); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	events := collect(t, got, 10)
	for i, evt := range events {
		want := fmt.Sprintf("m%d", i)
		if evt.Message != want {
			t.Fatalf("event %d message = %q, want %q", i, evt.Message, want)
		}
	}
}

func TestInprocFanoutToAllHandlers(t *testing.T) {
	b := NewInproc(8, newRecordingMetrics(), testLogger(t))
	defer b.Close()

	first := make(chan *models.Event, 1)
	second := make(chan *models.Event, 1)
	b.Subscribe(func(evt *models.Event) { first <- evt })
	b.Subscribe(func(evt *models.Event) { second <- evt })
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := b.Publish(context.Background(), models.NewHeartbeatEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	collect(t, first, 1)
	collect(t, second, 1)
}

func TestInprocDropsWhenSaturated(t *testing.T) {
	metrics := newRecordingMetrics()
	b := NewInproc(1, metrics, testLogger(t))
	defer b.Close()

	// No Start call: nothing drains the buffer, so only one event fits.
	for i := 0; i < 3; i++ {
		if err := b.Publish(context.Background(), models.NewHeartbeatEvent()); err != nil {
			t.Fatalf("Publish %d should not fail: %v", i, err)
		}
	}

	if got := metrics.errorCount("bus_backpressure_drop"); got != 2 {
		t.Fatalf("dropped %d events, want 2", got)
	}
}

func TestInprocPublishAfterClose(t *testing.T) {
	b := NewInproc(8, newRecordingMetrics(), testLogger(t))
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Publish(context.Background(), models.NewHeartbeatEvent()); err == nil {
		t.Fatalf("Publish after Close should fail")
	}
}

func TestInprocHandlerPanicIsContained(t *testing.T) {
	b := NewInproc(8, newRecordingMetrics(), testLogger(t))
	defer b.Close()

	got := make(chan *models.Event, 4)
	b.Subscribe(func(*models.Event) { panic("boom") })
	b.Subscribe(func(evt *models.Event) { got <- evt })
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := b.Publish(context.Background(), models.NewHeartbeatEvent()); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	collect(t, got, 2)
}
