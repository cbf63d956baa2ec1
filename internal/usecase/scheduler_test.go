package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/service/ratelimit"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
)

func schedulerConfig(symbols []string, interval time.Duration) *config.Config {
	var cfg config.Config
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Symbols = symbols
	cfg.Scheduler.Granularity = "1m"
	cfg.Scheduler.Interval = interval
	return &cfg
}

func TestSchedulerSweepsSymbols(t *testing.T) {
	provider := &fakeProvider{latestPayload: latestPayload("250.50")}
	store := newFakeStore()
	bus := &fakeBus{}
	metrics := newIngestMetrics()
	m := NewIngestionManager(provider, store, bus, &fakeResultCache{}, ratelimit.NewInterval(600000), metrics, testLogger(t), 1000)

	s, err := NewScheduler(m, schedulerConfig([]string{"tsla", "aapl"}, time.Hour), metrics, testLogger(t))
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The first sweep runs immediately; poll until both symbols landed.
	deadline := time.After(2 * time.Second)
	for provider.latestCallCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweep made %d provider calls, want 2", provider.latestCallCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()

	if metrics.outcome("success") < 2 {
		t.Fatalf("successful ingests = %d, want >= 2", metrics.outcome("success"))
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	provider := &fakeProvider{latestPayload: latestPayload("250.50")}
	m := NewIngestionManager(provider, newFakeStore(), &fakeBus{}, &fakeResultCache{}, ratelimit.NewInterval(600000), newIngestMetrics(), testLogger(t), 1000)

	s, err := NewScheduler(m, schedulerConfig([]string{"TSLA"}, time.Hour), newIngestMetrics(), testLogger(t))
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	s.Stop() // second call must not panic or block
}

func TestSchedulerRejectsBadConfig(t *testing.T) {
	m := NewIngestionManager(&fakeProvider{}, newFakeStore(), &fakeBus{}, &fakeResultCache{}, ratelimit.NewInterval(600000), newIngestMetrics(), testLogger(t), 1000)

	bad := schedulerConfig([]string{"TSLA"}, time.Minute)
	bad.Scheduler.Granularity = "5m"
	if _, err := NewScheduler(m, bad, newIngestMetrics(), testLogger(t)); err == nil {
		t.Fatalf("unknown granularity should fail")
	}

	halfWindow := schedulerConfig([]string{"TSLA"}, time.Minute)
	halfWindow.Scheduler.ActiveStart = "09:30"
	if _, err := NewScheduler(m, halfWindow, newIngestMetrics(), testLogger(t)); err == nil {
		t.Fatalf("half-open active window should fail")
	}

	badClock := schedulerConfig([]string{"TSLA"}, time.Minute)
	badClock.Scheduler.ActiveStart = "25:99"
	badClock.Scheduler.ActiveEnd = "16:00"
	if _, err := NewScheduler(m, badClock, newIngestMetrics(), testLogger(t)); err == nil {
		t.Fatalf("unparseable clock should fail")
	}
}

func TestSchedulerActiveWindow(t *testing.T) {
	at := func(hh, mm int) time.Time {
		return time.Date(2024, 5, 1, hh, mm, 0, 0, time.UTC)
	}

	cases := []struct {
		name       string
		start, end int
		now        time.Time
		want       bool
	}{
		{"no window", -1, -1, at(3, 0), true},
		{"inside market hours", 9*60 + 30, 16 * 60, at(12, 0), true},
		{"before open", 9*60 + 30, 16 * 60, at(9, 29), false},
		{"at open", 9*60 + 30, 16 * 60, at(9, 30), true},
		{"at close", 9*60 + 30, 16 * 60, at(16, 0), false},
		{"overnight inside late", 22 * 60, 4 * 60, at(23, 15), true},
		{"overnight inside early", 22 * 60, 4 * 60, at(2, 0), true},
		{"overnight outside", 22 * 60, 4 * 60, at(12, 0), false},
	}

	for _, tc := range cases {
		s := &Scheduler{activeStart: tc.start, activeEnd: tc.end}
		if got := s.activeNow(tc.now); got != tc.want {
			t.Fatalf("%s: activeNow(%v) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
	}
}
