package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// Scheduler polls the provider for a fixed symbol set on an interval,
// optionally restricted to an active window (UTC, useful for market hours).
// Failures for one symbol never stop the sweep; the provider pacing gate
// inside the ingestion manager spaces the calls out.
type Scheduler struct {
	ingest      *IngestionManager
	symbols     []string
	g           models.Granularity
	interval    time.Duration
	activeStart int // minutes of day, -1 when no window configured
	activeEnd   int

	metrics domrepo.Metrics
	l       *logger.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

func NewScheduler(ingest *IngestionManager, cfg *config.Config, metrics domrepo.Metrics, l *logger.Logger) (*Scheduler, error) {
	g, err := models.ParseGranularity(cfg.Scheduler.Granularity)
	if err != nil {
		return nil, fmt.Errorf("scheduler granularity: %w", err)
	}

	start, err := parseClock(cfg.Scheduler.ActiveStart)
	if err != nil {
		return nil, fmt.Errorf("scheduler active_start: %w", err)
	}
	end, err := parseClock(cfg.Scheduler.ActiveEnd)
	if err != nil {
		return nil, fmt.Errorf("scheduler active_end: %w", err)
	}
	if (start < 0) != (end < 0) {
		return nil, fmt.Errorf("scheduler active window needs both active_start and active_end")
	}

	interval := cfg.Scheduler.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	symbols := make([]string, 0, len(cfg.Scheduler.Symbols))
	for _, s := range cfg.Scheduler.Symbols {
		if n := normalizeSymbol(s); n != "" {
			symbols = append(symbols, n)
		}
	}

	return &Scheduler{
		ingest:      ingest,
		symbols:     symbols,
		g:           g,
		interval:    interval,
		activeStart: start,
		activeEnd:   end,
		metrics:     metrics,
		l:           l,
		stopCh:      make(chan struct{}),
	}, nil
}

// Start launches the polling loop. The first sweep runs immediately so a
// fresh deployment serves data without waiting a full interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.l.Info("scheduler started",
		logger.Strings("symbols", s.symbols),
		logger.String("granularity", string(s.g)),
		logger.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if !s.activeNow(time.Now().UTC()) {
		return
	}
	start := time.Now()
	defer func() {
		s.metrics.RecordLatency("scheduler_sweep", time.Since(start).Seconds())
	}()
	for _, symbol := range s.symbols {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		// Errors are already logged, counted and signaled by the manager.
		_, _ = s.ingest.IngestLatest(ctx, symbol, s.g)
	}
}

func (s *Scheduler) activeNow(now time.Time) bool {
	if s.activeStart < 0 {
		return true
	}
	m := now.Hour()*60 + now.Minute()
	if s.activeStart <= s.activeEnd {
		return m >= s.activeStart && m < s.activeEnd
	}
	// Window wraps midnight, e.g. 22:00 to 04:00.
	return m >= s.activeStart || m < s.activeEnd
}

// Stop terminates the loop and waits for an in-flight sweep to yield.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.l.Info("scheduler stopped")
}

func parseClock(v string) (int, error) {
	if v == "" {
		return -1, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
