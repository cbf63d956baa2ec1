package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/service/ratelimit"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// IngestState is the phase an ingestion run is in. Runs move strictly
// forward: idle, fetching, normalizing, upserting, then completed or failed.
type IngestState string

const (
	StateIdle        IngestState = "idle"
	StateFetching    IngestState = "fetching"
	StateNormalizing IngestState = "normalizing"
	StateUpserting   IngestState = "upserting"
	StateCompleted   IngestState = "completed"
	StateFailed      IngestState = "failed"
)

// IngestReport describes the outcome of one ingestLatest run.
type IngestReport struct {
	Symbol      string      `json:"symbol"`
	Granularity string      `json:"granularity"`
	State       IngestState `json:"state"`
	Bars        int         `json:"bars"`
	Applied     int         `json:"applied"`
	Revision    int64       `json:"revision,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	DurationMS  int64       `json:"duration_ms"`
	Error       string      `json:"error,omitempty"`
}

// BackfillReport describes the outcome of one daily-history backfill.
type BackfillReport struct {
	Symbol        string      `json:"symbol"`
	State         IngestState `json:"state"`
	Total         int         `json:"total"`
	Applied       int         `json:"applied"`
	Batches       int         `json:"batches"`
	FailedBatches int         `json:"failed_batches"`
	StartedAt     time.Time   `json:"started_at"`
	DurationMS    int64       `json:"duration_ms"`
	Error         string      `json:"error,omitempty"`
}

// IngestionManager drives the fetch, normalize, upsert pipeline. All
// provider calls funnel through one shared pacing gate, so concurrent runs
// queue instead of tripping the upstream quota.
type IngestionManager struct {
	provider  domrepo.MarketDataProvider
	store     domrepo.BarStore
	bus       domrepo.EventBus
	cache     domrepo.ResultCache
	limiter   *ratelimit.Interval
	metrics   domrepo.Metrics
	l         *logger.Logger
	batchSize int
}

func NewIngestionManager(
	provider domrepo.MarketDataProvider,
	store domrepo.BarStore,
	bus domrepo.EventBus,
	cache domrepo.ResultCache,
	limiter *ratelimit.Interval,
	metrics domrepo.Metrics,
	l *logger.Logger,
	backfillBatchSize int,
) *IngestionManager {
	if backfillBatchSize <= 0 {
		backfillBatchSize = 1000
	}
	return &IngestionManager{
		provider:  provider,
		store:     store,
		bus:       bus,
		cache:     cache,
		limiter:   limiter,
		metrics:   metrics,
		l:         l,
		batchSize: backfillBatchSize,
	}
}

// IngestLatest fetches the most recent bar for symbol at granularity g and
// upserts it. Every run emits exactly one bus signal: the bar on success, a
// failing status otherwise. The query cache is cleared on success so readers
// observe the new bar immediately.
func (m *IngestionManager) IngestLatest(ctx context.Context, symbol string, g models.Granularity) (*IngestReport, error) {
	symbol = normalizeSymbol(symbol)
	report := &IngestReport{
		Symbol:      symbol,
		Granularity: string(g),
		State:       StateIdle,
		StartedAt:   time.Now().UTC(),
	}

	if symbol == "" {
		return m.failIngest(report, "validate", fmt.Errorf("symbol is required"))
	}
	tier, ok := domrepo.TierFor(g)
	if !ok {
		return m.failIngest(report, "validate", fmt.Errorf("%w: %q", models.ErrInvalidGranularity, g))
	}
	// Derived tiers are rebuilt from the fine tier; rejecting here saves the
	// provider call that the store would refuse anyway.
	if !tier.Writable() {
		return m.failIngest(report, "validate",
			fmt.Errorf("%w: %s bars are aggregated, ingest 1m instead", models.ErrUnsupportedTier, g))
	}

	report.State = StateFetching
	if err := m.limiter.Wait(ctx); err != nil {
		return m.failIngest(report, "pace", err)
	}
	payload, err := m.provider.FetchLatest(ctx, symbol, g)
	if err != nil {
		return m.failIngest(report, "fetch", err)
	}

	report.State = StateNormalizing
	bar, err := NormalizeLatest(payload, symbol, g)
	if err != nil {
		return m.failIngest(report, "normalize", err)
	}

	report.State = StateUpserting
	stored, err := m.store.Get(ctx, symbol, g, bar.Timestamp)
	if err != nil {
		return m.failIngest(report, "revision", err)
	}
	switch {
	case stored == nil:
		bar.Revision = 1
	case stored.SameValues(bar):
		// Same values at the same timestamp: keep the stored revision so the
		// upsert guard turns this run into a no-op.
		bar.Revision = stored.Revision
	default:
		bar.Revision = stored.Revision + 1
	}

	applied, err := m.store.Upsert(ctx, bar)
	if err != nil {
		return m.failIngest(report, "upsert", err)
	}

	if cerr := m.cache.Clear(ctx); cerr != nil {
		m.l.Warn("query cache clear failed", logger.Error(cerr), logger.String("symbol", symbol))
	}

	report.State = StateCompleted
	report.Bars = 1
	report.Revision = bar.Revision
	if applied {
		report.Applied = 1
	}
	report.DurationMS = time.Since(report.StartedAt).Milliseconds()

	m.metrics.RecordIngest(symbol, string(g), "success")
	m.metrics.RecordLatency("ingest_latest", time.Since(report.StartedAt).Seconds())
	m.l.Info("ingested latest bar",
		logger.String("symbol", symbol),
		logger.String("granularity", string(g)),
		logger.Time("bar_ts", bar.Timestamp),
		logger.Int64("revision", bar.Revision),
		logger.Bool("applied", applied),
		logger.Duration("took", time.Since(report.StartedAt)))

	m.emit(models.NewBarEvent(bar))
	return report, nil
}

// BackfillHistory loads the full daily history for symbol into the long
// tier. Batches that fail are counted and skipped; the run keeps going so a
// transient store error does not void an entire multi-year import.
func (m *IngestionManager) BackfillHistory(ctx context.Context, symbol string) (*BackfillReport, error) {
	symbol = normalizeSymbol(symbol)
	report := &BackfillReport{
		Symbol:    symbol,
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}

	if symbol == "" {
		return m.failBackfill(report, "validate", fmt.Errorf("symbol is required"))
	}

	report.State = StateFetching
	if err := m.limiter.Wait(ctx); err != nil {
		return m.failBackfill(report, "pace", err)
	}
	payload, err := m.provider.FetchDailyHistory(ctx, symbol)
	if err != nil {
		return m.failBackfill(report, "fetch", err)
	}

	report.State = StateNormalizing
	// History rows carry revision 1: a previously corrected row in the store
	// has a higher revision and must win over the provider's replay.
	bars, err := NormalizeSeries(payload, symbol, models.Granularity1d)
	if err != nil {
		return m.failBackfill(report, "normalize", err)
	}
	report.Total = len(bars)

	report.State = StateUpserting
	for start := 0; start < len(bars); start += m.batchSize {
		end := start + m.batchSize
		if end > len(bars) {
			end = len(bars)
		}
		report.Batches++

		applied, err := m.store.UpsertBatch(ctx, bars[start:end])
		if err != nil {
			report.FailedBatches++
			m.metrics.RecordError("backfill_batch")
			m.l.Error("backfill batch failed",
				logger.Error(err),
				logger.String("symbol", symbol),
				logger.Int("batch", report.Batches),
				logger.Int("size", end-start))
			continue
		}
		report.Applied += applied
	}

	if report.Batches > 0 && report.FailedBatches == report.Batches {
		return m.failBackfill(report, "upsert", fmt.Errorf("all %d batches failed", report.Batches))
	}

	if report.Applied > 0 {
		if cerr := m.cache.Clear(ctx); cerr != nil {
			m.l.Warn("query cache clear failed", logger.Error(cerr), logger.String("symbol", symbol))
		}
	}

	report.State = StateCompleted
	report.DurationMS = time.Since(report.StartedAt).Milliseconds()

	m.metrics.RecordIngest(symbol, string(models.Granularity1d), "backfill")
	m.metrics.RecordLatency("backfill", time.Since(report.StartedAt).Seconds())
	m.l.Info("backfill finished",
		logger.String("symbol", symbol),
		logger.Int("total", report.Total),
		logger.Int("applied", report.Applied),
		logger.Int("batches", report.Batches),
		logger.Int("failed_batches", report.FailedBatches),
		logger.Duration("took", time.Since(report.StartedAt)))
	return report, nil
}

// Delay exposes the provider pacing interval, mainly for operability logs.
func (m *IngestionManager) Delay() time.Duration {
	return m.limiter.Delay()
}

func (m *IngestionManager) failIngest(report *IngestReport, stage string, err error) (*IngestReport, error) {
	report.State = StateFailed
	report.Error = err.Error()
	report.DurationMS = time.Since(report.StartedAt).Milliseconds()

	m.metrics.RecordIngest(report.Symbol, report.Granularity, "failure")
	m.metrics.RecordError("ingest_" + stage)
	m.l.Error("ingestion failed",
		logger.Error(err),
		logger.String("symbol", report.Symbol),
		logger.String("granularity", report.Granularity),
		logger.String("stage", stage))

	m.emit(models.NewStatusEvent(report.Symbol, false, stage+" failed: "+err.Error()))
	return report, fmt.Errorf("ingest %s: %w", stage, err)
}

func (m *IngestionManager) failBackfill(report *BackfillReport, stage string, err error) (*BackfillReport, error) {
	report.State = StateFailed
	report.Error = err.Error()
	report.DurationMS = time.Since(report.StartedAt).Milliseconds()

	m.metrics.RecordIngest(report.Symbol, string(models.Granularity1d), "backfill_failure")
	m.metrics.RecordError("backfill_" + stage)
	m.l.Error("backfill failed",
		logger.Error(err),
		logger.String("symbol", report.Symbol),
		logger.String("stage", stage))
	return report, fmt.Errorf("backfill %s: %w", stage, err)
}

// emit publishes the run's signal on a detached context: the signal must
// reach subscribers even when the request context is already canceled.
func (m *IngestionManager) emit(evt *models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.bus.Publish(ctx, evt); err != nil {
		m.metrics.RecordError("bus_publish")
		m.l.Warn("bus publish failed",
			logger.Error(err),
			logger.String("type", evt.Type),
			logger.String("symbol", evt.Symbol))
	}
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
