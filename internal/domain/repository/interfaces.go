package repository

import (
	"context"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
)

// BarStore reads and writes bars across the storage tiers.
type BarStore interface {
	Init(ctx context.Context) error // ensure tables/views, health checks

	// Upsert writes bar into the tier implied by its granularity, keyed on
	// (symbol, timestamp). A stored revision >= the incoming one makes the
	// call a no-op success; applied reports whether the row changed.
	Upsert(ctx context.Context, bar *models.Bar) (applied bool, err error)

	// UpsertBatch applies Upsert semantics to every bar in one statement.
	// All bars in a batch must share a symbol and granularity.
	UpsertBatch(ctx context.Context, bars []*models.Bar) (applied int, err error)

	// Read returns up to limit bars ascending by timestamp: the range filter
	// is applied first, then the most recent limit bars are kept. Zero from/to
	// mean an open bound.
	Read(ctx context.Context, symbol string, g models.Granularity, from, to time.Time, limit int) ([]models.Bar, error)

	// Get fetches the stored bar at an exact timestamp, or nil when absent.
	Get(ctx context.Context, symbol string, g models.Granularity, ts time.Time) (*models.Bar, error)

	Health(ctx context.Context) error // ping
	Close() error
}

// MarketDataProvider fetches raw provider payloads. Responses are opaque
// bytes for the normalizer; only transport-level failures are classified
// here (ErrProviderUnavailable, ErrProviderRateLimited).
type MarketDataProvider interface {
	// FetchLatest retrieves the payload covering the most recent bars for
	// the symbol at the given granularity.
	FetchLatest(ctx context.Context, symbol string, g models.Granularity) ([]byte, error)

	// FetchDailyHistory retrieves the maximum available daily history for
	// the symbol in one call.
	FetchDailyHistory(ctx context.Context, symbol string) ([]byte, error)
}

// EventHandler consumes pipeline events delivered by an EventBus.
type EventHandler func(evt *models.Event)

// EventBus decouples the ingestion side from realtime consumers. Per-symbol
// publish order is preserved through to handlers; delivery to slow consumers
// is best-effort.
type EventBus interface {
	Publish(ctx context.Context, evt *models.Event) error
	Subscribe(h EventHandler)
	Start(ctx context.Context) error
	Close() error
}

// ResultCache fronts query responses keyed by request parameters. Only
// successful computations are cached; failures always propagate uncached.
type ResultCache interface {
	// GetOrCompute fills dest from cache when the key is fresh. On a miss it
	// runs compute, stores the marshaled result under key for ttl, and fills
	// dest from it. hit reports whether the cache served the payload.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest interface{}, compute func(context.Context) (interface{}, error)) (hit bool, err error)

	// Key derives the deterministic cache key for one query shape.
	Key(symbol string, g models.Granularity, from, to string, limit int) string

	// TTLFor returns the freshness window configured for a granularity.
	TTLFor(g models.Granularity) time.Duration

	// Clear drops every cached query result.
	Clear(ctx context.Context) error
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordIngest(symbol, granularity, outcome string)
	RecordError(kind string)
	RecordQuery(granularity, source string) // source: cache or store
	RecordLatency(op string, seconds float64)
	RecordLastClose(symbol string, price float64)
	SetSubscribers(symbol string, n int)
}
