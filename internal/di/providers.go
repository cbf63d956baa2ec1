package di

import (
	"context"
	"fmt"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/bus"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/handler/api"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/realtime"
	internalrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/service/alphavantage"
	svccache "github.com/yybrother989/tesla-trading-agent-sub000/internal/service/cache"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/service/ratelimit"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/usecase"
	pkgcache "github.com/yybrother989/tesla-trading-agent-sub000/pkg/cache"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
	xhttp "github.com/yybrother989/tesla-trading-agent-sub000/pkg/http"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/metrics"
	pkgpg "github.com/yybrother989/tesla-trading-agent-sub000/pkg/postgres"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: "tta",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a noop recorder
// when metrics are disabled.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.NewNoop()
	}
	return metrics.New()
}

// ProvidePostgresClient creates a Postgres connection pool.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgpg.NewClient(ctx,
		pkgpg.WithHost(cfg.Postgres.Host),
		pkgpg.WithPort(cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithSSLMode(cfg.Postgres.SSLMode),
		pkgpg.WithPoolSize(cfg.Postgres.MinConns, cfg.Postgres.MaxConns),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the Postgres bar store and bootstraps the schema
// when configured to.
func ProvideBarStore(client *pkgpg.Client, cfg *config.Config, l *logger.Logger) (domrepo.BarStore, error) {
	store := internalrepo.NewPGBarStore(client, l, cfg.Postgres.QueryTimeout)

	if cfg.Postgres.Bootstrap {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	return store, nil
}

// ProvideMarketDataProvider creates the Alpha Vantage client.
func ProvideMarketDataProvider(cfg *config.Config, l *logger.Logger) domrepo.MarketDataProvider {
	return alphavantage.New(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout, l)
}

// ProvideProviderLimiter spaces provider calls to honor the upstream quota.
func ProvideProviderLimiter(cfg *config.Config) *ratelimit.Interval {
	return ratelimit.NewInterval(cfg.Provider.CallsPerMinute)
}

// ProvideCacheBackend creates the cache backend selected by config: a plain
// in-memory LRU, or a memory-over-Redis layered cache.
func ProvideCacheBackend(cfg *config.Config) (pkgcache.Service, error) {
	switch cfg.Cache.Backend {
	case "layered":
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisAddr(cfg.Cache.Redis.Addr),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
			pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return pkgcache.NewLayeredCache(rc,
			pkgcache.WithLayeredMemorySize(cfg.Cache.MaxEntries),
		), nil
	default:
		return pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
		), nil
	}
}

// ProvideResultCache wraps the cache backend with query-result semantics.
func ProvideResultCache(store pkgcache.Service, cfg *config.Config, l *logger.Logger) domrepo.ResultCache {
	return svccache.NewResultCache(store, cfg, l)
}

// ProvideEventBus creates the bar event bus selected by config.
func ProvideEventBus(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) (domrepo.EventBus, error) {
	if cfg.Bus.Type == "kafka" {
		b, err := bus.NewKafka(cfg, m, l)
		if err != nil {
			return nil, fmt.Errorf("kafka bus: %w", err)
		}
		return b, nil
	}
	return bus.NewInproc(cfg.Bus.BufferSize, m, l), nil
}

// ProvideHub creates the realtime subscriber hub.
func ProvideHub(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) *realtime.Hub {
	return realtime.NewHub(cfg.Stream.BufferSize, m, l)
}

// ProvideBridge connects the event bus to the hub.
func ProvideBridge(b domrepo.EventBus, hub *realtime.Hub, m domrepo.Metrics, l *logger.Logger) *realtime.Bridge {
	return realtime.NewBridge(b, hub, m, l)
}

// ProvideQueryUseCase creates the bar query use case.
func ProvideQueryUseCase(store domrepo.BarStore) *usecase.QueryUseCase {
	return usecase.NewQueryUseCase(store)
}

// ProvideIngestionManager creates the ingestion use case.
func ProvideIngestionManager(
	provider domrepo.MarketDataProvider,
	store domrepo.BarStore,
	b domrepo.EventBus,
	cache domrepo.ResultCache,
	limiter *ratelimit.Interval,
	m domrepo.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.IngestionManager {
	return usecase.NewIngestionManager(provider, store, b, cache, limiter, m, l, cfg.Ingest.BackfillBatchSize)
}

// ProvideScheduler creates the ingestion scheduler, or nil when disabled.
func ProvideScheduler(ingest *usecase.IngestionManager, cfg *config.Config, m domrepo.Metrics, l *logger.Logger) (*usecase.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s, err := usecase.NewScheduler(ingest, cfg, m, l)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideHandler creates the market data HTTP handler.
func ProvideHandler(
	query *usecase.QueryUseCase,
	ingest *usecase.IngestionManager,
	cache domrepo.ResultCache,
	store domrepo.BarStore,
	hub *realtime.Hub,
	m domrepo.Metrics,
	cfg *config.Config,
	l *logger.Logger,
) *api.MarketDataHandler {
	return api.NewMarketDataHandler(query, ingest, cache, store, hub, m, cfg, l)
}

// ProvideHTTPServer creates the HTTP server around the handler.
func ProvideHTTPServer(h *api.MarketDataHandler, cfg *config.Config, l *logger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	store domrepo.BarStore,
	cacheBackend pkgcache.Service,
	bridge *realtime.Bridge,
	hub *realtime.Hub,
	scheduler *usecase.Scheduler,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, store, cacheBackend, bridge, hub, scheduler, httpServer)
}
