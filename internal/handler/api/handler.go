package api

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/realtime"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/service/ratelimit"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/usecase"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
	xhttp "github.com/yybrother989/tesla-trading-agent-sub000/pkg/http"
	applogger "github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// MarketDataHandler exposes the pipeline over HTTP: bar queries, manual
// ingest triggers, history backfill, the realtime stream, and health.
type MarketDataHandler struct {
	query   *usecase.QueryUseCase
	ingest  *usecase.IngestionManager
	cache   domrepo.ResultCache
	store   domrepo.BarStore
	hub     *realtime.Hub
	rl      *ratelimit.Limiter
	metrics domrepo.Metrics
	l       *applogger.Logger

	rateCapacity float64
	rateRefill   float64
	heartbeat    time.Duration
	writeTimeout time.Duration
}

func NewMarketDataHandler(
	query *usecase.QueryUseCase,
	ingest *usecase.IngestionManager,
	cache domrepo.ResultCache,
	store domrepo.BarStore,
	hub *realtime.Hub,
	metrics domrepo.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *MarketDataHandler {
	return &MarketDataHandler{
		query:        query,
		ingest:       ingest,
		cache:        cache,
		store:        store,
		hub:          hub,
		rl:           ratelimit.New(),
		metrics:      metrics,
		l:            l,
		rateCapacity: cfg.API.RateLimitCapacity,
		rateRefill:   cfg.API.RateLimitRefill,
		heartbeat:    cfg.Stream.HeartbeatInterval,
		writeTimeout: cfg.Stream.WriteTimeout,
	}
}

func (h *MarketDataHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	g := e.Group("/api/v1")
	g.GET("/bars", h.GetBars)
	g.POST("/ingest", h.Ingest)
	g.POST("/backfill", h.Backfill)
	g.GET("/stream", h.StreamSSE)
	g.GET("/stream/ws", h.StreamWS)
}

// allow consumes one rate limit token for the client and endpoint pair.
func (h *MarketDataHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl.Allow(c.RealIP()+":"+endpoint, h.rateCapacity, h.rateRefill) {
		return true
	}
	h.metrics.RecordError("api_rate_limited")
	h.l.Warn("request rate limited",
		applogger.String("endpoint", endpoint),
		applogger.String("remote", c.RealIP()))
	return false
}

// appErrorFor maps pipeline sentinels onto transport errors. Unknown errors
// return nil and surface as a generic 500.
func appErrorFor(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInvalidGranularity),
		errors.Is(err, models.ErrInvalidDateRange),
		errors.Is(err, models.ErrLimitExceeded),
		errors.Is(err, models.ErrUnsupportedTier):
		return xhttp.BadRequestError(err.Error())
	case errors.Is(err, models.ErrProviderRateLimited),
		errors.Is(err, models.ErrStoreUnavailable):
		return xhttp.ServiceUnavailableError(err.Error())
	case errors.Is(err, models.ErrProviderUnavailable),
		errors.Is(err, models.ErrMalformedPayload):
		return xhttp.BadGatewayError(err.Error())
	default:
		return nil
	}
}

func (h *MarketDataHandler) errorResponse(c echo.Context, err error) error {
	if appErr := appErrorFor(err); appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	h.l.Error("unclassified handler error", applogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
