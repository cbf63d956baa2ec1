package api

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/usecase"
	xhttp "github.com/yybrother989/tesla-trading-agent-sub000/pkg/http"
	applogger "github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// GetBars serves historical bars. Responses are cached per parameter set with
// a freshness window that widens with the granularity.
func (h *MarketDataHandler) GetBars(c echo.Context) error {
	req := &models.GetBarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "bars") {
		return xhttp.TooManyRequestsResponse(c, "rate limited")
	}

	g, err := models.ParseGranularity(req.Granularity)
	if err != nil {
		return h.errorResponse(c, err)
	}
	symbol := normalizeSymbol(req.Symbol)

	params := usecase.QueryParams{
		Symbol:      symbol,
		Granularity: req.Granularity,
		From:        req.From,
		To:          req.To,
		Limit:       req.Limit,
	}

	var result usecase.QueryResult
	key := h.cache.Key(symbol, g, req.From, req.To, req.Limit)
	ttl := h.cache.TTLFor(g)
	hit, err := h.cache.GetOrCompute(c.Request().Context(), key, ttl, &result,
		func(ctx context.Context) (interface{}, error) {
			return h.query.GetBars(ctx, params)
		})
	if err != nil {
		return h.errorResponse(c, err)
	}

	source := "store"
	if hit {
		source = "cache"
	}
	h.metrics.RecordQuery(string(g), source)
	h.l.Debug("bars served",
		applogger.String("symbol", symbol),
		applogger.String("granularity", string(g)),
		applogger.String("source", source),
		applogger.Int("count", result.Count))

	c.Response().Header().Set(echo.HeaderCacheControl, fmt.Sprintf("private, max-age=%d", int(ttl.Seconds())))
	return xhttp.SuccessResponse(c, result)
}
