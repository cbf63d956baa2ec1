package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "github.com/yybrother989/tesla-trading-agent-sub000/pkg/http"
	applogger "github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// Healthz reports liveness plus storage reachability.
func (h *MarketDataHandler) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Health(ctx); err != nil {
		h.l.Warn("health check failed", applogger.Error(err))
		return xhttp.ServiceUnavailableResponse(c, map[string]string{
			"status":   "degraded",
			"postgres": err.Error(),
		})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
