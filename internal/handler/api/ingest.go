package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	xhttp "github.com/yybrother989/tesla-trading-agent-sub000/pkg/http"
)

// Ingest triggers one fetch-normalize-upsert run and returns its report. On
// failure the report still goes out, under the status the error maps to, so
// operators see which stage broke.
func (h *MarketDataHandler) Ingest(c echo.Context) error {
	req := &models.IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "ingest") {
		return xhttp.TooManyRequestsResponse(c, "rate limited")
	}

	g, err := models.ParseGranularity(req.Granularity)
	if err != nil {
		return h.errorResponse(c, err)
	}

	report, err := h.ingest.IngestLatest(c.Request().Context(), req.Symbol, g)
	if err != nil {
		return xhttp.DataResponse(c, reportStatus(err), report)
	}
	return xhttp.SuccessResponse(c, report)
}

// Backfill loads the full daily history for a symbol. Long-running; the
// response reports batch-level progress.
func (h *MarketDataHandler) Backfill(c echo.Context) error {
	req := &models.BackfillRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "backfill") {
		return xhttp.TooManyRequestsResponse(c, "rate limited")
	}

	report, err := h.ingest.BackfillHistory(c.Request().Context(), req.Symbol)
	if err != nil {
		return xhttp.DataResponse(c, reportStatus(err), report)
	}
	return xhttp.SuccessResponse(c, report)
}

func reportStatus(err error) int {
	if appErr := appErrorFor(err); appErr != nil {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
