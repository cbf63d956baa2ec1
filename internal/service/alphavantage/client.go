package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	drepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	pkghttp "github.com/yybrother989/tesla-trading-agent-sub000/pkg/http"
	applogger "github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// Alpha Vantage serves both intraday and daily series from a single /query
// endpoint selected by the function parameter. Responses are returned as raw
// bytes; the normalizer owns the series layout.
const (
	fnIntraday      = "TIME_SERIES_INTRADAY"
	fnDailyAdjusted = "TIME_SERIES_DAILY_ADJUSTED"

	maxResponseBytes = 32 << 20
)

// Client implements MarketDataProvider backed by the Alpha Vantage HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *pkghttp.Client
	l       *applogger.Logger
}

// New creates a new Alpha Vantage MarketDataProvider.
func New(baseURL, apiKey string, timeout time.Duration, l *applogger.Logger) drepo.MarketDataProvider {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		l:       l,
	}
}

// FetchLatest retrieves the compact payload covering the most recent bars.
func (c *Client) FetchLatest(ctx context.Context, symbol string, g models.Granularity) ([]byte, error) {
	params := map[string][]string{
		"symbol":     {symbol},
		"outputsize": {"compact"},
		"apikey":     {c.apiKey},
	}
	if g == models.Granularity1d {
		params["function"] = []string{fnDailyAdjusted}
	} else {
		params["function"] = []string{fnIntraday}
		params["interval"] = []string{intervalFor(g)}
	}
	return c.fetch(ctx, symbol, params)
}

// FetchDailyHistory retrieves the maximum available daily history in one call.
func (c *Client) FetchDailyHistory(ctx context.Context, symbol string) ([]byte, error) {
	params := map[string][]string{
		"function":   {fnDailyAdjusted},
		"symbol":     {symbol},
		"outputsize": {"full"},
		"apikey":     {c.apiKey},
	}
	return c.fetch(ctx, symbol, params)
}

func (c *Client) fetch(ctx context.Context, symbol string, params map[string][]string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.SendRequest(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         c.baseURL + "/query",
		QueryParams: params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", models.ErrProviderRateLimited, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", models.ErrProviderUnavailable, err)
	}

	// The API reports throttling and bad requests inside a 200 body.
	var probe struct {
		Note         string `json:"Note"`
		Information  string `json:"Information"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &probe); err == nil {
		if probe.Note != "" || probe.Information != "" {
			return nil, fmt.Errorf("%w: %s", models.ErrProviderRateLimited, firstNonEmpty(probe.Note, probe.Information))
		}
		if probe.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: %s", models.ErrMalformedPayload, probe.ErrorMessage)
		}
	}

	c.l.Debug("provider fetch ok",
		applogger.String("symbol", symbol),
		applogger.Int("bytes", len(body)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return body, nil
}

func intervalFor(g models.Granularity) string {
	switch g {
	case models.Granularity15m:
		return "15min"
	case models.Granularity60m:
		return "60min"
	default:
		return "1min"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
