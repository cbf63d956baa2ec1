package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/util"
)

const (
	defaultQueryLimit = 500
	maxQueryLimit     = 10000
)

// QueryUseCase validates read requests and dispatches them to the store.
// It owns no retrieval logic beyond parameter checking; tier routing and
// ordering live in the store.
type QueryUseCase struct {
	store domrepo.BarStore
}

func NewQueryUseCase(store domrepo.BarStore) *QueryUseCase {
	return &QueryUseCase{store: store}
}

// QueryParams carries raw, unvalidated request parameters.
type QueryParams struct {
	Symbol      string
	Granularity string
	From        string
	To          string
	Limit       int
}

// QueryResult is the response payload for a bar query.
type QueryResult struct {
	Symbol      string       `json:"symbol"`
	Granularity string       `json:"granularity"`
	Count       int          `json:"count"`
	Bars        []models.Bar `json:"bars"`
}

// GetBars validates p and reads matching bars ascending by timestamp.
// Violations map to sentinel errors so transports can classify them:
// ErrInvalidGranularity, ErrLimitExceeded, ErrInvalidDateRange.
func (uc *QueryUseCase) GetBars(ctx context.Context, p QueryParams) (*QueryResult, error) {
	symbol := normalizeSymbol(p.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	g, err := models.ParseGranularity(p.Granularity)
	if err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return nil, fmt.Errorf("%w: limit %d exceeds maximum %d", models.ErrLimitExceeded, p.Limit, maxQueryLimit)
	}

	var from, to time.Time
	if p.From != "" {
		t, ok := util.ParseTime(p.From)
		if !ok {
			return nil, fmt.Errorf("%w: cannot parse from %q", models.ErrInvalidDateRange, p.From)
		}
		from = t
	}
	if p.To != "" {
		t, ok := util.ParseTime(p.To)
		if !ok {
			return nil, fmt.Errorf("%w: cannot parse to %q", models.ErrInvalidDateRange, p.To)
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, fmt.Errorf("%w: from %s is after to %s",
			models.ErrInvalidDateRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	bars, err := uc.store.Read(ctx, symbol, g, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	if bars == nil {
		bars = []models.Bar{}
	}

	return &QueryResult{
		Symbol:      symbol,
		Granularity: string(g),
		Count:       len(bars),
		Bars:        bars,
	}, nil
}
