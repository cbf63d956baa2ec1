package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
)

func TestGetBarsDefaultsAndDispatch(t *testing.T) {
	store := newFakeStore()
	store.readResult = []models.Bar{
		{Symbol: "TSLA", Close: 250.5, Granularity: models.Granularity1m},
		{Symbol: "TSLA", Close: 250.7, Granularity: models.Granularity1m},
	}
	uc := NewQueryUseCase(store)

	res, err := uc.GetBars(context.Background(), QueryParams{Symbol: " tsla ", Granularity: "1m"})
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if res.Symbol != "TSLA" || res.Granularity != "1m" || res.Count != 2 {
		t.Fatalf("result = %+v", res)
	}

	if len(store.reads) != 1 {
		t.Fatalf("store read %d times, want 1", len(store.reads))
	}
	call := store.reads[0]
	if call.symbol != "TSLA" || call.g != models.Granularity1m {
		t.Fatalf("dispatched %s/%s", call.symbol, call.g)
	}
	if call.limit != defaultQueryLimit {
		t.Fatalf("limit = %d, want default %d", call.limit, defaultQueryLimit)
	}
	if !call.from.IsZero() || !call.to.IsZero() {
		t.Fatalf("open range should dispatch zero bounds, got %v..%v", call.from, call.to)
	}
}

func TestGetBarsParsesRange(t *testing.T) {
	store := newFakeStore()
	uc := NewQueryUseCase(store)

	_, err := uc.GetBars(context.Background(), QueryParams{
		Symbol:      "TSLA",
		Granularity: "1d",
		From:        "2024-01-02",
		To:          "2024-02-01T15:30:00Z",
		Limit:       100,
	})
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}

	call := store.reads[0]
	wantFrom := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, 2, 1, 15, 30, 0, 0, time.UTC)
	if !call.from.Equal(wantFrom) || !call.to.Equal(wantTo) {
		t.Fatalf("range = %v..%v, want %v..%v", call.from, call.to, wantFrom, wantTo)
	}
}

func TestGetBarsValidation(t *testing.T) {
	uc := NewQueryUseCase(newFakeStore())
	ctx := context.Background()

	cases := []struct {
		name   string
		params QueryParams
		want   error
	}{
		{"unknown granularity", QueryParams{Symbol: "TSLA", Granularity: "5m"}, models.ErrInvalidGranularity},
		{"empty granularity", QueryParams{Symbol: "TSLA"}, models.ErrInvalidGranularity},
		{"limit over max", QueryParams{Symbol: "TSLA", Granularity: "1m", Limit: maxQueryLimit + 1}, models.ErrLimitExceeded},
		{"bad from", QueryParams{Symbol: "TSLA", Granularity: "1m", From: "not-a-date"}, models.ErrInvalidDateRange},
		{"bad to", QueryParams{Symbol: "TSLA", Granularity: "1m", To: "2024-13-45"}, models.ErrInvalidDateRange},
		{"from after to", QueryParams{Symbol: "TSLA", Granularity: "1m", From: "2024-02-01", To: "2024-01-01"}, models.ErrInvalidDateRange},
	}

	for _, tc := range cases {
		if _, err := uc.GetBars(ctx, tc.params); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestGetBarsLimitBoundary(t *testing.T) {
	store := newFakeStore()
	uc := NewQueryUseCase(store)

	if _, err := uc.GetBars(context.Background(), QueryParams{Symbol: "TSLA", Granularity: "60m", Limit: maxQueryLimit}); err != nil {
		t.Fatalf("limit == max should pass: %v", err)
	}
	if got := store.reads[0].limit; got != maxQueryLimit {
		t.Fatalf("limit = %d, want %d", got, maxQueryLimit)
	}
}

func TestGetBarsStoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.readErr = fmt.Errorf("%w: pool exhausted", models.ErrStoreUnavailable)
	uc := NewQueryUseCase(store)

	_, err := uc.GetBars(context.Background(), QueryParams{Symbol: "TSLA", Granularity: "1m"})
	if !errors.Is(err, models.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestGetBarsEmptyResultIsNotNil(t *testing.T) {
	uc := NewQueryUseCase(newFakeStore())

	res, err := uc.GetBars(context.Background(), QueryParams{Symbol: "TSLA", Granularity: "1m"})
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if res.Bars == nil || res.Count != 0 {
		t.Fatalf("empty result should carry an empty slice, got %+v", res)
	}
}
