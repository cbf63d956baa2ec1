package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
)

const intradayPayload = `{
	"Meta Data": {"1. Information": "Intraday (1min)", "2. Symbol": "TSLA"},
	"Time Series (1min)": {
		"2024-01-02 14:30:00": {"1. open": "249.5000", "2. high": "250.1000", "3. low": "249.3000", "4. close": "250.0000", "5. volume": "11000"},
		"2024-01-02 14:31:00": {"1. open": "250.0000", "2. high": "251.2000", "3. low": "249.8000", "4. close": "250.9000", "5. volume": "12000"},
		"2024-01-02 14:29:00": {"1. open": "249.0000", "2. high": "249.7000", "3. low": "248.9000", "4. close": "249.5000", "5. volume": "9000"}
	}
}`

func TestNormalizeLatestPicksNewest(t *testing.T) {
	bar, err := NormalizeLatest([]byte(intradayPayload), "TSLA", models.Granularity1m)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := time.Date(2024, 1, 2, 14, 31, 0, 0, time.UTC)
	if !bar.Timestamp.Equal(want) {
		t.Fatalf("picked %v, want %v", bar.Timestamp, want)
	}
	if bar.Close != 250.9 {
		t.Fatalf("close = %v, want 250.9", bar.Close)
	}
	if bar.Volume != 12000 {
		t.Fatalf("volume = %d, want 12000", bar.Volume)
	}
	if bar.Revision != 1 {
		t.Fatalf("revision = %d, want 1", bar.Revision)
	}
}

func TestNormalizeLatestMissingVolumeIsZero(t *testing.T) {
	payload := `{"Time Series (1min)": {
		"2024-01-02 14:31:00": {"1. open": "250.0", "2. high": "251.2", "3. low": "249.8", "4. close": "250.9"}
	}}`
	bar, err := NormalizeLatest([]byte(payload), "TSLA", models.Granularity1m)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if bar.Volume != 0 {
		t.Fatalf("volume = %d, want 0", bar.Volume)
	}
}

func TestNormalizeLatestRejectsUnparseableClose(t *testing.T) {
	payload := `{"Time Series (1min)": {
		"2024-01-02 14:31:00": {"1. open": "250.0", "2. high": "251.2", "3. low": "249.8", "4. close": "oops"}
	}}`
	_, err := NormalizeLatest([]byte(payload), "TSLA", models.Granularity1m)
	if !errors.Is(err, models.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestNormalizeLatestRejectsNonFinite(t *testing.T) {
	payload := `{"Time Series (1min)": {
		"2024-01-02 14:31:00": {"1. open": "NaN", "2. high": "251.2", "3. low": "249.8", "4. close": "250.9"}
	}}`
	_, err := NormalizeLatest([]byte(payload), "TSLA", models.Granularity1m)
	if !errors.Is(err, models.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestNormalizeLatestNoSeriesSection(t *testing.T) {
	_, err := NormalizeLatest([]byte(`{"Meta Data": {}}`), "TSLA", models.Granularity1m)
	if !errors.Is(err, models.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestNormalizeSeriesAscendingAndComplete(t *testing.T) {
	bars, err := NormalizeSeries([]byte(intradayPayload), "TSLA", models.Granularity1m)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("len = %d, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Timestamp.Before(bars[i].Timestamp) {
			t.Fatalf("bars not ascending at %d: %v >= %v", i, bars[i-1].Timestamp, bars[i].Timestamp)
		}
	}
}

func TestNormalizeSeriesRejectsWholePayloadOnBadEntry(t *testing.T) {
	payload := `{"Time Series (1min)": {
		"2024-01-02 14:30:00": {"1. open": "249.5", "2. high": "250.1", "3. low": "249.3", "4. close": "250.0"},
		"2024-01-02 14:31:00": {"1. open": "x", "2. high": "251.2", "3. low": "249.8", "4. close": "250.9"}
	}}`
	if _, err := NormalizeSeries([]byte(payload), "TSLA", models.Granularity1m); !errors.Is(err, models.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestNormalizeDailyAdjustedScalesCandle(t *testing.T) {
	payload := `{"Time Series (Daily)": {
		"2020-08-28": {"1. open": "900.0", "2. high": "920.0", "3. low": "880.0", "4. close": "900.0", "5. adjusted close": "300.0", "6. volume": "1000000"}
	}}`
	bar, err := NormalizeLatest([]byte(payload), "TSLA", models.Granularity1d)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !bar.Adjusted {
		t.Fatalf("expected adjusted bar")
	}
	if bar.Close != 300.0 {
		t.Fatalf("close = %v, want 300.0", bar.Close)
	}
	// high/low follow the adjustment ratio so the candle stays consistent
	if bar.High < bar.Close || bar.Low > bar.Close {
		t.Fatalf("candle inconsistent after adjustment: high=%v low=%v close=%v", bar.High, bar.Low, bar.Close)
	}
	want := time.Date(2020, 8, 28, 0, 0, 0, 0, time.UTC)
	if !bar.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", bar.Timestamp, want)
	}
}

func TestNormalizeDailyTruncatesToDate(t *testing.T) {
	payload := `{"Time Series (Daily)": {
		"2024-01-02 16:00:00": {"1. open": "250.0", "2. high": "251.0", "3. low": "249.0", "4. close": "250.5", "6. volume": "500"}
	}}`
	bar, err := NormalizeLatest([]byte(payload), "TSLA", models.Granularity1d)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !bar.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", bar.Timestamp, want)
	}
}
