package models

import (
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV observation for a symbol at a granularity and timestamp.
// (symbol, timestamp, granularity) identifies a bar; revision tracks provider
// corrections for the same bar and only ever increases.
type Bar struct {
	Symbol      string      `json:"symbol"`
	Timestamp   time.Time   `json:"timestamp"`
	Granularity Granularity `json:"granularity"`
	Open        float64     `json:"open"`
	High        float64     `json:"high"`
	Low         float64     `json:"low"`
	Close       float64     `json:"close"`
	Volume      int64       `json:"volume"`
	Adjusted    bool        `json:"adjusted"`
	Revision    int64       `json:"revision"`
}

// Validate checks structural sanity before a bar is allowed near storage.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrMalformedPayload)
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrMalformedPayload)
	}
	if !b.Granularity.IsValid() {
		return fmt.Errorf("%w: granularity %q", ErrInvalidGranularity, b.Granularity)
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite price", ErrMalformedPayload)
		}
	}
	if b.High < math.Max(b.Open, b.Close) || b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("%w: inconsistent high/low", ErrMalformedPayload)
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: negative volume", ErrMalformedPayload)
	}
	if b.Revision < 1 {
		return fmt.Errorf("%w: revision %d", ErrMalformedPayload, b.Revision)
	}
	return nil
}

// SameValues reports whether two bars carry identical observed values,
// ignoring revision. Used to decide whether a re-ingested bar is a
// correction or a repeat.
func (b *Bar) SameValues(other *Bar) bool {
	return b.Open == other.Open &&
		b.High == other.High &&
		b.Low == other.Low &&
		b.Close == other.Close &&
		b.Volume == other.Volume &&
		b.Adjusted == other.Adjusted
}
