package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/util"
)

// The provider keys its series section by timestamp strings mapping to OHLCV
// fields ("1. open", "2. high", ...). Everything here is pure: payload bytes
// in, canonical bars out, ErrMalformedPayload on anything unparseable.

var seriesTimeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeLatest selects the single most recent entry of the payload's
// series, descending by parsed timestamp. First-seen wins a timestamp tie.
func NormalizeLatest(raw []byte, symbol string, g models.Granularity) (*models.Bar, error) {
	entries, err := seriesEntries(raw)
	if err != nil {
		return nil, err
	}

	var (
		bestTS time.Time
		best   map[string]interface{}
	)
	for key, fields := range entries {
		ts, ok := parseSeriesTime(key)
		if !ok {
			return nil, fmt.Errorf("%w: bad series timestamp %q", models.ErrMalformedPayload, key)
		}
		if best == nil || ts.After(bestTS) {
			bestTS, best = ts, fields
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: empty series", models.ErrMalformedPayload)
	}
	return barFromFields(symbol, g, bestTS, best)
}

// NormalizeSeries converts every series entry, ascending by timestamp. A
// single bad entry rejects the whole payload so a failed run never leaves
// partial writes behind.
func NormalizeSeries(raw []byte, symbol string, g models.Granularity) ([]*models.Bar, error) {
	entries, err := seriesEntries(raw)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty series", models.ErrMalformedPayload)
	}

	bars := make([]*models.Bar, 0, len(entries))
	for key, fields := range entries {
		ts, ok := parseSeriesTime(key)
		if !ok {
			return nil, fmt.Errorf("%w: bad series timestamp %q", models.ErrMalformedPayload, key)
		}
		bar, err := barFromFields(symbol, g, ts, fields)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func seriesEntries(raw []byte) (map[string]map[string]interface{}, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	for key, section := range top {
		if !strings.Contains(key, "Time Series") {
			continue
		}
		var entries map[string]map[string]interface{}
		if err := json.Unmarshal(section, &entries); err != nil {
			return nil, fmt.Errorf("%w: series section: %v", models.ErrMalformedPayload, err)
		}
		return entries, nil
	}
	return nil, fmt.Errorf("%w: no series section", models.ErrMalformedPayload)
}

func parseSeriesTime(s string) (time.Time, bool) {
	for _, layout := range seriesTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func barFromFields(symbol string, g models.Granularity, ts time.Time, fields map[string]interface{}) (*models.Bar, error) {
	open, err := priceField(fields, "open", "1. open")
	if err != nil {
		return nil, err
	}
	high, err := priceField(fields, "high", "2. high")
	if err != nil {
		return nil, err
	}
	low, err := priceField(fields, "low", "3. low")
	if err != nil {
		return nil, err
	}
	closePx, err := priceField(fields, "close", "4. close")
	if err != nil {
		return nil, err
	}

	// Missing volume is tolerated as zero.
	volume := int64(0)
	if v, ok, err := optionalNumber(fields, "5. volume", "6. volume", "volume"); err != nil {
		return nil, err
	} else if ok {
		volume = int64(math.Round(v))
	}

	adjusted := false
	if adjClose, ok, err := optionalNumber(fields, "5. adjusted close", "adjusted close"); err != nil {
		return nil, err
	} else if ok {
		// Scale the whole candle by the adjustment ratio so split history
		// keeps high/low consistent with open/close.
		if closePx > 0 && adjClose != closePx {
			ratio := adjClose / closePx
			open *= ratio
			high *= ratio
			low *= ratio
		}
		closePx = adjClose
		adjusted = true
	}

	if g == models.Granularity1d {
		ts = util.TruncateTo(ts, g.Duration())
	}

	bar := &models.Bar{
		Symbol:      symbol,
		Timestamp:   ts,
		Granularity: g,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closePx,
		Volume:      volume,
		Adjusted:    adjusted,
		Revision:    1,
	}
	if err := bar.Validate(); err != nil {
		return nil, err
	}
	return bar, nil
}

func priceField(fields map[string]interface{}, names ...string) (float64, error) {
	v, ok, err := optionalNumber(fields, names...)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", models.ErrMalformedPayload, names[0])
	}
	return v, nil
}

func optionalNumber(fields map[string]interface{}, names ...string) (float64, bool, error) {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := numberFromAny(raw)
		if err != nil {
			return 0, false, fmt.Errorf("%w: field %q: %v", models.ErrMalformedPayload, name, err)
		}
		return v, true, nil
	}
	return 0, false, nil
}

func numberFromAny(v interface{}) (float64, error) {
	var f float64
	switch x := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	case float64:
		f = x
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return f, nil
}
