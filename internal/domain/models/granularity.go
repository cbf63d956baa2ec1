package models

import (
	"fmt"
	"time"
)

// Granularity is a supported bar resolution.
type Granularity string

const (
	Granularity1m  Granularity = "1m"
	Granularity15m Granularity = "15m"
	Granularity60m Granularity = "60m"
	Granularity1d  Granularity = "1d"
)

// Granularities lists every supported resolution.
var Granularities = []Granularity{Granularity1m, Granularity15m, Granularity60m, Granularity1d}

// IsValid reports whether g is one of the supported resolutions.
func (g Granularity) IsValid() bool {
	switch g {
	case Granularity1m, Granularity15m, Granularity60m, Granularity1d:
		return true
	default:
		return false
	}
}

// Duration returns the bucket width of the granularity.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Granularity1m:
		return time.Minute
	case Granularity15m:
		return 15 * time.Minute
	case Granularity60m:
		return time.Hour
	case Granularity1d:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// ParseGranularity validates raw input into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
	return g, nil
}
