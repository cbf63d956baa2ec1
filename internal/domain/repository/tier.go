package repository

import "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"

// Tier identifies one of the storage locations bars live in.
type Tier string

const (
	// TierFine holds native 1m rows for a rolling retention window.
	TierFine Tier = "fine"
	// TierDerived15 and TierDerived60 are aggregates of the fine tier,
	// refreshed by a scheduler outside this service. Read-only here and
	// allowed to lag the fine tier by up to the refresh interval.
	TierDerived15 Tier = "derived_15m"
	TierDerived60 Tier = "derived_60m"
	// TierLong holds native daily rows over a multi-year window and is the
	// canonical source for 1d queries.
	TierLong Tier = "long"
)

// TierFor maps a granularity to the tier that serves it.
func TierFor(g models.Granularity) (Tier, bool) {
	switch g {
	case models.Granularity1m:
		return TierFine, true
	case models.Granularity15m:
		return TierDerived15, true
	case models.Granularity60m:
		return TierDerived60, true
	case models.Granularity1d:
		return TierLong, true
	default:
		return "", false
	}
}

// Writable reports whether the pipeline may upsert into the tier directly.
func (t Tier) Writable() bool {
	return t == TierFine || t == TierLong
}
