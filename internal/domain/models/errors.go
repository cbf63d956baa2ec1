package models

import "errors"

// Pipeline error taxonomy. Lower layers wrap these with context via %w;
// callers branch with errors.Is and transports map them to status codes.
var (
	// ErrMalformedPayload marks upstream data that cannot be normalized.
	ErrMalformedPayload = errors.New("malformed provider payload")

	// ErrProviderUnavailable covers network failures and provider 5xx responses.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRateLimited is returned when the provider refuses the call
	// despite the local inter-call delay.
	ErrProviderRateLimited = errors.New("provider rate limited")

	// ErrStoreUnavailable means a storage tier could not be reached. Never
	// to be conflated with an empty result.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidGranularity rejects resolutions outside {1m,15m,60m,1d}.
	ErrInvalidGranularity = errors.New("invalid granularity")

	// ErrInvalidDateRange rejects from/to values that do not parse as instants.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrLimitExceeded rejects query limits outside the allowed range.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrUnsupportedTier rejects direct writes to derive-only tiers (15m/60m).
	ErrUnsupportedTier = errors.New("unsupported tier for direct write")
)
