package models

// Requests for the market-data HTTP endpoints. Defined in domain for consistency and reuse.
// Granularity, limit, and date-range semantics are enforced by the query usecase so that
// non-HTTP callers get the same typed errors; validator tags cover only shape.

type GetBarsRequest struct {
	Symbol      string `query:"symbol" json:"symbol" validate:"required"`
	Granularity string `query:"granularity" json:"granularity" default:"1m"`
	From        string `query:"from" json:"from"`
	To          string `query:"to" json:"to"`
	Limit       int    `query:"limit" json:"limit" default:"500"`
}

type IngestRequest struct {
	Symbol      string `json:"symbol" validate:"required"`
	Granularity string `json:"granularity" default:"1m"`
}

type BackfillRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

type StreamRequest struct {
	Symbol string `query:"symbol" validate:"required"`
}
