package metrics

// Noop discards all measurements. Wired in when metrics are disabled so
// callers never have to nil-check the recorder.
type Noop struct{}

// NewNoop creates a recorder that drops everything.
func NewNoop() *Noop { return &Noop{} }

func (Noop) RecordIngest(symbol, granularity, outcome string) {}
func (Noop) RecordError(kind string)                          {}
func (Noop) RecordQuery(granularity, source string)           {}
func (Noop) RecordLatency(op string, seconds float64)         {}
func (Noop) RecordLastClose(symbol string, price float64)     {}
func (Noop) SetSubscribers(symbol string, n int)              {}
