package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ingestsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	queriesTotal *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	lastClose    *prometheus.GaugeVec
	subscribers  *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ingestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tta_ingests_total",
				Help: "Total number of ingestion runs by outcome",
			},
			[]string{"symbol", "granularity", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tta_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		queriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tta_queries_total",
				Help: "Total number of bar queries by serving source",
			},
			[]string{"granularity", "source"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tta_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tta_last_close",
				Help: "Last ingested close price for a symbol",
			},
			[]string{"symbol"},
		),
		subscribers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tta_stream_subscribers",
				Help: "Current number of realtime subscribers per symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordIngest records one ingestion run and its outcome.
func (r *Recorder) RecordIngest(symbol, granularity, outcome string) {
	r.ingestsTotal.WithLabelValues(symbol, granularity, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordQuery records a bar query and where it was served from.
func (r *Recorder) RecordQuery(granularity, source string) {
	r.queriesTotal.WithLabelValues(granularity, source).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordLastClose records the last ingested close for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// SetSubscribers records the subscriber count for a symbol.
func (r *Recorder) SetSubscribers(symbol string, n int) {
	r.subscribers.WithLabelValues(symbol).Set(float64(n))
}
