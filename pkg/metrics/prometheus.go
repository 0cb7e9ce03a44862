package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	resultsStored  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	structureScore *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		resultsStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavescan_results_stored_total",
				Help: "Total number of scan results written to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavescan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		structureScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wavescan_structure_score",
				Help: "Last structure score per symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wavescan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordResultStored records one scan result written to a backend.
func (r *Recorder) RecordResultStored(backend, symbol string) {
	r.resultsStored.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordStructureScore records the latest structure score for a symbol.
func (r *Recorder) RecordStructureScore(symbol string, score float64) {
	r.structureScore.WithLabelValues(symbol).Set(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
