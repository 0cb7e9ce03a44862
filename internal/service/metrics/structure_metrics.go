package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	StructureLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wavescan",
			Subsystem: "structure",
			Name:      "latency_seconds",
			Help:      "Latency of structure endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	StructureErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wavescan",
			Subsystem: "structure",
			Name:      "errors_total",
			Help:      "Errors by structure endpoint",
		},
		[]string{"endpoint"},
	)

	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wavescan",
			Subsystem: "structure",
			Name:      "scans_total",
			Help:      "Completed screener scans by outcome",
		},
		[]string{"outcome"},
	)

	ScanSymbols = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wavescan",
			Subsystem: "structure",
			Name:      "scan_symbols",
			Help:      "Symbols evaluated per scan",
			Buckets:   []float64{10, 50, 100, 250, 500},
		},
		[]string{"trigger"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(StructureLatency, StructureErrors, ScansTotal, ScanSymbols)
	})
}
