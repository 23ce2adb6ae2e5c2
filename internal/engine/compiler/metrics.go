package compiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compilationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_compilations_total",
			Help: "Total number of selection compilations",
		},
		[]string{"mode", "outcome"},
	)

	compilationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_compilation_duration_seconds",
			Help:    "Selection compilation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	compiledSetSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_compiled_set_size",
			Help:    "Number of item ids in a compiled selection",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000},
		},
		[]string{"mode"},
	)
)
