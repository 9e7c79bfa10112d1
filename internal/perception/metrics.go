package perception

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics, auto-registered via promauto.
var (
	// classificationsTotal counts classifications by outcome.
	//
	// Labels:
	//   - query_type: one of AllQueryTypes
	//   - action_type: the action tag
	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contractbot",
			Subsystem: "perception",
			Name:      "classifications_total",
			Help:      "Total classifications by query and action type.",
		},
		[]string{"query_type", "action_type"},
	)

	entitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contractbot",
			Subsystem: "perception",
			Name:      "entities_total",
			Help:      "Total extracted entities by attribute.",
		},
		[]string{"attribute"},
	)

	correctionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contractbot",
		Subsystem: "perception",
		Name:      "corrected_inputs_total",
		Help:      "Inputs whose normalized form differs beyond case and spacing.",
	})

	analyzeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "contractbot",
		Subsystem: "perception",
		Name:      "analyze_latency_seconds",
		Help:      "Normalize + extract + classify latency.",
		Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})
)

func recordAnalysis(a Analysis, elapsed time.Duration) {
	analyzeLatency.Observe(elapsed.Seconds())
	classificationsTotal.WithLabelValues(string(a.Classification.QueryType), string(a.Classification.ActionType)).Inc()
	for _, e := range a.Entities {
		entitiesTotal.WithLabelValues(e.Attribute).Inc()
	}
	if a.Corrected {
		correctionsTotal.Inc()
	}
}
