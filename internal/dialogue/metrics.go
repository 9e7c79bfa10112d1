package dialogue

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// turnsTotal counts processed turns.
	//
	// Labels:
	//   - role: the Role the turn was assigned
	//   - success: "true" or "false"
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contractbot",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Total turns by role and outcome.",
		},
		[]string{"role", "success"},
	)

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "contractbot",
		Subsystem: "dialogue",
		Name:      "turn_duration_seconds",
		Help:      "Time to produce a turn response, excluding persistence.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	responseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contractbot",
			Subsystem: "dialogue",
			Name:      "response_errors_total",
			Help:      "Errors attached to responses, by code.",
		},
		[]string{"code"},
	)

	// taskTransitionsTotal counts task lifecycle events.
	//
	// Labels:
	//   - outcome: started, completed, cancelled, abandoned, reset
	taskTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contractbot",
			Subsystem: "dialogue",
			Name:      "task_transitions_total",
			Help:      "Task lifecycle transitions by outcome.",
		},
		[]string{"outcome"},
	)

	panicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contractbot",
		Subsystem: "dialogue",
		Name:      "panics_total",
		Help:      "Turns that panicked and were answered with PARSE_ERROR.",
	})
)

func recordTurn(r *Response, elapsed time.Duration) {
	turnDuration.Observe(elapsed.Seconds())
	turnsTotal.WithLabelValues(string(r.Metadata.Role), strconv.FormatBool(r.Success)).Inc()
	for _, e := range r.Errors {
		responseErrorsTotal.WithLabelValues(e.Code).Inc()
	}
}
