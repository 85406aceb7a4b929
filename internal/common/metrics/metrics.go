// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScenarioSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_submissions_total",
			Help: "Total number of scenario creation attempts by outcome",
		},
		[]string{"outcome"},
	)

	ScenarioFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_status_fetches_total",
			Help: "Total number of scenario status fetches by outcome",
		},
		[]string{"outcome"},
	)

	ScenarioFetchesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_ticks_skipped_total",
			Help: "Timer ticks that did not issue a fetch, by reason",
		},
		[]string{"reason"},
	)

	ScenarioFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scenario_status_fetch_duration_seconds",
			Help:    "Duration of scenario status fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ScenarioStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_status_transitions_total",
			Help: "Observed scenario status transitions",
		},
		[]string{"from", "to"},
	)

	ScenariosPolling = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scenario_polling_active",
			Help: "Number of scenarios currently being polled",
		},
	)
)

const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeDropped  = "dropped"

	SkipInFlight = "in_flight"
	SkipGated    = "gated"
)
