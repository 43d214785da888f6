// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Total number of completed wizard step transitions",
		},
		[]string{"from", "to"},
	)

	WizardTransitionsBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_blocked_total",
			Help: "Total number of forward transitions refused by validation",
		},
		[]string{"step"},
	)

	StateSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_state_saves_total",
			Help: "Total number of process-state snapshot writes",
		},
		[]string{"status"},
	)

	StateLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_state_loads_total",
			Help: "Total number of process-state snapshot reads",
		},
		[]string{"status"},
	)

	PrefillFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_prefill_fields_total",
			Help: "Total number of fields filled by the pre-fill resolver",
		},
		[]string{"source"},
	)

	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_analysis_requests_total",
			Help: "Total number of document analysis API calls",
		},
		[]string{"operation", "status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "wizard_analysis_duration_seconds",
			Help: "Duration of document analysis API calls in seconds",
		},
		[]string{"operation"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_submissions_total",
			Help: "Total number of terminal packet submissions",
		},
		[]string{"status"},
	)

	StaleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wizard_stale_analysis_discarded_total",
			Help: "Total number of late analysis results dropped for cleared slots",
		},
	)
)
