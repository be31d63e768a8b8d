package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsCounted tracks errors counted against the budget, per context type
	ErrorsCounted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderguard_errors_counted_total",
			Help: "Total number of errors counted against the error budget",
		},
		[]string{"context"},
	)

	// ErrorsSkipped tracks errors swallowed without counting
	ErrorsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderguard_errors_skipped_total",
			Help: "Total number of errors skipped (cascade suppression or tolerance)",
		},
		[]string{"reason"},
	)

	// Recoveries tracks strategy dispatch outcomes
	Recoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderguard_recoveries_total",
			Help: "Total number of recovery strategy invocations",
		},
		[]string{"context", "outcome"},
	)

	// BreakerTrips counts circuit breaker trips
	BreakerTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renderguard_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
	)

	// CriticalState reflects whether the terminal failure mode is active
	CriticalState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderguard_critical_state",
			Help: "1 when the error budget is exhausted and recovery is frozen",
		},
	)

	// RendersTotal tracks settled render requests per outcome
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderguard_renders_total",
			Help: "Total number of settled region renders",
		},
		[]string{"outcome"},
	)

	// RenderAttempts tracks engine calls needed per settled render
	RenderAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "renderguard_render_attempts",
			Help:    "Engine typeset attempts per settled render",
			Buckets: []float64{1, 2, 3, 5, 10},
		},
	)

	// EngineReady reflects the readiness gate state
	EngineReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderguard_engine_ready",
			Help: "1 once the external typesetting engine became usable",
		},
	)

	// PendingRegions tracks regions queued behind the readiness gate
	PendingRegions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderguard_pending_regions",
			Help: "Regions waiting for engine readiness",
		},
	)
)
