// Package metrics registers the Prometheus collectors shared by the CACO
// agents. Every agent serves them on its own /metrics endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "caco"

var (
	// PlanningCycles counts completed planning cycles by result.
	PlanningCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planning_cycles_total",
			Help:      "Number of planning cycles by result",
		},
		[]string{"result"}, // "success", "error"
	)

	// PlanningDuration measures end-to-end planning cycle latency.
	PlanningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "planning_duration_seconds",
			Help:      "End-to-end latency of one planning cycle",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	// ScheduledJobs tracks how many jobs the last cycle placed.
	ScheduledJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_jobs",
			Help:      "Jobs placed by the most recent planning cycle",
		},
	)

	// FlexOffers tracks how many flex offers the last cycle derived.
	FlexOffers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flex_offers",
			Help:      "Flex offers derived by the most recent planning cycle",
		},
	)

	// GridCarbonIntensity reports the latest average forecast per region.
	GridCarbonIntensity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_carbon_intensity_g_per_kwh",
			Help:      "Mean forecast carbon intensity of the last fetched series",
		},
		[]string{"region"},
	)

	// GridFallbacks counts fallback substitutions by upstream source.
	GridFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_fallback_total",
			Help:      "Synthetic series substitutions by source",
		},
		[]string{"source"}, // "carbon", "price"
	)

	// LedgerJobs tracks the number of jobs held by the compute ledger.
	LedgerJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_jobs",
			Help:      "Jobs currently held by the compute ledger",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PlanningCycles,
		PlanningDuration,
		ScheduledJobs,
		FlexOffers,
		GridCarbonIntensity,
		GridFallbacks,
		LedgerJobs,
	)
}
