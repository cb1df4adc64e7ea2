// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of pipeline stage execution in seconds",
		},
		[]string{"stage"},
	)

	PipelineStageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Total number of pipeline stage failures",
		},
		[]string{"stage", "error_code"},
	)

	PagesScraped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pages_scraped_total",
			Help: "Total number of pages fetched, by outcome",
		},
		[]string{"outcome"},
	)

	SessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_completed_total",
			Help: "Total number of sessions reaching a terminal state",
		},
		[]string{"status"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of sessions currently processing",
		},
	)

	EvidenceBankSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidence_bank_entries",
			Help:    "Evidence bank entry counts per completed run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)
