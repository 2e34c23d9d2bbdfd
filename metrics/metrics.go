// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts pipeline requests by endpoint and outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriptqa_requests_total",
		Help: "Pipeline requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// StageDuration observes wall time per pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcriptqa_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	// TempFilesCreated counts owned audio assets written to disk.
	TempFilesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriptqa_temp_files_created_total",
		Help: "Owned temporary audio files created.",
	})

	// TempFilesRemoved counts owned audio assets deleted after use.
	TempFilesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriptqa_temp_files_removed_total",
		Help: "Owned temporary audio files removed.",
	})

	// ChunksIndexed observes how many chunks each request indexed.
	ChunksIndexed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriptqa_chunks_indexed",
		Help:    "Chunks embedded and indexed per request.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// RecordOutcome increments the request counter for an endpoint.
func RecordOutcome(endpoint string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}
