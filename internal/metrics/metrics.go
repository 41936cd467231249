// Package metrics exposes Prometheus collectors for the detection engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DetectionsTotal counts completed detections by outcome ("ok", "error").
	DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hound_detections_total",
			Help: "Total number of detection runs.",
		},
		[]string{"outcome"},
	)

	// AnalyzerFailuresTotal counts analyzer failures by agent and reason.
	AnalyzerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hound_analyzer_failures_total",
			Help: "Total number of analyzer failures.",
		},
		[]string{"agent", "reason"},
	)

	// DetectionDuration observes end-to-end detection latency.
	DetectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hound_detection_duration_seconds",
			Help:    "Detection duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// VerdictSeverity observes the severity distribution of verdicts.
	VerdictSeverity = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hound_verdict_severity",
			Help:    "Severity of synthesized verdicts (0-10).",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)
)

func init() {
	prometheus.MustRegister(DetectionsTotal)
	prometheus.MustRegister(AnalyzerFailuresTotal)
	prometheus.MustRegister(DetectionDuration)
	prometheus.MustRegister(VerdictSeverity)
}
