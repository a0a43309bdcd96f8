package converter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConversionsTotal counts finished conversions.
	// Labels: result (success or a failure kind)
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "git2pdf",
			Name:      "conversions_total",
			Help:      "Total number of finished conversions by result",
		},
		[]string{"result"},
	)

	// ConversionDuration tracks end-to-end conversion time.
	ConversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "git2pdf",
			Name:      "conversion_duration_seconds",
			Help:      "Duration of conversions from admission to return",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	// ConversionsActive is the number of admitted conversions still running.
	ConversionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "git2pdf",
			Name:      "conversions_active",
			Help:      "Number of conversions currently running",
		},
	)

	// ArtifactSizeBytes tracks published artifact sizes.
	ArtifactSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "git2pdf",
			Name:      "artifact_size_bytes",
			Help:      "Size of published PDF artifacts",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7),
		},
	)

	// SkippedFilesTotal counts files left out of artifacts.
	// Labels: reason (size, type, unreadable)
	SkippedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "git2pdf",
			Name:      "skipped_files_total",
			Help:      "Total number of repository files not rendered, by reason",
		},
		[]string{"reason"},
	)
)
