package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemovedTotal counts entries deleted by sweeps.
	// Labels: kind (artifacts, operations)
	RemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "git2pdf",
			Subsystem: "sweep",
			Name:      "removed_total",
			Help:      "Total number of expired entries removed by retention sweeps",
		},
		[]string{"kind"},
	)

	// SkippedTotal counts sweeps abandoned because another sweep held the lock.
	// Labels: kind (artifacts, operations)
	SkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "git2pdf",
			Subsystem: "sweep",
			Name:      "skipped_total",
			Help:      "Total number of sweeps skipped because the directory lock was held",
		},
		[]string{"kind"},
	)

	// FailedTotal counts entries that could not be inspected or removed.
	FailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "git2pdf",
			Subsystem: "sweep",
			Name:      "failed_total",
			Help:      "Total number of entries a sweep failed to remove",
		},
		[]string{"kind"},
	)
)
