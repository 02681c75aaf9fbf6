// Package metrics registers the Prometheus instruments exported on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TapEvents counts tap events by direction ("in" or "out").
	TapEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hums_tap_events_total",
		Help: "Tap events received, by direction.",
	}, []string{"direction"})

	// RegenerationRuns counts completed occurrence regeneration runs.
	RegenerationRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hums_regeneration_runs_total",
		Help: "Completed occurrence regeneration runs.",
	})

	// OccurrencesInserted counts occurrences created by regeneration.
	OccurrencesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hums_occurrences_inserted_total",
		Help: "Shift occurrences inserted by regeneration.",
	})

	// OccurrencesDeleted counts occurrences removed by regeneration.
	OccurrencesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hums_occurrences_deleted_total",
		Help: "Shift occurrences deleted by regeneration.",
	})

	// AssignmentsCreated counts slot assignments written by the balancer.
	AssignmentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hums_assignments_created_total",
		Help: "Slot assignments created by the balancer.",
	})

	// AbsencesMarked counts attendance records created by the absence sweep.
	AbsencesMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hums_absences_marked_total",
		Help: "Attendance records marked absent by the sweep.",
	})

	regenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hums_regeneration_duration_seconds",
		Help:    "Wall time of occurrence regeneration runs.",
		Buckets: prometheus.DefBuckets,
	})
)

// RegenerationTimer times one regeneration run.
func RegenerationTimer() *prometheus.Timer {
	return prometheus.NewTimer(regenerationDuration)
}
