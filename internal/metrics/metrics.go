// Package metrics публикует счетчики бота для Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tempo_bot"

var (
	milestonesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "milestones_total",
		Help:      "Number of milestone crossings claimed by the scheduler.",
	}, []string{"check"})

	attendanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attendance",
		Name:      "grants_total",
		Help:      "Attendance grant attempts by outcome.",
	}, []string{"result"})

	notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "notifications_total",
		Help:      "Notifications by kind and delivery outcome.",
	}, []string{"kind", "result"})

	persistFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "persist_failures_total",
		Help:      "Failed attempts to persist a collection.",
	}, []string{"collection"})

	cycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of scheduler milestone scans.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"check"})

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "active_sessions",
		Help:      "Users with a running session.",
	})

	activationsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "prereg",
		Name:      "activations_total",
		Help:      "Preregistrations turned into running sessions.",
	})
)

func init() {
	prometheus.MustRegister(
		milestonesCounter,
		attendanceCounter,
		notificationCounter,
		persistFailures,
		cycleDuration,
		activeSessions,
		activationsCounter,
	)
}

// Handler отдает метрики в формате Prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordMilestone(check string) {
	milestonesCounter.WithLabelValues(check).Inc()
}

// RecordAttendance: result - granted, capped, ineligible, no_recipient или error
func RecordAttendance(result string) {
	attendanceCounter.WithLabelValues(result).Inc()
}

// RecordNotification: result - delivered, emergency, failed или dropped
func RecordNotification(kind, result string) {
	notificationCounter.WithLabelValues(kind, result).Inc()
}

func RecordPersistFailure(collection string) {
	persistFailures.WithLabelValues(collection).Inc()
}

func ObserveCycle(check string, d time.Duration) {
	cycleDuration.WithLabelValues(check).Observe(d.Seconds())
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func RecordActivations(n int) {
	activationsCounter.Add(float64(n))
}
