package limits

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the admission controller.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	checks         *prometheus.CounterVec
	denials        *prometheus.CounterVec
	activeSessions prometheus.Gauge
	buckets        prometheus.Gauge
	windows        prometheus.Gauge
	cleanupRemoved prometheus.Counter
	reloads        prometheus.Counter
	journalDropped prometheus.Counter
	checkDuration  prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_limits_checks_total",
				Help: "Total number of admission checks performed",
			},
			[]string{"result"},
		),

		denials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_limits_denials_total",
				Help: "Total number of denied requests by limiting dimension",
			},
			[]string{"dimension"},
		),

		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_limits_active_sessions",
				Help: "Number of tracked sessions",
			},
		),

		buckets: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_limits_token_buckets",
				Help: "Number of live token buckets",
			},
		),

		windows: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_limits_sliding_windows",
				Help: "Number of live sliding windows",
			},
		),

		cleanupRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolgate_limits_sessions_expired_total",
				Help: "Total number of sessions removed by cleanup",
			},
		),

		reloads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolgate_limits_reloads_total",
				Help: "Total number of limits table reloads",
			},
		),

		journalDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolgate_limits_journal_dropped_total",
				Help: "Total number of violations dropped because the journal queue was full",
			},
		),

		checkDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toolgate_limits_check_duration_seconds",
				Help:    "Duration of admission checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
	}
}

// RecordCheck records the outcome and latency of one admission check.
func (m *Metrics) RecordCheck(d *Decision, duration time.Duration) {
	if m == nil {
		return
	}
	result := "allowed"
	if !d.Allowed {
		result = "denied"
		m.denials.WithLabelValues(string(d.Info.DeniedBy)).Inc()
	}
	m.checks.WithLabelValues(result).Inc()
	m.checkDuration.Observe(duration.Seconds())
}

// RecordCleanup records sessions removed by a cleanup sweep.
func (m *Metrics) RecordCleanup(removed int) {
	if m == nil {
		return
	}
	m.cleanupRemoved.Add(float64(removed))
}

// RecordReload records a limits table reload.
func (m *Metrics) RecordReload() {
	if m == nil {
		return
	}
	m.reloads.Inc()
}

// RecordJournalDrop records a violation dropped before reaching the journal.
func (m *Metrics) RecordJournalDrop() {
	if m == nil {
		return
	}
	m.journalDropped.Inc()
}

// UpdateState sets the gauges for tracked state. Callers hold the Manager's
// mutex.
func (m *Metrics) UpdateState(sessions, buckets, windows int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(sessions))
	m.buckets.Set(float64(buckets))
	m.windows.Set(float64(windows))
}
