package deadline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the deadline engine.
type Metrics struct {
	ChecksTotal          *prometheus.CounterVec
	CheckDuration        prometheus.Histogram
	EntitiesEvaluated    prometheus.Histogram
	FindingsTotal        *prometheus.CounterVec
	AlertsCreatedTotal   *prometheus.CounterVec
	AlertsEscalatedTotal *prometheus.CounterVec
	NotifyTotal          *prometheus.CounterVec
	UnresolvedAlerts     *prometheus.GaugeVec
}

// NewMetrics registers and returns deadline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plazos_checks_total",
			Help: "Total reconciliation passes by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plazos_check_duration_seconds",
			Help:    "Duration of reconciliation passes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~40s
		}),
		EntitiesEvaluated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plazos_check_entities_evaluated",
			Help:    "Entities evaluated per reconciliation pass.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 .. ~16k
		}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plazos_findings_total",
			Help: "Total deadline findings by kind and severity.",
		}, []string{"kind", "severity"}),
		AlertsCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plazos_alerts_created_total",
			Help: "Total alerts created by kind.",
		}, []string{"kind"}),
		AlertsEscalatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plazos_alerts_escalated_total",
			Help: "Total in-place severity escalations by kind.",
		}, []string{"kind"}),
		NotifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plazos_notify_total",
			Help: "Total notification attempts by result.",
		}, []string{"result"}),
		UnresolvedAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plazos_unresolved_alerts",
			Help: "Unresolved alerts by severity, refreshed after each pass.",
		}, []string{"severity"}),
	}

	reg.MustRegister(
		m.ChecksTotal,
		m.CheckDuration,
		m.EntitiesEvaluated,
		m.FindingsTotal,
		m.AlertsCreatedTotal,
		m.AlertsEscalatedTotal,
		m.NotifyTotal,
		m.UnresolvedAlerts,
	)

	return m
}
