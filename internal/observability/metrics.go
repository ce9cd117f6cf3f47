// Package observability exposes the Prometheus metrics of the detection
// pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's instrumentation. Create one per process
// with New and share it.
type Metrics struct {
	CyclesTotal       *prometheus.CounterVec
	AlertsCreated     prometheus.Counter
	AlertsEscalated   prometheus.Counter
	DetectionsSkipped prometheus.Counter
	SensorsAnalyzed   prometheus.Gauge
	ActiveAlerts      prometheus.Gauge
	CycleDuration     prometheus.Histogram
}

// New creates and registers the metrics on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openlews",
			Name:      "detection_cycles_total",
			Help:      "Detection cycles by outcome status.",
		}, []string{"status"}),
		AlertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openlews",
			Name:      "alerts_created_total",
			Help:      "Alerts created by the detection pipeline.",
		}),
		AlertsEscalated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openlews",
			Name:      "alerts_escalated_total",
			Help:      "Escalations applied to active alerts.",
		}),
		DetectionsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openlews",
			Name:      "detections_skipped_total",
			Help:      "Detections dropped because assessment or persistence failed.",
		}),
		SensorsAnalyzed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "openlews",
			Name:      "sensors_analyzed",
			Help:      "Sensors with a reading in the last analysis window.",
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "openlews",
			Name:      "active_alerts",
			Help:      "Currently active alerts.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "openlews",
			Name:      "detection_cycle_duration_seconds",
			Help:      "Wall time of one detection cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.AlertsCreated,
		m.AlertsEscalated,
		m.DetectionsSkipped,
		m.SensorsAnalyzed,
		m.ActiveAlerts,
		m.CycleDuration,
	)
	return m
}

// NewUnregistered creates metrics without a registry, for tests
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
