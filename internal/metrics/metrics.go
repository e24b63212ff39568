package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the alarm pipeline.
type Metrics struct {
	registrations *prometheus.CounterVec
	cancellations prometheus.Counter
	deliveries    *prometheus.CounterVec
	dismissals    prometheus.Counter
	alertsActive  prometheus.Gauge
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNewMetrics registers the collectors with reg and panics on duplicate
// registration. Tests pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "remora",
				Subsystem: "alarm",
				Name:      "registrations_total",
				Help:      "Alarm registrations by scheduling mode.",
			},
			[]string{"mode"},
		),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "alarm",
			Name:      "cancellations_total",
			Help:      "Pending registrations removed before firing.",
		}),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "remora",
				Subsystem: "alarm",
				Name:      "deliveries_total",
				Help:      "Alarm deliveries by outcome.",
			},
			[]string{"outcome"},
		),
		dismissals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "alarm",
			Name:      "dismissals_total",
			Help:      "Alarms dismissed and completed by the user.",
		}),
		alertsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "remora",
			Subsystem: "alarm",
			Name:      "alerts_active",
			Help:      "1 while an alert is ringing.",
		}),
	}
	reg.MustRegister(m.registrations, m.cancellations, m.deliveries, m.dismissals, m.alertsActive)
	return m
}

func (m *Metrics) Registered(mode string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(mode).Inc()
}

func (m *Metrics) Cancelled() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *Metrics) Delivered(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Dismissed() {
	if m == nil {
		return
	}
	m.dismissals.Inc()
}

func (m *Metrics) AlertActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.alertsActive.Set(1)
	} else {
		m.alertsActive.Set(0)
	}
}
