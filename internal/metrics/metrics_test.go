package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.Registered("exact")
	m.Registered("exact")
	m.Registered("inexact")
	m.Cancelled()
	m.Delivered("presented")
	m.Dismissed()
	m.AlertActive(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations.WithLabelValues("exact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("inexact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("presented")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dismissals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsActive))

	m.AlertActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.alertsActive))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Registered("exact")
		m.Cancelled()
		m.Delivered("dropped")
		m.Dismissed()
		m.AlertActive(true)
	})
}

func TestMustNewMetrics_DuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNewMetrics(reg)
	assert.Panics(t, func() { MustNewMetrics(reg) })
}
