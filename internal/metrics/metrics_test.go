package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Booked("PUBG", "confirmed")
	m.Booked("PUBG", "confirmed")
	m.Booked("PUBG", "waitlist")
	m.Cancelled("CS", "confirmed")
	m.Promoted("CS")
	m.Edited("PUBG")
	m.SessionOpened()
	m.SessionClosed()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Bookings.WithLabelValues("PUBG", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Bookings.WithLabelValues("PUBG", "waitlist")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cancellations.WithLabelValues("CS", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Promotions.WithLabelValues("CS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Edits.WithLabelValues("PUBG")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsOpened))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsClosed))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Booked("PUBG", "confirmed")
		m.Cancelled("PUBG", "confirmed")
		m.Promoted("PUBG")
		m.Edited("PUBG")
		m.SessionOpened()
		m.SessionClosed()
	})
}
