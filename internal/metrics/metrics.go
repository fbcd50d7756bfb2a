// Package metrics exposes Prometheus counters for booking activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "booking"

// Metrics holds the booking counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Bookings       *prometheus.CounterVec
	Cancellations  *prometheus.CounterVec
	Promotions     *prometheus.CounterVec
	Edits          *prometheus.CounterVec
	SessionsOpened prometheus.Counter
	SessionsClosed prometheus.Counter
}

// New registers the booking counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Bookings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Bookings created, by game and initial status.",
		}, []string{"game", "status"}),
		Cancellations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Bookings cancelled, by game and status at cancellation.",
		}, []string{"game", "status"}),
		Promotions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_total",
			Help:      "Waitlisted bookings promoted to confirmed.",
		}, []string{"game"}),
		Edits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_total",
			Help:      "Booking time range edits.",
		}, []string{"game"}),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Sessions created.",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Sessions closed.",
		}),
	}
}

func (m *Metrics) Booked(game, status string) {
	if m != nil {
		m.Bookings.WithLabelValues(game, status).Inc()
	}
}

func (m *Metrics) Cancelled(game, status string) {
	if m != nil {
		m.Cancellations.WithLabelValues(game, status).Inc()
	}
}

func (m *Metrics) Promoted(game string) {
	if m != nil {
		m.Promotions.WithLabelValues(game).Inc()
	}
}

func (m *Metrics) Edited(game string) {
	if m != nil {
		m.Edits.WithLabelValues(game).Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.SessionsOpened.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.SessionsClosed.Inc()
	}
}
