package service

import (
	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/timerange"
)

// Outcome classifies the result of resolving a session's play window.
type Outcome int

const (
	// Feasible means every confirmed player is available in Window.
	Feasible Outcome = iota
	// NoConfirmed means the session has no confirmed bookings yet.
	NoConfirmed
	// Infeasible means the confirmed players share no common time.
	Infeasible
)

// Resolution is the optimal play window of a session.
type Resolution struct {
	Outcome Outcome
	Window  timerange.Range
}

// Resolve computes the common window of the confirmed bookings. Waitlisted
// and cancelled bookings are ignored.
func Resolve(bookings []*model.Booking) Resolution {
	var ranges []timerange.Range
	for _, b := range bookings {
		if b.Status == model.BookingConfirmed {
			ranges = append(ranges, b.Range())
		}
	}
	if len(ranges) == 0 {
		return Resolution{Outcome: NoConfirmed}
	}

	window, ok := timerange.IntersectAll(ranges)
	if !ok {
		return Resolution{Outcome: Infeasible}
	}
	return Resolution{Outcome: Feasible, Window: window}
}
