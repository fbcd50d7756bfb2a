// Package service provides business logic implementations.
package service

import "errors"

// Business outcomes returned by the booking services. None of them are
// fatal; the presentation layer maps each one to a reply.
var (
	ErrInvalidRange     = errors.New("end time must be after start time")
	ErrDuplicateBooking = errors.New("user already has an active booking in this session")
	ErrNoActiveBooking  = errors.New("user has no active booking in this session")
	ErrSessionNotOpen   = errors.New("session is not open")
	ErrSessionNotFound  = errors.New("session not found")
	ErrBookingNotFound  = errors.New("no matching booking")
	ErrGameNotFound     = errors.New("game not found")
)

// isBusinessError reports whether err is an expected outcome rather than a
// storage failure.
func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrInvalidRange,
		ErrDuplicateBooking,
		ErrNoActiveBooking,
		ErrSessionNotOpen,
		ErrSessionNotFound,
		ErrBookingNotFound,
		ErrGameNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
