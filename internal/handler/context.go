package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/service"
	"weekend-booking-bot/internal/timerange"
)

// LoggerKey is the telebot context key under which the logging middleware
// stores the request logger.
const LoggerKey = "logger"

// requestContext returns a context carrying the request logger, or the
// global logger when the middleware did not run.
func requestContext(c tele.Context) context.Context {
	if logger, ok := c.Get(LoggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger.WithContext(context.Background())
	}
	return log.Logger.WithContext(context.Background())
}

// errorText maps a service error to the reply shown to the user. Unexpected
// errors are logged.
func errorText(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, timerange.ErrInvalidFormat):
		return "❌ Invalid time format. Use HH:MM-HH:MM, e.g. 18:00-22:00."
	case errors.Is(err, service.ErrInvalidRange):
		return "❌ End time must be after start time."
	case errors.Is(err, service.ErrDuplicateBooking):
		return "❌ You already have a booking for this day."
	case errors.Is(err, service.ErrNoActiveBooking):
		return "❌ You have no booking for this day."
	case errors.Is(err, service.ErrSessionNotOpen):
		return "🔒 Booking for this day is closed."
	case errors.Is(err, service.ErrSessionNotFound):
		return "❌ Booking is not open yet."
	case errors.Is(err, service.ErrBookingNotFound):
		return "❌ No booking found for that user."
	case errors.Is(err, service.ErrGameNotFound):
		return "❌ Game not found."
	case errors.Is(err, lock.ErrLockTimeout):
		return "⏳ Too busy right now, please try again."
	}

	log.Ctx(ctx).Error().Err(err).Msg("Request failed")
	return "❌ Something went wrong, please try again later."
}
