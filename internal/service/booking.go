package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"weekend-booking-bot/internal/metrics"
	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/repository"
	"weekend-booking-bot/internal/timerange"
)

// BookResult is the outcome of a successful Book.
type BookResult struct {
	Booking *model.Booking
	Game    *model.Game
	// QueueRank is the 1-based place in the waitlist, 0 when confirmed.
	QueueRank int
}

// Confirmed reports whether the new booking holds a slot.
func (r *BookResult) Confirmed() bool {
	return r.Booking.Status == model.BookingConfirmed
}

// CancelResult is the outcome of a successful Cancel or AdminRemove.
type CancelResult struct {
	Cancelled *model.Booking
	Game      *model.Game
	// WasConfirmed reports whether the cancelled booking held a slot.
	WasConfirmed bool
	// Promoted is the waitlisted booking that took the freed slot, if any.
	Promoted *model.Booking
}

// BookingService allocates positions within a session. Every mutating
// operation runs under the session's lock inside a single store
// transaction, so a session's bookings are never observed half-updated.
//
// Active bookings hold unique positions. Confirmed bookings occupy
// 1..confirmed with no gaps and waitlisted bookings sit above max_slots in
// FIFO order.
type BookingService struct {
	store       repository.Store
	locks       *lock.KeyLock
	metrics     *metrics.Metrics
	lockTimeout time.Duration
}

// NewBookingService creates a new BookingService instance.
func NewBookingService(store repository.Store, locks *lock.KeyLock, m *metrics.Metrics) *BookingService {
	return &BookingService{
		store:       store,
		locks:       locks,
		metrics:     m,
		lockTimeout: defaultLockTimeout,
	}
}

// withSession runs fn under the session lock in a transaction, after
// checking that the session exists and is open and bringing its bookings
// in line with the game's current slot count.
func (s *BookingService) withSession(
	ctx context.Context,
	sessionID int64,
	fn func(tx repository.Store, session *model.Session, game *model.Game) error,
) error {
	return s.locks.WithLockTimeout(ctx, sessionID, s.lockTimeout, func() error {
		return s.store.WithTx(ctx, func(tx repository.Store) error {
			session, err := tx.LockSession(ctx, sessionID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrSessionNotFound
				}
				return fmt.Errorf("failed to lock session: %w", err)
			}
			if !session.IsOpen() {
				return ErrSessionNotOpen
			}

			game, err := tx.GetGame(ctx, session.GameID)
			if err != nil {
				return fmt.Errorf("failed to get game: %w", err)
			}
			if _, err := rebalanceLocked(ctx, tx, game, sessionID); err != nil {
				return err
			}
			return fn(tx, session, game)
		})
	})
}

// logRejected logs expected outcomes at debug and failures at error.
func logRejected(ctx context.Context, op string, sessionID, userID int64, err error) {
	logger := log.Ctx(ctx)
	event := logger.Error()
	if isBusinessError(err) {
		event = logger.Debug()
	}
	event.Err(err).
		Str("op", op).
		Int64("session_id", sessionID).
		Int64("user_id", userID).
		Msg("Booking operation rejected")
}

// Book appends a booking for the user at the tail of the session. It is
// confirmed when its position fits within the game's slots and waitlisted
// otherwise.
func (s *BookingService) Book(
	ctx context.Context,
	sessionID, userID int64,
	username string,
	window timerange.Range,
) (*BookResult, error) {
	if !window.Valid() {
		return nil, ErrInvalidRange
	}

	var result *BookResult
	err := s.withSession(ctx, sessionID, func(tx repository.Store, session *model.Session, game *model.Game) error {
		_, err := tx.GetActiveBooking(ctx, sessionID, userID)
		if err == nil {
			return ErrDuplicateBooking
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check existing booking: %w", err)
		}

		active, err := tx.ListActiveBookings(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to list bookings: %w", err)
		}

		position := nextPosition(active)
		status := model.BookingWaitlist
		if position <= game.MaxSlots {
			status = model.BookingConfirmed
		}

		created, err := tx.InsertBooking(ctx, &model.Booking{
			SessionID: sessionID,
			UserID:    userID,
			Username:  username,
			TimeFrom:  window.From,
			TimeTo:    window.To,
			Position:  position,
			Status:    status,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateBooking
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}

		if err := tx.AddHistory(ctx, &model.HistoryEntry{
			UserID:   userID,
			Username: username,
			GameName: game.Name,
			Action:   model.ActionBooked,
		}); err != nil {
			return fmt.Errorf("failed to record booking: %w", err)
		}

		result = &BookResult{Booking: created, Game: game}
		if status == model.BookingWaitlist {
			result.QueueRank = queueRank(active, position)
		}
		return nil
	})
	if err != nil {
		logRejected(ctx, "book", sessionID, userID, err)
		return nil, err
	}

	s.metrics.Booked(result.Game.Name, result.Booking.Status)
	log.Ctx(ctx).Info().
		Int64("session_id", sessionID).
		Int64("user_id", userID).
		Str("game", result.Game.Name).
		Int("position", result.Booking.Position).
		Str("status", result.Booking.Status).
		Str("window", window.String()).
		Msg("Booking created")

	return result, nil
}

// Cancel cancels the user's active booking. When the booking was confirmed
// the earliest waitlisted booking takes over its position and the rest of
// the waitlist moves up by one. Cancelling a waitlisted booking leaves
// every other booking untouched.
func (s *BookingService) Cancel(ctx context.Context, sessionID, userID int64, username string) (*CancelResult, error) {
	var result *CancelResult
	err := s.withSession(ctx, sessionID, func(tx repository.Store, session *model.Session, game *model.Game) error {
		target, err := tx.GetActiveBooking(ctx, sessionID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoActiveBooking
			}
			return fmt.Errorf("failed to get booking: %w", err)
		}

		result, err = s.cancelLocked(ctx, tx, game, target, username)
		return err
	})
	if err != nil {
		logRejected(ctx, "cancel", sessionID, userID, err)
		return nil, err
	}

	s.logCancelled(ctx, result)
	return result, nil
}

// AdminRemove cancels the first active booking whose username matches,
// ignoring case and a leading "@". Promotion follows the same rules as
// Cancel.
func (s *BookingService) AdminRemove(ctx context.Context, sessionID int64, username string) (*CancelResult, error) {
	name := strings.TrimPrefix(strings.TrimSpace(username), "@")

	var result *CancelResult
	err := s.withSession(ctx, sessionID, func(tx repository.Store, session *model.Session, game *model.Game) error {
		active, err := tx.ListActiveBookings(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to list bookings: %w", err)
		}

		var target *model.Booking
		for _, b := range active {
			if name != "" && strings.EqualFold(b.Username, name) {
				target = b
				break
			}
		}
		if target == nil {
			return ErrBookingNotFound
		}

		result, err = s.cancelLocked(ctx, tx, game, target, target.Username)
		return err
	})
	if err != nil {
		logRejected(ctx, "admin_remove", sessionID, 0, err)
		return nil, err
	}

	s.logCancelled(ctx, result)
	return result, nil
}

// cancelLocked cancels target and rebalances the session. The caller holds
// the session lock and tx.
func (s *BookingService) cancelLocked(
	ctx context.Context,
	tx repository.Store,
	game *model.Game,
	target *model.Booking,
	username string,
) (*CancelResult, error) {
	active, err := tx.ListActiveBookings(ctx, target.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	wasConfirmed := target.Status == model.BookingConfirmed
	vacated := target.Position

	cancelled := *target
	cancelled.Status = model.BookingCancelled
	if err := tx.UpdateBooking(ctx, &cancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	if err := tx.AddHistory(ctx, &model.HistoryEntry{
		UserID:   target.UserID,
		Username: username,
		GameName: game.Name,
		Action:   model.ActionCancelled,
	}); err != nil {
		return nil, fmt.Errorf("failed to record cancellation: %w", err)
	}

	result := &CancelResult{Cancelled: &cancelled, Game: game, WasConfirmed: wasConfirmed}
	if !wasConfirmed {
		return result, nil
	}

	var waitlist, above []*model.Booking
	for _, b := range active {
		if b.ID == target.ID {
			continue
		}
		switch {
		case b.Status == model.BookingWaitlist:
			waitlist = append(waitlist, b)
		case b.Position > vacated:
			above = append(above, b)
		}
	}

	// Updates run in ascending target position so no two active bookings
	// ever share a position.
	if len(waitlist) > 0 {
		head := waitlist[0]
		head.Position = vacated
		head.Status = model.BookingConfirmed
		if err := tx.UpdateBooking(ctx, head); err != nil {
			return nil, fmt.Errorf("failed to promote booking: %w", err)
		}
		result.Promoted = head

		for i, b := range waitlist[1:] {
			position := game.MaxSlots + 1 + i
			if b.Position == position {
				continue
			}
			b.Position = position
			if err := tx.UpdateBooking(ctx, b); err != nil {
				return nil, fmt.Errorf("failed to resequence waitlist: %w", err)
			}
		}
		return result, nil
	}

	// No one to promote: close the gap among confirmed bookings so the
	// freed slot goes to the next booker.
	for _, b := range above {
		b.Position--
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return nil, fmt.Errorf("failed to compact bookings: %w", err)
		}
	}
	return result, nil
}

func (s *BookingService) logCancelled(ctx context.Context, result *CancelResult) {
	previous := model.BookingWaitlist
	if result.WasConfirmed {
		previous = model.BookingConfirmed
	}
	s.metrics.Cancelled(result.Game.Name, previous)

	event := log.Ctx(ctx).Info().
		Int64("session_id", result.Cancelled.SessionID).
		Int64("user_id", result.Cancelled.UserID).
		Str("game", result.Game.Name).
		Int("position", result.Cancelled.Position)
	if result.Promoted != nil {
		s.metrics.Promoted(result.Game.Name)
		event = event.Int64("promoted_user_id", result.Promoted.UserID)
	}
	event.Msg("Booking cancelled")
}

// Edit replaces the time range of the user's active booking. Position and
// status do not change and no history is recorded.
func (s *BookingService) Edit(
	ctx context.Context,
	sessionID, userID int64,
	window timerange.Range,
) (*model.Booking, error) {
	if !window.Valid() {
		return nil, ErrInvalidRange
	}

	var (
		edited   *model.Booking
		gameName string
	)
	err := s.withSession(ctx, sessionID, func(tx repository.Store, session *model.Session, game *model.Game) error {
		b, err := tx.GetActiveBooking(ctx, sessionID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoActiveBooking
			}
			return fmt.Errorf("failed to get booking: %w", err)
		}

		b.TimeFrom = window.From
		b.TimeTo = window.To
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("failed to edit booking: %w", err)
		}
		edited = b
		gameName = game.Name
		return nil
	})
	if err != nil {
		logRejected(ctx, "edit", sessionID, userID, err)
		return nil, err
	}

	s.metrics.Edited(gameName)
	log.Ctx(ctx).Info().
		Int64("session_id", sessionID).
		Int64("user_id", userID).
		Str("window", window.String()).
		Msg("Booking edited")

	return edited, nil
}

// nextPosition returns the tail position after the active bookings.
func nextPosition(active []*model.Booking) int {
	last := 0
	for _, b := range active {
		if b.Position > last {
			last = b.Position
		}
	}
	return last + 1
}

// queueRank returns the 1-based waitlist place of position among the
// waitlisted bookings in active.
func queueRank(active []*model.Booking, position int) int {
	rank := 1
	for _, b := range active {
		if b.Status == model.BookingWaitlist && b.Position < position {
			rank++
		}
	}
	return rank
}
