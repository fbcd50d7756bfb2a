package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/repository"
)

// needsRebalance reports whether the active bookings disagree with the
// game's current slot count. That only happens after max_slots changed.
func needsRebalance(active []*model.Booking, maxSlots int) bool {
	confirmed, waitlisted := 0, 0
	for _, b := range active {
		switch b.Status {
		case model.BookingConfirmed:
			if b.Position > maxSlots {
				return true
			}
			confirmed++
		case model.BookingWaitlist:
			if b.Position <= maxSlots {
				return true
			}
			waitlisted++
		}
	}
	return waitlisted > 0 && confirmed < maxSlots
}

// rebalanceLocked renumbers the active bookings of a session 1..N in their
// current order and sets each status from its position against the game's
// slot count. The caller holds the session lock and tx. It reports whether
// anything changed.
func rebalanceLocked(ctx context.Context, tx repository.Store, game *model.Game, sessionID int64) (bool, error) {
	active, err := tx.ListActiveBookings(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to list bookings: %w", err)
	}
	if !needsRebalance(active, game.MaxSlots) {
		return false, nil
	}

	sort.Slice(active, func(i, j int) bool { return active[i].Position < active[j].Position })

	// New positions never exceed old ones, so ascending updates never land
	// on a position that is still held.
	for i, b := range active {
		position := i + 1
		status := model.BookingWaitlist
		if position <= game.MaxSlots {
			status = model.BookingConfirmed
		}
		if b.Position == position && b.Status == status {
			continue
		}
		b.Position = position
		b.Status = status
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return false, fmt.Errorf("failed to rebalance booking: %w", err)
		}
	}

	log.Ctx(ctx).Info().
		Int64("session_id", sessionID).
		Str("game", game.Name).
		Int("max_slots", game.MaxSlots).
		Int("bookings", len(active)).
		Msg("Session rebalanced to game capacity")
	return true, nil
}
