package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"weekend-booking-bot/internal/model"
)

// Property 1: for any sequence of book and cancel operations the active
// bookings of a session keep their allocation invariants:
//   - positions are unique and each user holds at most one booking;
//   - confirmed bookings occupy exactly 1..c with c <= max_slots;
//   - waitlisted bookings sit above max_slots and only exist when every slot
//     is taken;
//   - waitlist order matches booking order;
//   - without waitlist cancellations positions are dense 1..N.
func TestAllocationInvariantsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxSlots := rapid.IntRange(1, 5).Draw(t, "maxSlots")
		env := newTestEnv(t, maxSlots)
		ctx := context.Background()

		numOps := rapid.IntRange(1, 60).Draw(t, "numOps")
		bookedAt := make(map[int64]int) // booking ID -> op index
		waitlistCancelled := false

		for i := 0; i < numOps; i++ {
			userID := rapid.Int64Range(1, 10).Draw(t, "userID")
			if rapid.Bool().Draw(t, "book") {
				res, err := env.bookings.Book(ctx, env.session.ID, userID, username(userID), rng(t, "18:00-22:00"))
				if err == nil {
					bookedAt[res.Booking.ID] = i
				} else if !errors.Is(err, ErrDuplicateBooking) {
					t.Fatalf("book: unexpected error %v", err)
				}
			} else {
				res, err := env.bookings.Cancel(ctx, env.session.ID, userID, username(userID))
				if err == nil {
					if !res.WasConfirmed {
						waitlistCancelled = true
					}
				} else if !errors.Is(err, ErrNoActiveBooking) {
					t.Fatalf("cancel: unexpected error %v", err)
				}
			}

			active, err := env.store.ListActiveBookings(ctx, env.session.ID)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			checkInvariants(t, active, maxSlots, bookedAt, !waitlistCancelled)
		}
	})
}

func checkInvariants(t fataler, active []*model.Booking, maxSlots int, bookedAt map[int64]int, dense bool) {
	users := make(map[int64]bool)
	positions := make(map[int]bool)
	var confirmed, waitlist []*model.Booking

	for _, b := range active {
		if users[b.UserID] {
			t.Fatalf("user %d holds two active bookings", b.UserID)
		}
		users[b.UserID] = true
		if positions[b.Position] {
			t.Fatalf("position %d is held twice", b.Position)
		}
		positions[b.Position] = true

		switch b.Status {
		case model.BookingConfirmed:
			if b.Position > maxSlots {
				t.Fatalf("confirmed booking at position %d > %d", b.Position, maxSlots)
			}
			confirmed = append(confirmed, b)
		case model.BookingWaitlist:
			if b.Position <= maxSlots {
				t.Fatalf("waitlisted booking at position %d <= %d", b.Position, maxSlots)
			}
			waitlist = append(waitlist, b)
		default:
			t.Fatalf("unexpected active status %q", b.Status)
		}
	}

	for i := 1; i <= len(confirmed); i++ {
		if !positions[i] {
			t.Fatalf("confirmed positions have a gap at %d", i)
		}
	}
	if len(waitlist) > 0 && len(confirmed) != maxSlots {
		t.Fatalf("%d waitlisted with only %d of %d slots taken", len(waitlist), len(confirmed), maxSlots)
	}

	sort.Slice(waitlist, func(i, j int) bool { return waitlist[i].Position < waitlist[j].Position })
	for i := 1; i < len(waitlist); i++ {
		if bookedAt[waitlist[i-1].ID] > bookedAt[waitlist[i].ID] {
			t.Fatalf("waitlist out of booking order at position %d", waitlist[i].Position)
		}
	}

	if dense {
		for i := 1; i <= len(active); i++ {
			if !positions[i] {
				t.Fatalf("positions not dense: missing %d of %d", i, len(active))
			}
		}
	}
}

// Property 2: cancelling a waitlisted booking leaves every other booking's
// position and status unchanged.
func TestWaitlistCancelIsolationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxSlots := rapid.IntRange(1, 4).Draw(t, "maxSlots")
		extra := rapid.IntRange(1, 5).Draw(t, "extra")
		env := newTestEnv(t, maxSlots)
		ctx := context.Background()

		total := maxSlots + extra
		for u := 1; u <= total; u++ {
			if _, err := env.bookings.Book(ctx, env.session.ID, int64(u), username(int64(u)), rng(t, "18:00-22:00")); err != nil {
				t.Fatalf("book: %v", err)
			}
		}

		victim := int64(rapid.IntRange(maxSlots+1, total).Draw(t, "victim"))
		before, _ := env.store.ListActiveBookings(ctx, env.session.ID)

		if _, err := env.bookings.Cancel(ctx, env.session.ID, victim, username(victim)); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		after, _ := env.store.ListActiveBookings(ctx, env.session.ID)
		if len(after) != len(before)-1 {
			t.Fatalf("expected %d active bookings, got %d", len(before)-1, len(after))
		}
		prev := make(map[int64]*model.Booking)
		for _, b := range before {
			prev[b.ID] = b
		}
		for _, b := range after {
			p := prev[b.ID]
			if p.Position != b.Position || p.Status != b.Status {
				t.Fatalf("booking of user %d changed from %s@%d to %s@%d",
					b.UserID, p.Status, p.Position, b.Status, b.Position)
			}
		}
	})
}

// Property 3: cancelling a confirmed booking with a non-empty waitlist
// promotes the earliest waitlisted user into the vacated position and shifts
// the rest of the waitlist down by one in order.
func TestPromotionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxSlots := rapid.IntRange(1, 4).Draw(t, "maxSlots")
		extra := rapid.IntRange(1, 5).Draw(t, "extra")
		env := newTestEnv(t, maxSlots)
		ctx := context.Background()

		total := maxSlots + extra
		for u := 1; u <= total; u++ {
			if _, err := env.bookings.Book(ctx, env.session.ID, int64(u), username(int64(u)), rng(t, "18:00-22:00")); err != nil {
				t.Fatalf("book: %v", err)
			}
		}

		victim := rapid.IntRange(1, maxSlots).Draw(t, "victim")
		res, err := env.bookings.Cancel(ctx, env.session.ID, int64(victim), username(int64(victim)))
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if res.Promoted == nil || res.Promoted.UserID != int64(maxSlots+1) {
			t.Fatalf("expected user %d to be promoted, got %+v", maxSlots+1, res.Promoted)
		}

		after, _ := env.store.ListActiveBookings(ctx, env.session.ID)
		got := make(map[int64]*model.Booking)
		for _, b := range after {
			got[b.UserID] = b
		}
		if p := got[int64(maxSlots+1)]; p.Position != victim || p.Status != model.BookingConfirmed {
			t.Fatalf("promoted booking at %s@%d, want confirmed@%d", p.Status, p.Position, victim)
		}
		for u := maxSlots + 2; u <= total; u++ {
			if got[int64(u)].Position != u-1 {
				t.Fatalf("user %d at position %d, want %d", u, got[int64(u)].Position, u-1)
			}
		}
	})
}
