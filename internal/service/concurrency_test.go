package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekend-booking-bot/internal/model"
)

func TestBookAndCancel_ConcurrentOnOneSession(t *testing.T) {
	const (
		maxSlots = 3
		users    = 12
		rounds   = 5
	)
	env := newTestEnv(t, maxSlots)
	ctx := context.Background()
	window := rng(t, "18:00-22:00")

	var wg sync.WaitGroup
	errs := make(chan error, users*rounds*2)
	for u := int64(1); u <= users; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				_, err := env.bookings.Book(ctx, env.session.ID, userID, username(userID), window)
				if err != nil {
					errs <- err
				}
				// Odd users keep their last booking.
				if userID%2 == 1 && r == rounds-1 {
					continue
				}
				if _, err := env.bookings.Cancel(ctx, env.session.ID, userID, username(userID)); err != nil {
					errs <- err
				}
			}
		}(u)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	active := env.active(t)
	assert.Len(t, active, users/2)

	// Booking IDs grow in insertion order, which is the waitlist order.
	bookedAt := make(map[int64]int)
	for _, b := range active {
		bookedAt[b.ID] = int(b.ID)
	}
	checkInvariants(t, active, maxSlots, bookedAt, false)
}

func TestBook_SessionsLockIndependently(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	sunday, _, err := env.sessions.CreateIfAbsent(ctx, model.SessionKey{
		GameID: env.game.ID, ChatID: testChat, Day: model.Sunday, WeekStart: testWeek,
	})
	require.NoError(t, err)

	env.locks.Lock(env.session.ID)

	otherCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	res, err := env.bookings.Book(otherCtx, sunday.ID, 1, "user1", rng(t, "18:00-22:00"))
	require.NoError(t, err, "a held Saturday lock must not block Sunday")
	assert.True(t, res.Confirmed())

	window := rng(t, "18:00-22:00")
	done := make(chan error, 1)
	go func() {
		_, err := env.bookings.Book(ctx, env.session.ID, 2, "user2", window)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("book finished while the session was locked: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, env.active(t), "nothing is written while the lock is held")

	env.locks.Unlock(env.session.ID)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("book did not resume after the lock was released")
	}
	assert.Equal(t, map[int64]string{2: "confirmed@1"}, env.positions(t))
}

func TestBook_LockedSessionHonorsContext(t *testing.T) {
	env := newTestEnv(t, 4)
	env.locks.Lock(env.session.ID)
	defer env.locks.Unlock(env.session.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := env.bookings.Book(ctx, env.session.ID, 1, "user1", rng(t, "18:00-22:00"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
