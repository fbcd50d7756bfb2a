package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"weekend-booking-bot/internal/metrics"
	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/repository/memstore"
	"weekend-booking-bot/internal/timerange"
)

const testChat int64 = -1001

var testWeek = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

// fataler is satisfied by *testing.T and *rapid.T.
type fataler interface {
	Fatalf(format string, args ...any)
}

type testEnv struct {
	store    *memstore.Store
	locks    *lock.KeyLock
	metrics  *metrics.Metrics
	sessions *SessionService
	bookings *BookingService
	stats    *StatsService
	game     *model.Game
	session  *model.Session
}

// newTestEnv builds services over a memstore with one open Saturday session
// of a game with maxSlots slots.
func newTestEnv(t fataler, maxSlots int) *testEnv {
	store := memstore.New()
	locks := lock.NewKeyLock()
	m := metrics.New(prometheus.NewRegistry())
	env := &testEnv{
		store:    store,
		locks:    locks,
		metrics:  m,
		sessions: NewSessionService(store, locks, m, time.UTC),
		bookings: NewBookingService(store, locks, m),
		stats:    NewStatsService(store),
	}

	ctx := context.Background()
	if err := env.sessions.SeedGames(ctx, []model.Game{{Name: "PUBG", MaxSlots: maxSlots}}); err != nil {
		t.Fatalf("seed games: %v", err)
	}
	game, err := env.sessions.Game(ctx, "PUBG")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	session, _, err := env.sessions.CreateIfAbsent(ctx, model.SessionKey{
		GameID: game.ID, ChatID: testChat, Day: model.Saturday, WeekStart: testWeek,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	env.game = game
	env.session = session
	return env
}

func rng(t fataler, s string) timerange.Range {
	r, err := timerange.ParseRange(s)
	if err != nil {
		t.Fatalf("parse range %q: %v", s, err)
	}
	return r
}

func (e *testEnv) book(t *testing.T, userID int64) *BookResult {
	t.Helper()
	res, err := e.bookings.Book(context.Background(), e.session.ID, userID, username(userID), rng(t, "18:00-22:00"))
	require.NoError(t, err)
	return res
}

func (e *testEnv) active(t *testing.T) []*model.Booking {
	t.Helper()
	bookings, err := e.store.ListActiveBookings(context.Background(), e.session.ID)
	require.NoError(t, err)
	return bookings
}

// positions maps user ID to "status@position" of the active bookings.
func (e *testEnv) positions(t *testing.T) map[int64]string {
	t.Helper()
	out := make(map[int64]string)
	for _, b := range e.active(t) {
		out[b.UserID] = fmt.Sprintf("%s@%d", b.Status, b.Position)
	}
	return out
}

func username(userID int64) string {
	return fmt.Sprintf("user%d", userID)
}
