package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/service"
	"weekend-booking-bot/internal/timerange"
)

func (e *testEnv) views(t *testing.T) []*service.SessionView {
	t.Helper()
	ctx := context.Background()
	var views []*service.SessionView
	for _, s := range []*model.Session{e.sat, e.sun} {
		fresh, err := e.sessions.GetByID(ctx, s.ID)
		require.NoError(t, err)
		v, err := e.sessions.View(ctx, fresh)
		require.NoError(t, err)
		views = append(views, v)
	}
	return views
}

func TestRenderWeekly(t *testing.T) {
	env := newTestEnv(t, 2)
	env.book(t, env.sat, 1, "18:00-22:00")
	env.book(t, env.sat, 2, "19:00-23:00")
	env.book(t, env.sat, 3, "20:00-00:00")

	text := RenderWeekly(env.views(t))

	assert.Contains(t, text, "🎮 PUBG, weekend of 03.06")
	assert.Contains(t, text, "📅 Saturday, 08.06 (🟢 open)")
	assert.Contains(t, text, "✅ Slots (2/2):\n1. @user1 (18:00-22:00)\n2. @user2 (19:00-23:00)")
	assert.Contains(t, text, "⏳ Waitlist:\n3. @user3 (20:00-00:00)")
	assert.Contains(t, text, "⏰ Best time: 19:00-22:00 (everyone can)")
	assert.Contains(t, text, "📅 Sunday, 09.06 (🟢 open)\n✅ Slots (0/2):\n— no bookings yet")
	assert.Equal(t, 1, strings.Count(text, "Best time"), "days without confirmed players show no window")
}

func TestRenderWeekly_NoCommonTime(t *testing.T) {
	env := newTestEnv(t, 4)
	env.book(t, env.sun, 1, "10:00-12:00")
	env.book(t, env.sun, 2, "14:00-16:00")

	text := RenderWeekly(env.views(t))
	assert.Contains(t, text, "⚠️ No common time for all players")
}

func TestRenderWeekly_Closed(t *testing.T) {
	env := newTestEnv(t, 4)
	require.NoError(t, env.sessions.Close(context.Background(), env.sat.ID))

	text := RenderWeekly(env.views(t))
	assert.Contains(t, text, "📅 Saturday, 08.06 (🔴 closed)")
	assert.Empty(t, RenderWeekly(nil))
}

func TestRenderBookResult(t *testing.T) {
	game := &model.Game{Name: "PUBG", MaxSlots: 4}
	window := timerange.Range{From: timerange.New(18, 0), To: timerange.New(22, 0)}

	confirmed := &service.BookResult{
		Game:    game,
		Booking: &model.Booking{Position: 2, Status: model.BookingConfirmed, TimeFrom: window.From, TimeTo: window.To},
	}
	assert.Equal(t, "✅ You're in! Slot 2/4 for PUBG on Saturday (18:00-22:00).",
		RenderBookResult(confirmed, model.Saturday))

	waiting := &service.BookResult{
		Game:      game,
		Booking:   &model.Booking{Position: 6, Status: model.BookingWaitlist},
		QueueRank: 2,
	}
	assert.Equal(t, "⏳ All slots are taken. You're #2 on the waitlist for PUBG on Sunday.",
		RenderBookResult(waiting, model.Sunday))
}

func TestRenderUserStats(t *testing.T) {
	stats := service.AggregateUser([]*model.HistoryEntry{
		{Username: "alice", GameName: "PUBG", Action: model.ActionBooked},
		{Username: "alice", GameName: "PUBG", Action: model.ActionPlayed},
		{Username: "alice", GameName: "CS", Action: model.ActionBooked},
		{Username: "alice", GameName: "CS", Action: model.ActionCancelled},
	})

	text := RenderUserStats("alice", stats)
	assert.Contains(t, text, "📝 Booked: 2")
	assert.Contains(t, text, "🎮 Played: 1")
	assert.Contains(t, text, "❌ Cancelled: 1")
	assert.Contains(t, text, "🎯 Reliability: 50%")
	assert.Contains(t, text, "PUBG: 1 booked, 1 played, 0 cancelled\nCS: 1 booked, 0 played, 1 cancelled")

	empty := service.AggregateUser(nil)
	assert.Equal(t, "📊 bob has no booking history yet.", RenderUserStats("bob", empty))
}

func TestRenderLeaderboard(t *testing.T) {
	var players []*model.PlayerStats
	for i := 1; i <= 12; i++ {
		players = append(players, &model.PlayerStats{
			UserID:    int64(i),
			Username:  fmt.Sprintf("p%d", i),
			Played:    20 - i,
			Cancelled: i % 3,
		})
	}

	text := RenderLeaderboard(players)
	assert.Contains(t, text, "🥇 p1: 19 played")
	assert.Contains(t, text, "🥉 p3: 17 played")
	assert.Contains(t, text, "10. p10: 10 played")
	assert.NotContains(t, text, "p11: 9 played")
	assert.Contains(t, text, "🐔 Top cancellers\n1. p2: 2 cancelled\n2. p5: 2 cancelled\n3. p8: 2 cancelled")

	quiet := RenderLeaderboard([]*model.PlayerStats{{Username: "solo", Played: 1}})
	assert.NotContains(t, quiet, "cancellers")
	assert.Contains(t, RenderLeaderboard(nil), "No games played yet")
}

func TestRenderReminder(t *testing.T) {
	env := newTestEnv(t, 2)
	env.book(t, env.sat, 1, "18:00-22:00")
	env.book(t, env.sat, 2, "18:00-22:00")
	env.book(t, env.sat, 3, "18:00-22:00")

	text := RenderReminder(env.views(t)[0], "18:00")
	assert.Contains(t, text, "PUBG on Saturday starts at 18:00")
	assert.Contains(t, text, "@user1 @user2")
	assert.NotContains(t, text, "@user3", "waitlisted players are not reminded")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "alice", displayName(&tele.User{ID: 1, Username: "alice", FirstName: "Alice"}))
	assert.Equal(t, "Alice", displayName(&tele.User{ID: 1, FirstName: "Alice"}))
	assert.Equal(t, "User5", displayName(&tele.User{ID: 5}))
}

func TestErrorText(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		err  error
		want string
	}{
		{service.ErrDuplicateBooking, "❌ You already have a booking for this day."},
		{fmt.Errorf("wrapped: %w", service.ErrSessionNotOpen), "🔒 Booking for this day is closed."},
		{fmt.Errorf("%w: %q", timerange.ErrInvalidFormat, "25:00"), "❌ Invalid time format. Use HH:MM-HH:MM, e.g. 18:00-22:00."},
		{lock.ErrLockTimeout, "⏳ Too busy right now, please try again."},
		{errors.New("connection reset"), "❌ Something went wrong, please try again later."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorText(ctx, tt.err))
	}
}
