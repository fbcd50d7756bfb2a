package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"weekend-booking-bot/internal/model"
)

func TestDecodeCallback(t *testing.T) {
	action, params := DecodeCallback(EncodeCallback(actionTo, int64(42), int64(7), 18, 0))
	assert.Equal(t, actionTo, action)
	assert.Equal(t, []string{"42", "7", "18", "0"}, params)

	action, params = DecodeCallback("\f" + EncodeCallback(actionRefresh, int64(3)))
	assert.Equal(t, actionRefresh, action)
	assert.Equal(t, []string{"3"}, params)

	action, params = DecodeCallback("sicbo_big")
	assert.Empty(t, action)
	assert.Nil(t, params)
}

// Property 1: every encoded callback decodes back to its action and
// parameters and fits Telegram's 64 byte limit.
func TestCallbackRoundTripProperty(t *testing.T) {
	actions := []string{actionDay, actionFrom, actionTo, actionEFrom, actionETo, actionYes}

	rapid.Check(t, func(t *rapid.T) {
		action := rapid.SampledFrom(actions).Draw(t, "action")
		userID := rapid.Int64Range(1, 9_999_999_999).Draw(t, "userID")
		sessionID := rapid.Int64Range(1, 999_999_999).Draw(t, "sessionID")
		from := rapid.IntRange(0, 23).Draw(t, "from")
		to := rapid.IntRange(0, 23).Draw(t, "to")

		data := EncodeCallback(action, userID, sessionID, from, to)
		if len(data) > 64 {
			t.Fatalf("callback data %q is %d bytes", data, len(data))
		}

		gotAction, params := DecodeCallback(data)
		if gotAction != action {
			t.Fatalf("action: expected %q, got %q", action, gotAction)
		}
		gotUser, ok := intParam(params, 0)
		if !ok || gotUser != userID {
			t.Fatalf("user: expected %d, got %d", userID, gotUser)
		}
		gotSession, ok := intParam(params, 1)
		if !ok || gotSession != sessionID {
			t.Fatalf("session: expected %d, got %d", sessionID, gotSession)
		}
		gotFrom, ok := hourParam(params, 2)
		if !ok || gotFrom != from {
			t.Fatalf("from: expected %d, got %d", from, gotFrom)
		}
		gotTo, ok := hourParam(params, 3)
		if !ok || gotTo != to {
			t.Fatalf("to: expected %d, got %d", to, gotTo)
		}
	})
}

func TestHourParam(t *testing.T) {
	_, ok := hourParam([]string{"24"}, 0)
	assert.False(t, ok)
	_, ok = hourParam([]string{"x"}, 0)
	assert.False(t, ok)
	_, ok = hourParam(nil, 0)
	assert.False(t, ok)
	h, ok := hourParam([]string{"0"}, 0)
	assert.True(t, ok)
	assert.Equal(t, 0, h)
}

func TestEndHours(t *testing.T) {
	assert.Equal(t, []int{23, 0}, endHours(22))

	hours := endHours(10)
	assert.Len(t, hours, 14)
	assert.Equal(t, 11, hours[0])
	assert.Equal(t, 0, hours[len(hours)-1], "midnight closes the list")
}

func TestStartKeyboard(t *testing.T) {
	markup := StartKeyboard(42, 7, 1, false)
	// 13 hours in rows of four plus the navigation row.
	require.Len(t, markup.InlineKeyboard, 5)
	assert.Equal(t, "10:00", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, EncodeCallback(actionFrom, 42, 7, 10), markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, EncodeCallback(actionBack, 42, 1), markup.InlineKeyboard[4][0].Data)

	edit := StartKeyboard(42, 7, 1, true)
	assert.Equal(t, EncodeCallback(actionEFrom, 42, 7, 10), edit.InlineKeyboard[0][0].Data)
}

func TestEndKeyboard(t *testing.T) {
	markup := EndKeyboard(42, 7, 21, true)
	require.Len(t, markup.InlineKeyboard, 2)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, 3)
	assert.Equal(t, "22:00", row[0].Text)
	assert.Equal(t, "00:00", row[2].Text)
	assert.Equal(t, EncodeCallback(actionETo, 42, 7, 21, 0), row[2].Data)
	assert.Equal(t, EncodeCallback(actionEFrom, 42, 7), markup.InlineKeyboard[1][0].Data)
}

func TestWeeklyKeyboard(t *testing.T) {
	env := newTestEnv(t, 4)

	markup := WeeklyKeyboard(env.views(t))
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, EncodeCallback(actionQuick, env.sat.ID), markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, EncodeCallback(actionQCancel, env.sun.ID), markup.InlineKeyboard[1][1].Data)
	assert.Equal(t, "🔄 Refresh", markup.InlineKeyboard[2][0].Text)

	require.NoError(t, env.sessions.Close(context.Background(), env.sat.ID))
	markup = WeeklyKeyboard(env.views(t))
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Len(t, markup.InlineKeyboard[0], 1, "closed days lose their buttons")

	require.NoError(t, env.sessions.Close(context.Background(), env.sun.ID))
	markup = WeeklyKeyboard(env.views(t))
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "🔄 Refresh", markup.InlineKeyboard[0][0].Text)
}

func TestDayKeyboard(t *testing.T) {
	markup := DayKeyboard(42, 3)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, EncodeCallback(actionDay, 42, 3, model.Saturday), markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "bk_day_42_3_sunday", markup.InlineKeyboard[0][1].Data)
}

func TestOwnedAction(t *testing.T) {
	assert.True(t, ownedAction(actionTo))
	assert.True(t, ownedAction(actionYes))
	assert.False(t, ownedAction(actionQuick))
	assert.False(t, ownedAction(actionRefresh))
}
