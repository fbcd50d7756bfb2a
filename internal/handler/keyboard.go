package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/service"
)

const (
	// CallbackPrefix is the prefix for all booking callback data.
	CallbackPrefix = "bk_"

	callbackSep = "_"
)

// Callback actions. Actions whose first parameter is a user ID belong to a
// menu opened by that user; other users are turned away.
const (
	actionGame    = "game"    // uid, gameID
	actionDay     = "day"     // uid, gameID, day
	actionFrom    = "from"    // uid, sessionID, hour
	actionTo      = "to"      // uid, sessionID, fromHour, toHour
	actionEdit    = "edit"    // uid, sessionID
	actionEFrom   = "efrom"   // uid, sessionID, hour
	actionETo     = "eto"     // uid, sessionID, fromHour, toHour
	actionBack    = "back"    // uid, gameID
	actionCancel  = "cancel"  // uid, sessionID
	actionYes     = "yes"     // uid, sessionID
	actionClose   = "close"   // uid
	actionQuick   = "quick"   // sessionID
	actionQCancel = "qcancel" // sessionID
	actionRefresh = "refresh" // sessionID
)

// Bookable hours offered by the inline pickers.
const (
	firstStartHour = 10
	lastStartHour  = 22
)

// EncodeCallback encodes an action and its parameters into callback data.
func EncodeCallback(action string, params ...any) string {
	var b strings.Builder
	b.WriteString(CallbackPrefix)
	b.WriteString(action)
	for _, p := range params {
		b.WriteString(callbackSep)
		b.WriteString(fmt.Sprint(p))
	}
	return b.String()
}

// DecodeCallback decodes callback data into an action and its parameters.
// Telebot's "\f" marker is ignored. Returns an empty action for foreign data.
func DecodeCallback(data string) (action string, params []string) {
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, CallbackPrefix) {
		return "", nil
	}

	parts := strings.Split(strings.TrimPrefix(data, CallbackPrefix), callbackSep)
	return parts[0], parts[1:]
}

// intParam parses params[i] as an int64.
func intParam(params []string, i int) (int64, bool) {
	if i >= len(params) {
		return 0, false
	}
	v, err := strconv.ParseInt(params[i], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// hourParam parses params[i] as an hour of the day.
func hourParam(params []string, i int) (int, bool) {
	if i >= len(params) {
		return 0, false
	}
	h, err := strconv.Atoi(params[i])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// endHours lists the end hours offered after start: start+1 through 23 and
// then 0 for midnight.
func endHours(start int) []int {
	var hours []int
	for h := start + 1; h < 24; h++ {
		hours = append(hours, h)
	}
	return append(hours, 0)
}

func hourLabel(h int) string {
	return fmt.Sprintf("%02d:00", h)
}

// grid lays buttons out in rows of width.
func grid(buttons []tele.InlineButton, width int) [][]tele.InlineButton {
	var rows [][]tele.InlineButton
	for len(buttons) > width {
		rows = append(rows, buttons[:width])
		buttons = buttons[width:]
	}
	if len(buttons) > 0 {
		rows = append(rows, buttons)
	}
	return rows
}

// GameKeyboard lets a user pick one of several games.
func GameKeyboard(userID int64, games []*model.Game) *tele.ReplyMarkup {
	buttons := make([]tele.InlineButton, 0, len(games))
	for _, g := range games {
		buttons = append(buttons, tele.InlineButton{
			Text: g.Name,
			Data: EncodeCallback(actionGame, userID, g.ID),
		})
	}

	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = append(grid(buttons, 2), closeRow(userID))
	return markup
}

// DayKeyboard lets a user pick Saturday or Sunday for a game.
func DayKeyboard(userID, gameID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{
		{
			{Text: model.Saturday.Title(), Data: EncodeCallback(actionDay, userID, gameID, model.Saturday)},
			{Text: model.Sunday.Title(), Data: EncodeCallback(actionDay, userID, gameID, model.Sunday)},
		},
		closeRow(userID),
	}
	return markup
}

// StartKeyboard offers start hours for a new booking, or for an edit when
// edit is set.
func StartKeyboard(userID, sessionID, gameID int64, edit bool) *tele.ReplyMarkup {
	action := actionFrom
	if edit {
		action = actionEFrom
	}

	var buttons []tele.InlineButton
	for h := firstStartHour; h <= lastStartHour; h++ {
		buttons = append(buttons, tele.InlineButton{
			Text: hourLabel(h),
			Data: EncodeCallback(action, userID, sessionID, h),
		})
	}

	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = append(grid(buttons, 4), []tele.InlineButton{
		{Text: "« Back", Data: EncodeCallback(actionBack, userID, gameID)},
		{Text: "✖️ Close", Data: EncodeCallback(actionClose, userID)},
	})
	return markup
}

// EndKeyboard offers end hours after start.
func EndKeyboard(userID, sessionID int64, start int, edit bool) *tele.ReplyMarkup {
	action, back := actionTo, actionFrom
	if edit {
		action, back = actionETo, actionEFrom
	}

	var buttons []tele.InlineButton
	for _, h := range endHours(start) {
		buttons = append(buttons, tele.InlineButton{
			Text: hourLabel(h),
			Data: EncodeCallback(action, userID, sessionID, start, h),
		})
	}

	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = append(grid(buttons, 4), []tele.InlineButton{
		// Re-sending the start callback without an hour reopens the picker.
		{Text: "« Back", Data: EncodeCallback(back, userID, sessionID)},
		{Text: "✖️ Close", Data: EncodeCallback(actionClose, userID)},
	})
	return markup
}

// BookingsKeyboard lists a user's bookings; picking one runs action on it.
func BookingsKeyboard(userID int64, bookings []*service.UserBooking, action string) *tele.ReplyMarkup {
	icon := "❌"
	if action == actionEdit {
		icon = "✏️"
	}

	markup := &tele.ReplyMarkup{}
	for _, ub := range bookings {
		markup.InlineKeyboard = append(markup.InlineKeyboard, []tele.InlineButton{{
			Text: fmt.Sprintf("%s %s, %s (%s)", icon, ub.Game.Name, ub.Session.Day.Title(), ub.Booking.Range()),
			Data: EncodeCallback(action, userID, ub.Session.ID),
		}})
	}
	markup.InlineKeyboard = append(markup.InlineKeyboard, closeRow(userID))
	return markup
}

// ConfirmCancelKeyboard asks the user to confirm a cancellation.
func ConfirmCancelKeyboard(userID, sessionID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{{
		{Text: "✅ Yes, cancel", Data: EncodeCallback(actionYes, userID, sessionID)},
		{Text: "❌ No", Data: EncodeCallback(actionClose, userID)},
	}}
	return markup
}

// WeeklyKeyboard is attached to the weekly message of a game. It offers
// quick book and cancel buttons for each open day and a refresh button.
func WeeklyKeyboard(views []*service.SessionView) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var book, cancel []tele.InlineButton
	var refresh int64
	for _, v := range views {
		refresh = v.Session.ID
		if !v.Session.IsOpen() {
			continue
		}
		day := v.Session.Day.Title()
		book = append(book, tele.InlineButton{
			Text: "📝 " + day,
			Data: EncodeCallback(actionQuick, v.Session.ID),
		})
		cancel = append(cancel, tele.InlineButton{
			Text: "❌ " + day,
			Data: EncodeCallback(actionQCancel, v.Session.ID),
		})
	}

	if len(book) > 0 {
		markup.InlineKeyboard = append(markup.InlineKeyboard, book, cancel)
	}
	if refresh != 0 {
		markup.InlineKeyboard = append(markup.InlineKeyboard, []tele.InlineButton{
			{Text: "🔄 Refresh", Data: EncodeCallback(actionRefresh, refresh)},
		})
	}
	return markup
}

func closeRow(userID int64) []tele.InlineButton {
	return []tele.InlineButton{{Text: "✖️ Close", Data: EncodeCallback(actionClose, userID)}}
}
