// Package handler provides Telegram bot command and callback handlers.
package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/service"
	"weekend-booking-bot/internal/timerange"
)

// BookingHandler handles the player commands and the inline booking menus.
type BookingHandler struct {
	sessions    *service.SessionService
	bookings    *service.BookingService
	publisher   *Publisher
	userLock    *lock.KeyLock
	defaultGame string
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(
	sessions *service.SessionService,
	bookings *service.BookingService,
	publisher *Publisher,
	userLock *lock.KeyLock,
	defaultGame string,
) *BookingHandler {
	return &BookingHandler{
		sessions:    sessions,
		bookings:    bookings,
		publisher:   publisher,
		userLock:    userLock,
		defaultGame: defaultGame,
	}
}

// HandleStart handles the /start command.
func (h *BookingHandler) HandleStart(c tele.Context) error {
	return c.Send(startText)
}

// HandleHelp handles the /help command.
func (h *BookingHandler) HandleHelp(c tele.Context) error {
	return c.Send(helpText)
}

// HandleChatID handles the /chatid command.
func (h *BookingHandler) HandleChatID(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	return c.Reply(fmt.Sprintf("Chat ID: %d", chat.ID))
}

// HandleBook handles the /book command.
// Format: /book [sat|sun HH:MM-HH:MM [game]]
func (h *BookingHandler) HandleBook(c tele.Context) error {
	ctx := requestContext(c)
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	// Repeated commands while one is in flight are dropped.
	if !h.userLock.TryLock(sender.ID) {
		return nil
	}
	defer h.userLock.Unlock(sender.ID)

	args := c.Args()
	if len(args) == 0 {
		return h.showBookMenu(ctx, c, sender.ID, chat.ID)
	}
	if len(args) < 2 {
		return c.Reply("Usage: /book sat 18:00-22:00")
	}

	day, ok := model.ParseDay(args[0])
	if !ok {
		return c.Reply("❌ Invalid day. Use sat or sun.")
	}
	window, err := timerange.ParseRange(args[1])
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	session, err := h.findSession(ctx, chat.ID, optionalArg(args, 2, h.defaultGame), day)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	res, err := h.bookings.Book(ctx, session.ID, sender.ID, displayName(sender), window)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	h.publisher.Refresh(ctx, session)
	return c.Reply(RenderBookResult(res, day))
}

// showBookMenu opens the inline booking menu: a game picker when several
// games are open, the day picker otherwise.
func (h *BookingHandler) showBookMenu(ctx context.Context, c tele.Context, userID, chatID int64) error {
	open, err := h.sessions.ListOpen(ctx, chatID)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}
	if len(open) == 0 {
		return c.Reply(errorText(ctx, service.ErrSessionNotFound))
	}

	openGames := make(map[int64]bool)
	for _, s := range open {
		openGames[s.GameID] = true
	}
	if len(openGames) == 1 {
		return c.Send("📅 Pick a day:", DayKeyboard(userID, open[0].GameID))
	}

	games, err := h.sessions.Games(ctx)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}
	var choices []*model.Game
	for _, g := range games {
		if openGames[g.ID] {
			choices = append(choices, g)
		}
	}
	return c.Send("🎮 Pick a game:", GameKeyboard(userID, choices))
}

// HandleCancel handles the /cancel command.
// Format: /cancel [sat|sun [game]]
func (h *BookingHandler) HandleCancel(c tele.Context) error {
	ctx := requestContext(c)
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	if !h.userLock.TryLock(sender.ID) {
		return nil
	}
	defer h.userLock.Unlock(sender.ID)

	args := c.Args()
	if len(args) == 0 {
		return h.showUserBookings(ctx, c, sender.ID, chat.ID, actionCancel, "Pick a booking to cancel:")
	}

	day, ok := model.ParseDay(args[0])
	if !ok {
		return c.Reply("❌ Invalid day. Use sat or sun.")
	}
	session, err := h.findSession(ctx, chat.ID, optionalArg(args, 1, h.defaultGame), day)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	text, err := h.cancel(ctx, session, sender)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}
	return c.Reply(text)
}

// cancel cancels the sender's booking, refreshes the weekly message and
// announces a promotion. It returns the confirmation text.
func (h *BookingHandler) cancel(ctx context.Context, session *model.Session, sender *tele.User) (string, error) {
	res, err := h.bookings.Cancel(ctx, session.ID, sender.ID, displayName(sender))
	if err != nil {
		return "", err
	}
	afterCancel(ctx, h.publisher, session, res)
	return fmt.Sprintf("✅ Your %s booking for %s is cancelled.", res.Game.Name, session.Day.Title()), nil
}

// afterCancel refreshes the weekly message and tells the chat who got the
// freed slot.
func afterCancel(ctx context.Context, p *Publisher, session *model.Session, res *service.CancelResult) {
	p.Refresh(ctx, session)
	if res.Promoted == nil {
		return
	}
	if err := p.Announce(ctx, session.ChatID, RenderPromoted(res, session.Day)); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Int64("session_id", session.ID).
			Int64("promoted_user_id", res.Promoted.UserID).
			Msg("Failed to announce promotion")
	}
}

// HandleEdit handles the /edit command.
// Format: /edit [sat|sun HH:MM-HH:MM [game]]
func (h *BookingHandler) HandleEdit(c tele.Context) error {
	ctx := requestContext(c)
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	if !h.userLock.TryLock(sender.ID) {
		return nil
	}
	defer h.userLock.Unlock(sender.ID)

	args := c.Args()
	if len(args) == 0 {
		return h.showUserBookings(ctx, c, sender.ID, chat.ID, actionEdit, "Pick a booking to change:")
	}
	if len(args) < 2 {
		return c.Reply("Usage: /edit sat 19:00-23:00")
	}

	day, ok := model.ParseDay(args[0])
	if !ok {
		return c.Reply("❌ Invalid day. Use sat or sun.")
	}
	window, err := timerange.ParseRange(args[1])
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}
	session, err := h.findSession(ctx, chat.ID, optionalArg(args, 2, h.defaultGame), day)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	if _, err := h.bookings.Edit(ctx, session.ID, sender.ID, window); err != nil {
		return c.Reply(errorText(ctx, err))
	}

	h.publisher.Refresh(ctx, session)
	return c.Reply(fmt.Sprintf("✏️ Your %s booking is now %s.", day.Title(), window))
}

func (h *BookingHandler) showUserBookings(ctx context.Context, c tele.Context, userID, chatID int64, action, prompt string) error {
	bookings, err := h.sessions.UserBookings(ctx, chatID, userID)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}
	if len(bookings) == 0 {
		return c.Reply("You have no active bookings.")
	}
	return c.Send(prompt, BookingsKeyboard(userID, bookings, action))
}

// HandleStatus handles the /status command by posting fresh weekly
// messages for every open game.
func (h *BookingHandler) HandleStatus(c tele.Context) error {
	ctx := requestContext(c)
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	open, err := h.sessions.ListOpen(ctx, chat.ID)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}
	if len(open) == 0 {
		return c.Reply("No open sessions. Booking opens on schedule or with /open.")
	}

	for _, s := range weeklyHeads(open) {
		if err := h.publisher.Repost(ctx, s); err != nil {
			return c.Reply(errorText(ctx, err))
		}
	}
	return nil
}

// findSession resolves a game name and day to the chat's open session.
func (h *BookingHandler) findSession(ctx context.Context, chatID int64, gameName string, day model.Day) (*model.Session, error) {
	return findOpenSession(ctx, h.sessions, chatID, gameName, day)
}

func findOpenSession(
	ctx context.Context,
	sessions *service.SessionService,
	chatID int64,
	gameName string,
	day model.Day,
) (*model.Session, error) {
	game, err := sessions.Game(ctx, gameName)
	if err != nil {
		return nil, err
	}
	return sessions.OpenSession(ctx, chatID, game.ID, day)
}

func optionalArg(args []string, i int, fallback string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return fallback
}

// HandleCallback handles every inline button of the booking menus.
func (h *BookingHandler) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	sender := c.Sender()
	if cb == nil || sender == nil {
		return nil
	}

	action, params := DecodeCallback(cb.Data)
	if action == "" {
		return c.Respond()
	}
	ctx := requestContext(c)

	if ownedAction(action) {
		owner, ok := intParam(params, 0)
		if !ok {
			return c.Respond()
		}
		if owner != sender.ID {
			return c.Respond(&tele.CallbackResponse{Text: "❌ This menu belongs to someone else", ShowAlert: true})
		}
	}

	if !h.userLock.TryLock(sender.ID) {
		return c.Respond(&tele.CallbackResponse{Text: "⏳ Please wait..."})
	}
	defer h.userLock.Unlock(sender.ID)

	log.Ctx(ctx).Debug().Str("action", action).Strs("params", params).Msg("Booking callback")

	switch action {
	case actionGame:
		gameID, _ := intParam(params, 1)
		if err := c.Edit("📅 Pick a day:", DayKeyboard(sender.ID, gameID)); err != nil {
			return err
		}
		return c.Respond()

	case actionBack:
		gameID, _ := intParam(params, 1)
		if err := c.Edit("📅 Pick a day:", DayKeyboard(sender.ID, gameID)); err != nil {
			return err
		}
		return c.Respond()

	case actionDay:
		return h.onDay(ctx, c, sender, params)

	case actionFrom, actionEFrom:
		return h.onStart(ctx, c, sender, params, action == actionEFrom)

	case actionTo, actionETo:
		return h.onEnd(ctx, c, sender, params, action == actionETo)

	case actionEdit:
		session, err := h.callbackSession(ctx, c, params, 1)
		if err != nil {
			return respondError(ctx, c, err)
		}
		if err := c.Edit(fmt.Sprintf("✏️ %s: pick a new start time:", session.Day.Title()),
			StartKeyboard(sender.ID, session.ID, session.GameID, true)); err != nil {
			return err
		}
		return c.Respond()

	case actionCancel:
		session, err := h.callbackSession(ctx, c, params, 1)
		if err != nil {
			return respondError(ctx, c, err)
		}
		if err := c.Edit(fmt.Sprintf("Cancel your booking for %s?", session.Day.Title()),
			ConfirmCancelKeyboard(sender.ID, session.ID)); err != nil {
			return err
		}
		return c.Respond()

	case actionYes:
		session, err := h.callbackSession(ctx, c, params, 1)
		if err != nil {
			return respondError(ctx, c, err)
		}
		text, err := h.cancel(ctx, session, sender)
		if err != nil {
			return respondError(ctx, c, err)
		}
		deleteMenu(ctx, c)
		return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})

	case actionClose:
		deleteMenu(ctx, c)
		return c.Respond()

	case actionQuick:
		return h.onQuickBook(ctx, c, sender, params)

	case actionQCancel:
		return h.onQuickCancel(ctx, c, sender, params)

	case actionRefresh:
		session, err := h.callbackSession(ctx, c, params, 0)
		if err != nil {
			return respondError(ctx, c, err)
		}
		if err := h.publisher.Publish(ctx, session); err != nil {
			return respondError(ctx, c, err)
		}
		return c.Respond(&tele.CallbackResponse{Text: "🔄 Updated"})
	}

	return c.Respond()
}

// ownedAction reports whether action carries the ID of the user who opened
// the menu as its first parameter.
func ownedAction(action string) bool {
	switch action {
	case actionQuick, actionQCancel, actionRefresh:
		return false
	}
	return true
}

// onDay opens the start time picker for the chosen day, switching to the
// edit flow when the user already holds a booking there.
func (h *BookingHandler) onDay(ctx context.Context, c tele.Context, sender *tele.User, params []string) error {
	gameID, _ := intParam(params, 1)
	chat := c.Chat()
	if len(params) < 3 || chat == nil {
		return c.Respond()
	}
	day := model.Day(params[2])
	if !day.Valid() {
		return c.Respond()
	}

	session, err := h.sessions.OpenSession(ctx, chat.ID, gameID, day)
	if err != nil {
		return respondError(ctx, c, err)
	}

	text, markup, err := h.startMenu(ctx, session, sender.ID)
	if err != nil {
		return respondError(ctx, c, err)
	}
	if err := c.Edit(text, markup); err != nil {
		return err
	}
	return c.Respond()
}

// startMenu builds the start time picker for a session.
func (h *BookingHandler) startMenu(ctx context.Context, session *model.Session, userID int64) (string, *tele.ReplyMarkup, error) {
	view, err := h.sessions.View(ctx, session)
	if err != nil {
		return "", nil, err
	}

	for _, b := range view.Bookings {
		if b.UserID == userID {
			text := fmt.Sprintf("✏️ You already booked %s, %s (%s). Pick a new start time:",
				view.Game.Name, session.Day.Title(), b.Range())
			return text, StartKeyboard(userID, session.ID, session.GameID, true), nil
		}
	}

	text := fmt.Sprintf("🕐 %s, %s: pick a start time:", view.Game.Name, session.Day.Title())
	return text, StartKeyboard(userID, session.ID, session.GameID, false), nil
}

// onStart shows the end time picker, or the start picker again when no
// hour was given.
func (h *BookingHandler) onStart(ctx context.Context, c tele.Context, sender *tele.User, params []string, edit bool) error {
	session, err := h.callbackSession(ctx, c, params, 1)
	if err != nil {
		return respondError(ctx, c, err)
	}

	if len(params) < 3 {
		err = c.Edit(fmt.Sprintf("🕐 %s: pick a start time:", session.Day.Title()),
			StartKeyboard(sender.ID, session.ID, session.GameID, edit))
	} else {
		hour, ok := hourParam(params, 2)
		if !ok {
			return c.Respond()
		}
		err = c.Edit(fmt.Sprintf("🕐 Start: %s\nPick an end time:", hourLabel(hour)),
			EndKeyboard(sender.ID, session.ID, hour, edit))
	}
	if err != nil {
		return err
	}
	return c.Respond()
}

// onEnd completes a booking or an edit from the picked hours.
func (h *BookingHandler) onEnd(ctx context.Context, c tele.Context, sender *tele.User, params []string, edit bool) error {
	session, err := h.callbackSession(ctx, c, params, 1)
	if err != nil {
		return respondError(ctx, c, err)
	}

	from, okFrom := hourParam(params, 2)
	to, okTo := hourParam(params, 3)
	if !okFrom || !okTo {
		return c.Respond()
	}
	window := timerange.Range{From: timerange.New(from, 0), To: timerange.New(to, 0)}

	var text string
	if edit {
		if _, err := h.bookings.Edit(ctx, session.ID, sender.ID, window); err != nil {
			return respondError(ctx, c, err)
		}
		text = fmt.Sprintf("✏️ Your %s booking is now %s.", session.Day.Title(), window)
	} else {
		res, err := h.bookings.Book(ctx, session.ID, sender.ID, displayName(sender), window)
		if err != nil {
			return respondError(ctx, c, err)
		}
		text = RenderBookResult(res, session.Day)
	}

	deleteMenu(ctx, c)
	h.publisher.Refresh(ctx, session)
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

// onQuickBook opens a personal booking menu from the weekly message.
func (h *BookingHandler) onQuickBook(ctx context.Context, c tele.Context, sender *tele.User, params []string) error {
	session, err := h.callbackSession(ctx, c, params, 0)
	if err != nil {
		return respondError(ctx, c, err)
	}
	if !session.IsOpen() {
		return respondError(ctx, c, service.ErrSessionNotOpen)
	}

	text, markup, err := h.startMenu(ctx, session, sender.ID)
	if err != nil {
		return respondError(ctx, c, err)
	}
	if err := c.Send(mention(displayName(sender))+" "+text, markup); err != nil {
		return err
	}
	return c.Respond()
}

// onQuickCancel asks for confirmation before cancelling from the weekly
// message.
func (h *BookingHandler) onQuickCancel(ctx context.Context, c tele.Context, sender *tele.User, params []string) error {
	session, err := h.callbackSession(ctx, c, params, 0)
	if err != nil {
		return respondError(ctx, c, err)
	}

	view, err := h.sessions.View(ctx, session)
	if err != nil {
		return respondError(ctx, c, err)
	}
	booked := false
	for _, b := range view.Bookings {
		if b.UserID == sender.ID {
			booked = true
			break
		}
	}
	if !booked {
		return respondError(ctx, c, service.ErrNoActiveBooking)
	}

	text := fmt.Sprintf("%s, cancel your %s booking for %s?",
		mention(displayName(sender)), view.Game.Name, session.Day.Title())
	if err := c.Send(text, ConfirmCancelKeyboard(sender.ID, session.ID)); err != nil {
		return err
	}
	return c.Respond()
}

// callbackSession loads the session whose ID is params[i]. Sessions of
// other chats are reported as not found.
func (h *BookingHandler) callbackSession(ctx context.Context, c tele.Context, params []string, i int) (*model.Session, error) {
	id, ok := intParam(params, i)
	if !ok {
		return nil, service.ErrSessionNotFound
	}
	session, err := h.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if chat := c.Chat(); chat != nil && chat.ID != session.ChatID {
		return nil, service.ErrSessionNotFound
	}
	return session, nil
}

func respondError(ctx context.Context, c tele.Context, err error) error {
	return c.Respond(&tele.CallbackResponse{Text: errorText(ctx, err), ShowAlert: true})
}

// deleteMenu removes the menu message. The bot may lack the right to
// delete in groups, which is not an error.
func deleteMenu(ctx context.Context, c tele.Context) {
	if err := c.Delete(); err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("Could not delete menu message")
	}
}
