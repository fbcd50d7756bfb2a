package handler

import (
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/service"
)

// AdminHandler handles admin-only commands. Access is checked by the admin
// middleware.
type AdminHandler struct {
	sessions    *service.SessionService
	bookings    *service.BookingService
	publisher   *Publisher
	defaultGame string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	sessions *service.SessionService,
	bookings *service.BookingService,
	publisher *Publisher,
	defaultGame string,
) *AdminHandler {
	return &AdminHandler{
		sessions:    sessions,
		bookings:    bookings,
		publisher:   publisher,
		defaultGame: defaultGame,
	}
}

// HandleOpen handles the /open command.
// Opens this week's sessions for every game and posts the weekly messages.
func (h *AdminHandler) HandleOpen(c tele.Context) error {
	ctx := requestContext(c)
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	week := h.sessions.CurrentWeek()
	sessions, err := h.sessions.OpenWeek(ctx, chat.ID, week)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	log.Ctx(ctx).Info().
		Int64("chat_id", chat.ID).
		Time("week_start", week).
		Int("sessions", len(sessions)).
		Msg("Admin opened booking")

	if err := c.Send(fmt.Sprintf("📅 Booking is open for the weekend of %s!", week.Format("02.01"))); err != nil {
		return err
	}
	h.publisher.PublishAll(ctx, sessions)
	return nil
}

// HandleClose handles the /close command.
// Closes every open session of the chat, recording confirmed players as
// played.
func (h *AdminHandler) HandleClose(c tele.Context) error {
	ctx := requestContext(c)
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	open, err := h.sessions.ListOpen(ctx, chat.ID)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	closed, err := h.sessions.CloseAll(ctx, chat.ID)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	h.publisher.PublishAll(ctx, open)
	return c.Send(fmt.Sprintf("🔒 Booking closed. %d sessions archived.", closed))
}

// HandleRemove handles the /remove command.
// Format: /remove @username sat|sun [game]
func (h *AdminHandler) HandleRemove(c tele.Context) error {
	ctx := requestContext(c)
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("Usage: /remove @username sat|sun")
	}

	day, ok := model.ParseDay(args[1])
	if !ok {
		return c.Reply("❌ Invalid day. Use sat or sun.")
	}
	session, err := findOpenSession(ctx, h.sessions, chat.ID, optionalArg(args, 2, h.defaultGame), day)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	res, err := h.bookings.AdminRemove(ctx, session.ID, args[0])
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}

	if sender := c.Sender(); sender != nil {
		log.Ctx(ctx).Info().
			Int64("admin_id", sender.ID).
			Int64("session_id", session.ID).
			Int64("user_id", res.Cancelled.UserID).
			Msg("Admin removed booking")
	}

	afterCancel(ctx, h.publisher, session, res)
	return c.Reply(fmt.Sprintf("✅ Removed %s from %s on %s.",
		mention(res.Cancelled.Username), res.Game.Name, day.Title()))
}
