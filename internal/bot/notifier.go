package bot

import (
	"context"
	"fmt"

	"weekend-booking-bot/internal/handler"
	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/scheduler"
	"weekend-booking-bot/internal/service"
	"weekend-booking-bot/internal/timerange"
)

var _ scheduler.Notifier = (*Notifier)(nil)

// Notifier posts scheduler events to the chat.
type Notifier struct {
	publisher *handler.Publisher
}

// NewNotifier creates a new Notifier instance.
func NewNotifier(publisher *handler.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// WeekOpened announces the week and posts one weekly message per game.
func (n *Notifier) WeekOpened(ctx context.Context, chatID int64, views []*service.SessionView) error {
	if len(views) == 0 {
		return nil
	}

	week := views[0].Session.WeekStart.Format("02.01")
	text := fmt.Sprintf("📅 Booking for the weekend of %s is open! Use /book or the buttons below.", week)
	if err := n.publisher.Announce(ctx, chatID, text); err != nil {
		return err
	}

	sessions := make([]*model.Session, 0, len(views))
	for _, v := range views {
		sessions = append(sessions, v.Session)
	}
	n.publisher.PublishAll(ctx, sessions)
	return nil
}

// WeekClosed announces that booking has ended. Nothing is posted when no
// session was open.
func (n *Notifier) WeekClosed(ctx context.Context, chatID int64, closed int) error {
	if closed == 0 {
		return nil
	}
	return n.publisher.Announce(ctx, chatID,
		fmt.Sprintf("🔒 Booking closed. %d sessions archived. See /stats for the leaderboard.", closed))
}

// Reminder mentions the confirmed players of a session about to start.
func (n *Notifier) Reminder(ctx context.Context, view *service.SessionView, window timerange.Range) error {
	return n.publisher.Announce(ctx, view.Session.ChatID, handler.RenderReminder(view, window.From.String()))
}
