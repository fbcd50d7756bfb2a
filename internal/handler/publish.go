package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/service"
)

// Sender is the part of the Telegram API used to post and edit messages.
// *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Publisher keeps one weekly message per game and week up to date. The
// Saturday and Sunday sessions share the message.
type Publisher struct {
	sender   Sender
	sessions *service.SessionService
}

// NewPublisher creates a new Publisher instance.
func NewPublisher(sender Sender, sessions *service.SessionService) *Publisher {
	return &Publisher{sender: sender, sessions: sessions}
}

// Publish renders the weekly message of the session's game and edits it in
// place, posting a new one when there is none or it can no longer be edited.
func (p *Publisher) Publish(ctx context.Context, session *model.Session) error {
	return p.publish(ctx, session, false)
}

// Repost always posts a fresh weekly message and moves the display
// reference to it.
func (p *Publisher) Repost(ctx context.Context, session *model.Session) error {
	return p.publish(ctx, session, true)
}

func (p *Publisher) publish(ctx context.Context, session *model.Session, fresh bool) error {
	views, err := p.weekViews(ctx, session)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		return nil
	}

	text := RenderWeekly(views)
	markup := WeeklyKeyboard(views)

	var messageID *int64
	for _, v := range views {
		if v.Session.MessageID != nil {
			messageID = v.Session.MessageID
			break
		}
	}

	if messageID != nil && !fresh {
		stored := &tele.StoredMessage{
			MessageID: strconv.FormatInt(*messageID, 10),
			ChatID:    session.ChatID,
		}
		_, err := p.sender.Edit(stored, text, markup)
		if err == nil || isNotModified(err) {
			return nil
		}
		log.Ctx(ctx).Debug().Err(err).
			Int64("chat_id", session.ChatID).
			Int64("message_id", *messageID).
			Msg("Weekly message not editable, posting a new one")
	}

	msg, err := p.sender.Send(tele.ChatID(session.ChatID), text, &tele.SendOptions{
		ReplyMarkup:         markup,
		DisableNotification: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send weekly message: %w", err)
	}

	for _, v := range views {
		if err := p.sessions.SetDisplayReference(ctx, v.Session.ID, int64(msg.ID)); err != nil {
			return err
		}
	}
	return nil
}

// PublishAll publishes one weekly message per game and week among sessions.
// A failure is logged and does not stop the others.
func (p *Publisher) PublishAll(ctx context.Context, sessions []*model.Session) {
	for _, s := range weeklyHeads(sessions) {
		if err := p.Publish(ctx, s); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("session_id", s.ID).Msg("Failed to publish weekly message")
		}
	}
}

// Refresh updates the weekly message of a session after a change. Failures
// are logged; the change itself already succeeded.
func (p *Publisher) Refresh(ctx context.Context, session *model.Session) {
	if err := p.Publish(ctx, session); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("session_id", session.ID).Msg("Failed to update weekly message")
	}
}

// Announce posts a plain message to a chat.
func (p *Publisher) Announce(ctx context.Context, chatID int64, text string) error {
	if _, err := p.sender.Send(tele.ChatID(chatID), text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// weeklyHeads keeps the first session of each game and week.
func weeklyHeads(sessions []*model.Session) []*model.Session {
	type week struct {
		chatID int64
		gameID int64
		start  int64
	}
	seen := make(map[week]bool)

	var heads []*model.Session
	for _, s := range sessions {
		k := week{chatID: s.ChatID, gameID: s.GameID, start: s.WeekStart.Unix()}
		if seen[k] {
			continue
		}
		seen[k] = true
		heads = append(heads, s)
	}
	return heads
}

// weekViews loads the Saturday and Sunday sessions of the session's game
// and week.
func (p *Publisher) weekViews(ctx context.Context, session *model.Session) ([]*service.SessionView, error) {
	var views []*service.SessionView
	for _, day := range model.Days() {
		key := session.Key()
		key.Day = day

		s, err := p.sessions.Get(ctx, key)
		if errors.Is(err, service.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		view, err := p.sessions.View(ctx, s)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// isNotModified reports whether Telegram rejected an edit because nothing
// changed.
func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
