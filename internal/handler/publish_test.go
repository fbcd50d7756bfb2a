package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/repository/memstore"
	"weekend-booking-bot/internal/service"
	"weekend-booking-bot/internal/timerange"
)

const testChat int64 = -1001

var testWeek = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

type sentMessage struct {
	chat      string
	messageID string
	text      string
}

type fakeSender struct {
	nextID  int
	sent    []sentMessage
	edits   []sentMessage
	editErr error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.nextID++
	f.sent = append(f.sent, sentMessage{chat: to.Recipient(), text: fmt.Sprint(what)})
	return &tele.Message{ID: f.nextID}, nil
}

func (f *fakeSender) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	id, chat := msg.MessageSig()
	f.edits = append(f.edits, sentMessage{chat: strconv.FormatInt(chat, 10), messageID: id, text: fmt.Sprint(what)})
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &tele.Message{}, nil
}

type testEnv struct {
	sessions  *service.SessionService
	bookings  *service.BookingService
	sender    *fakeSender
	publisher *Publisher
	sat, sun  *model.Session
}

func newTestEnv(t *testing.T, maxSlots int) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	locks := lock.NewKeyLock()
	sessions := service.NewSessionService(store, locks, nil, time.UTC)
	require.NoError(t, sessions.SeedGames(ctx, []model.Game{{Name: "PUBG", MaxSlots: maxSlots}}))

	opened, err := sessions.OpenWeek(ctx, testChat, testWeek)
	require.NoError(t, err)
	require.Len(t, opened, 2)

	sender := &fakeSender{}
	return &testEnv{
		sessions:  sessions,
		bookings:  service.NewBookingService(store, locks, nil),
		sender:    sender,
		publisher: NewPublisher(sender, sessions),
		sat:       opened[0],
		sun:       opened[1],
	}
}

func (e *testEnv) book(t *testing.T, session *model.Session, userID int64, window string) {
	t.Helper()
	r, err := timerange.ParseRange(window)
	require.NoError(t, err)
	_, err = e.bookings.Book(context.Background(), session.ID, userID, fmt.Sprintf("user%d", userID), r)
	require.NoError(t, err)
}

func (e *testEnv) messageID(t *testing.T, session *model.Session) int64 {
	t.Helper()
	s, err := e.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, s.MessageID)
	return *s.MessageID
}

func TestPublish_SendsOnceThenEdits(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	require.NoError(t, env.publisher.Publish(ctx, env.sat))
	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "-1001", env.sender.sent[0].chat)
	assert.Equal(t, int64(1), env.messageID(t, env.sat))
	assert.Equal(t, int64(1), env.messageID(t, env.sun), "both days share the weekly message")

	env.book(t, env.sun, 7, "18:00-22:00")
	sun, err := env.sessions.GetByID(ctx, env.sun.ID)
	require.NoError(t, err)
	require.NoError(t, env.publisher.Publish(ctx, sun))

	assert.Len(t, env.sender.sent, 1)
	require.Len(t, env.sender.edits, 1)
	assert.Equal(t, "1", env.sender.edits[0].messageID)
	assert.Contains(t, env.sender.edits[0].text, "@user7 (18:00-22:00)")
}

func TestPublish_PostsNewMessageWhenEditFails(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()
	require.NoError(t, env.publisher.Publish(ctx, env.sat))

	sat, err := env.sessions.GetByID(ctx, env.sat.ID)
	require.NoError(t, err)
	env.sender.editErr = errors.New("telegram: message to edit not found (400)")
	require.NoError(t, env.publisher.Publish(ctx, sat))

	assert.Len(t, env.sender.sent, 2)
	assert.Equal(t, int64(2), env.messageID(t, env.sat))
	assert.Equal(t, int64(2), env.messageID(t, env.sun))
}

func TestPublish_NotModifiedIsNotAnError(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()
	require.NoError(t, env.publisher.Publish(ctx, env.sat))

	sat, err := env.sessions.GetByID(ctx, env.sat.ID)
	require.NoError(t, err)
	env.sender.editErr = errors.New("telegram: Bad Request: message is not modified (400)")
	require.NoError(t, env.publisher.Publish(ctx, sat))

	assert.Len(t, env.sender.sent, 1)
	assert.Equal(t, int64(1), env.messageID(t, env.sat))
}

func TestRepost_AlwaysSends(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	require.NoError(t, env.publisher.Repost(ctx, env.sat))
	require.NoError(t, env.publisher.Repost(ctx, env.sat))

	assert.Len(t, env.sender.sent, 2)
	assert.Empty(t, env.sender.edits)
	assert.Equal(t, int64(2), env.messageID(t, env.sun))
}

func TestPublishAll_OneMessagePerGameAndWeek(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	env.publisher.PublishAll(ctx, []*model.Session{env.sat, env.sun})
	assert.Len(t, env.sender.sent, 1)
}

func TestAnnounce(t *testing.T) {
	env := newTestEnv(t, 4)
	require.NoError(t, env.publisher.Announce(context.Background(), testChat, "hello"))
	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "hello", env.sender.sent[0].text)
}

func TestWeeklyHeads(t *testing.T) {
	week2 := testWeek.AddDate(0, 0, 7)
	sessions := []*model.Session{
		{ID: 1, GameID: 1, ChatID: testChat, Day: model.Saturday, WeekStart: testWeek},
		{ID: 2, GameID: 1, ChatID: testChat, Day: model.Sunday, WeekStart: testWeek},
		{ID: 3, GameID: 2, ChatID: testChat, Day: model.Sunday, WeekStart: testWeek},
		{ID: 4, GameID: 1, ChatID: testChat, Day: model.Saturday, WeekStart: week2},
	}

	var ids []int64
	for _, s := range weeklyHeads(sessions) {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{1, 3, 4}, ids)
}
