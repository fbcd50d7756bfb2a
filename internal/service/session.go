package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"weekend-booking-bot/internal/metrics"
	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/repository"
	"weekend-booking-bot/internal/timerange"
)

const defaultLockTimeout = 10 * time.Second

// SessionView is a session together with its game and active bookings.
type SessionView struct {
	Session  *model.Session
	Game     *model.Game
	Bookings []*model.Booking
}

// Confirmed returns the confirmed bookings in position order.
func (v *SessionView) Confirmed() []*model.Booking {
	return v.filter(model.BookingConfirmed)
}

// Waitlist returns the waitlisted bookings in queue order.
func (v *SessionView) Waitlist() []*model.Booking {
	return v.filter(model.BookingWaitlist)
}

func (v *SessionView) filter(status string) []*model.Booking {
	var out []*model.Booking
	for _, b := range v.Bookings {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

// Resolve returns the optimal play window of the session.
func (v *SessionView) Resolve() Resolution {
	return Resolve(v.Bookings)
}

// UserBooking is one of a user's active bookings with its context.
type UserBooking struct {
	Session *model.Session
	Game    *model.Game
	Booking *model.Booking
}

// SessionService manages session lifecycle: lookup, idempotent creation,
// closing and display references.
type SessionService struct {
	store       repository.Store
	locks       *lock.KeyLock
	metrics     *metrics.Metrics
	timezone    *time.Location
	lockTimeout time.Duration
	now         func() time.Time
}

// NewSessionService creates a new SessionService instance. locks must be
// shared with the BookingService so both serialize on the same sessions.
func NewSessionService(
	store repository.Store,
	locks *lock.KeyLock,
	m *metrics.Metrics,
	timezone *time.Location,
) *SessionService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &SessionService{
		store:       store,
		locks:       locks,
		metrics:     m,
		timezone:    timezone,
		lockTimeout: defaultLockTimeout,
		now:         time.Now,
	}
}

// Location returns the timezone sessions are scheduled in.
func (s *SessionService) Location() *time.Location {
	return s.timezone
}

// CurrentWeek returns the week start of the current week in the service
// timezone.
func (s *SessionService) CurrentWeek() time.Time {
	return timerange.WeekOf(s.now().In(s.timezone))
}

// SeedGames creates the configured games or updates their slot counts.
// Open sessions of a game whose slot count changed are rebalanced.
func (s *SessionService) SeedGames(ctx context.Context, games []model.Game) error {
	for _, g := range games {
		game, err := s.store.UpsertGame(ctx, g.Name, g.MaxSlots)
		if err != nil {
			return fmt.Errorf("failed to seed game %s: %w", g.Name, err)
		}
		if err := s.rebalanceOpen(ctx, game); err != nil {
			return err
		}
	}
	return nil
}

// rebalanceOpen rebalances every open session of game.
func (s *SessionService) rebalanceOpen(ctx context.Context, game *model.Game) error {
	sessions, err := s.store.ListAllOpenSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open sessions: %w", err)
	}
	for _, session := range sessions {
		if session.GameID != game.ID {
			continue
		}
		err := s.locks.WithLockTimeout(ctx, session.ID, s.lockTimeout, func() error {
			return s.store.WithTx(ctx, func(tx repository.Store) error {
				if _, err := tx.LockSession(ctx, session.ID); err != nil {
					return fmt.Errorf("failed to lock session: %w", err)
				}
				_, err := rebalanceLocked(ctx, tx, game, session.ID)
				return err
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Games returns every configured game.
func (s *SessionService) Games(ctx context.Context) ([]*model.Game, error) {
	games, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return games, nil
}

// Game looks a game up by name, ignoring case.
func (s *SessionService) Game(ctx context.Context, name string) (*model.Game, error) {
	game, err := s.store.GetGameByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// Get returns the session with the given key, or ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	session, err := s.store.FindSession(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// GetByID returns a session by ID, or ErrSessionNotFound.
func (s *SessionService) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// CreateIfAbsent returns the session with the given key, creating it if it
// does not exist. An existing session is returned unchanged whatever its
// status. The second result reports whether a session was created.
func (s *SessionService) CreateIfAbsent(ctx context.Context, key model.SessionKey) (*model.Session, bool, error) {
	if !key.Day.Valid() {
		return nil, false, fmt.Errorf("invalid day %q", key.Day)
	}

	existing, err := s.Get(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, false, err
	}

	created, err := s.store.InsertSession(ctx, key)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent creator.
		existing, err := s.Get(ctx, key)
		return existing, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.SessionOpened()
	log.Ctx(ctx).Info().
		Int64("session_id", created.ID).
		Int64("game_id", key.GameID).
		Int64("chat_id", key.ChatID).
		Str("day", string(key.Day)).
		Time("week_start", key.WeekStart).
		Msg("Session created")

	return created, true, nil
}

// OpenWeek creates the sessions of every game for both days of the week.
// Re-running it for an already opened week changes nothing.
func (s *SessionService) OpenWeek(ctx context.Context, chatID int64, weekStart time.Time) ([]*model.Session, error) {
	games, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	var sessions []*model.Session
	for _, game := range games {
		for _, day := range model.Days() {
			session, _, err := s.CreateIfAbsent(ctx, model.SessionKey{
				GameID:    game.ID,
				ChatID:    chatID,
				Day:       day,
				WeekStart: weekStart,
			})
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// Close closes a single session. Closing a closed session is a no-op.
func (s *SessionService) Close(ctx context.Context, id int64) error {
	return s.locks.WithLockTimeout(ctx, id, s.lockTimeout, func() error {
		return s.store.WithTx(ctx, func(tx repository.Store) error {
			_, err := s.closeLocked(ctx, tx, id, false)
			return err
		})
	})
}

// CloseAll closes every open session of a chat. Before a session is closed
// each of its confirmed bookings is recorded once as played. Returns the
// number of sessions closed.
func (s *SessionService) CloseAll(ctx context.Context, chatID int64) (int, error) {
	sessions, err := s.store.ListOpenSessions(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to list open sessions: %w", err)
	}

	closed := 0
	for _, session := range sessions {
		err := s.locks.WithLockTimeout(ctx, session.ID, s.lockTimeout, func() error {
			return s.store.WithTx(ctx, func(tx repository.Store) error {
				ok, err := s.closeLocked(ctx, tx, session.ID, true)
				if ok {
					closed++
				}
				return err
			})
		})
		if err != nil {
			return closed, err
		}
	}

	log.Ctx(ctx).Info().Int64("chat_id", chatID).Int("closed", closed).Msg("Sessions closed")
	return closed, nil
}

// closeLocked closes the session if it is still open and reports whether it
// did. With recordPlayed set, confirmed bookings are logged as played first.
func (s *SessionService) closeLocked(ctx context.Context, tx repository.Store, id int64, recordPlayed bool) (bool, error) {
	session, err := tx.LockSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrSessionNotFound
		}
		return false, fmt.Errorf("failed to lock session: %w", err)
	}
	if !session.IsOpen() {
		return false, nil
	}

	if recordPlayed {
		game, err := tx.GetGame(ctx, session.GameID)
		if err != nil {
			return false, fmt.Errorf("failed to get game: %w", err)
		}
		bookings, err := tx.ListActiveBookings(ctx, id)
		if err != nil {
			return false, fmt.Errorf("failed to list bookings: %w", err)
		}
		for _, b := range bookings {
			if b.Status != model.BookingConfirmed {
				continue
			}
			if err := tx.AddHistory(ctx, &model.HistoryEntry{
				UserID:   b.UserID,
				Username: b.Username,
				GameName: game.Name,
				Action:   model.ActionPlayed,
			}); err != nil {
				return false, fmt.Errorf("failed to record played: %w", err)
			}
		}
	}

	if err := tx.SetSessionStatus(ctx, id, model.SessionClosed); err != nil {
		return false, fmt.Errorf("failed to close session: %w", err)
	}

	s.metrics.SessionClosed()
	log.Ctx(ctx).Info().Int64("session_id", id).Msg("Session closed")
	return true, nil
}

// SetDisplayReference stores the ID of the message that renders the session.
func (s *SessionService) SetDisplayReference(ctx context.Context, id int64, messageID int64) error {
	if err := s.store.SetMessageID(ctx, id, messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to set display reference: %w", err)
	}
	return nil
}

// ListOpen returns the open sessions of a chat.
func (s *SessionService) ListOpen(ctx context.Context, chatID int64) ([]*model.Session, error) {
	sessions, err := s.store.ListOpenSessions(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	return sessions, nil
}

// ListAllOpen returns open sessions across all chats.
func (s *SessionService) ListAllOpen(ctx context.Context) ([]*model.Session, error) {
	sessions, err := s.store.ListAllOpenSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	return sessions, nil
}

// OpenSession returns the open session of a game for a day in a chat. When
// several weeks are open the latest one wins.
func (s *SessionService) OpenSession(ctx context.Context, chatID, gameID int64, day model.Day) (*model.Session, error) {
	sessions, err := s.ListOpen(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var found *model.Session
	for _, session := range sessions {
		if session.GameID != gameID || session.Day != day {
			continue
		}
		if found == nil || session.WeekStart.After(found.WeekStart) {
			found = session
		}
	}
	if found == nil {
		return nil, ErrSessionNotFound
	}
	return found, nil
}

// View loads a session's game and active bookings.
func (s *SessionService) View(ctx context.Context, session *model.Session) (*SessionView, error) {
	game, err := s.store.GetGame(ctx, session.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	bookings, err := s.store.ListActiveBookings(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return &SessionView{Session: session, Game: game, Bookings: bookings}, nil
}

// Resolve computes the optimal play window of a session.
func (s *SessionService) Resolve(ctx context.Context, id int64) (Resolution, error) {
	bookings, err := s.store.ListActiveBookings(ctx, id)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to list bookings: %w", err)
	}
	return Resolve(bookings), nil
}

// UserBookings returns the user's active bookings in the open sessions of a
// chat, Saturday first.
func (s *SessionService) UserBookings(ctx context.Context, chatID, userID int64) ([]*UserBooking, error) {
	sessions, err := s.ListOpen(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var out []*UserBooking
	for _, session := range sessions {
		b, err := s.store.GetActiveBooking(ctx, session.ID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get booking: %w", err)
		}
		game, err := s.store.GetGame(ctx, session.GameID)
		if err != nil {
			return nil, fmt.Errorf("failed to get game: %w", err)
		}
		out = append(out, &UserBooking{Session: session, Game: game, Booking: b})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Session.Date().Before(out[j].Session.Date())
	})
	return out, nil
}
