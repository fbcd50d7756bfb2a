// Package scheduler drives the weekly booking cycle: opening sessions,
// closing them and reminding players before the game starts.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/service"
	"weekend-booking-bot/internal/timerange"
)

// Notifier publishes scheduler events to the chat.
type Notifier interface {
	// WeekOpened announces newly opened sessions.
	WeekOpened(ctx context.Context, chatID int64, views []*service.SessionView) error
	// WeekClosed announces that booking for the week has ended.
	WeekClosed(ctx context.Context, chatID int64, closed int) error
	// Reminder tells the confirmed players of a session that it starts soon.
	Reminder(ctx context.Context, view *service.SessionView, window timerange.Range) error
}

// Sessions is the part of the session service the scheduler drives.
type Sessions interface {
	CurrentWeek() time.Time
	OpenWeek(ctx context.Context, chatID int64, weekStart time.Time) ([]*model.Session, error)
	CloseAll(ctx context.Context, chatID int64) (int, error)
	ListAllOpen(ctx context.Context) ([]*model.Session, error)
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	View(ctx context.Context, session *model.Session) (*service.SessionView, error)
}

// Config holds scheduler settings.
type Config struct {
	// ChatID receives the weekly open and close jobs. 0 disables them.
	ChatID       int64
	OpenSpec     string
	CloseSpec    string
	ReminderSpec string
	ReminderLead time.Duration
	Location     *time.Location
}

// Scheduler runs the weekly jobs on cron schedules.
type Scheduler struct {
	cfg      Config
	sessions Sessions
	notifier Notifier
	cron     *cron.Cron
	now      func() time.Time

	mu        sync.Mutex
	reminders map[int64]*reminder
}

type reminder struct {
	at    time.Time
	timer *time.Timer
}

// New creates a Scheduler and registers its jobs. It returns an error if a
// cron expression does not parse.
func New(cfg Config, sessions Sessions, notifier Notifier) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	logger := log.With().Str("component", "scheduler").Logger()
	cronLogger := cron.PrintfLogger(&logger)

	s := &Scheduler{
		cfg:      cfg,
		sessions: sessions,
		notifier: notifier,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		now:       time.Now,
		reminders: make(map[int64]*reminder),
	}

	if cfg.ChatID != 0 {
		if err := s.addJob("open week", cfg.OpenSpec, s.OpenWeek); err != nil {
			return nil, err
		}
		if err := s.addJob("close week", cfg.CloseSpec, s.CloseWeek); err != nil {
			return nil, err
		}
	}
	if err := s.addJob("plan reminders", cfg.ReminderSpec, s.PlanReminders); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) addJob(name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if err := job(ctx); err != nil {
			log.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
	}
	return nil
}

// Start starts the cron loop and plans reminders for sessions that are
// already open.
func (s *Scheduler) Start() {
	s.cron.Start()
	if err := s.PlanReminders(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to plan reminders")
	}
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the cron loop, waits for running jobs and cancels pending
// reminders.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	for id, r := range s.reminders {
		r.timer.Stop()
		delete(s.reminders, id)
	}
	s.mu.Unlock()

	log.Info().Msg("Scheduler stopped")
}

// OpenWeek opens the current week's sessions in the configured chat and
// announces them. Re-running it does not create duplicates.
func (s *Scheduler) OpenWeek(ctx context.Context) error {
	sessions, err := s.sessions.OpenWeek(ctx, s.cfg.ChatID, s.sessions.CurrentWeek())
	if err != nil {
		return fmt.Errorf("failed to open week: %w", err)
	}

	views := make([]*service.SessionView, 0, len(sessions))
	for _, session := range sessions {
		if !session.IsOpen() {
			continue
		}
		view, err := s.sessions.View(ctx, session)
		if err != nil {
			return err
		}
		views = append(views, view)
	}

	log.Info().Int64("chat_id", s.cfg.ChatID).Int("sessions", len(views)).Msg("Week opened")
	return s.notifier.WeekOpened(ctx, s.cfg.ChatID, views)
}

// CloseWeek closes every open session of the configured chat.
func (s *Scheduler) CloseWeek(ctx context.Context) error {
	closed, err := s.sessions.CloseAll(ctx, s.cfg.ChatID)
	if err != nil {
		return fmt.Errorf("failed to close week: %w", err)
	}
	return s.notifier.WeekClosed(ctx, s.cfg.ChatID, closed)
}

// PlanReminders schedules one reminder per open session at the start of
// its optimal window minus the configured lead. Reminders whose time has
// passed are skipped; a session whose window moved gets its timer replaced.
func (s *Scheduler) PlanReminders(ctx context.Context) error {
	sessions, err := s.sessions.ListAllOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open sessions: %w", err)
	}

	now := s.now()
	planned := make(map[int64]time.Time)
	for _, session := range sessions {
		view, err := s.sessions.View(ctx, session)
		if err != nil {
			return err
		}
		res := view.Resolve()
		if res.Outcome != service.Feasible {
			continue
		}
		at := s.reminderTime(session, res.Window)
		if at.After(now) {
			planned[session.ID] = at
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.reminders {
		if at, ok := planned[id]; !ok || !at.Equal(r.at) {
			r.timer.Stop()
			delete(s.reminders, id)
		}
	}
	for id, at := range planned {
		if _, ok := s.reminders[id]; ok {
			continue
		}
		sessionID := id
		r := &reminder{at: at}
		r.timer = time.AfterFunc(at.Sub(now), func() { s.fire(sessionID, r) })
		s.reminders[id] = r
		log.Debug().Int64("session_id", id).Time("at", at).Msg("Reminder planned")
	}
	return nil
}

// Reminders returns the planned reminder time of each session.
func (s *Scheduler) Reminders() map[int64]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]time.Time, len(s.reminders))
	for id, r := range s.reminders {
		out[id] = r.at
	}
	return out
}

func (s *Scheduler) reminderTime(session *model.Session, window timerange.Range) time.Time {
	date := session.Date()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.cfg.Location)
	return timerange.At(day, window.From).Add(-s.cfg.ReminderLead)
}

// fire sends the reminder if the session is still open and still has a
// common window. The planned entry is dropped only if it is still r; a
// re-plan may have replaced it in the meantime.
func (s *Scheduler) fire(sessionID int64, r *reminder) {
	s.mu.Lock()
	if s.reminders[sessionID] == r {
		delete(s.reminders, sessionID)
	}
	s.mu.Unlock()

	if err := s.remind(context.Background(), sessionID); err != nil {
		log.Error().Err(err).Int64("session_id", sessionID).Msg("Failed to send reminder")
	}
}

func (s *Scheduler) remind(ctx context.Context, sessionID int64) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsOpen() {
		return nil
	}
	view, err := s.sessions.View(ctx, session)
	if err != nil {
		return err
	}
	res := view.Resolve()
	if res.Outcome != service.Feasible {
		return nil
	}
	return s.notifier.Reminder(ctx, view, res.Window)
}
