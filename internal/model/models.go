// Package model defines the data models for the weekend booking bot.
package model

import (
	"strings"
	"time"

	"weekend-booking-bot/internal/timerange"
)

// Game is a bookable game with a fixed number of confirmed slots.
type Game struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	MaxSlots int    `db:"max_slots"`
}

// Day is one of the two bookable weekend days.
type Day string

// Bookable days.
const (
	Saturday Day = "saturday"
	Sunday   Day = "sunday"
)

// Days returns the bookable days in calendar order.
func Days() []Day {
	return []Day{Saturday, Sunday}
}

// ParseDay maps user input (full name or short form) to a Day.
func ParseDay(s string) (Day, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sat", "saturday", "сб", "субота":
		return Saturday, true
	case "sun", "sunday", "нд", "неділя":
		return Sunday, true
	}
	return "", false
}

// Valid reports whether d is a bookable day.
func (d Day) Valid() bool {
	return d == Saturday || d == Sunday
}

// Offset returns the number of days after Monday.
func (d Day) Offset() int {
	if d == Sunday {
		return 6
	}
	return 5
}

// Date returns the calendar date of this day in the week starting at weekStart.
func (d Day) Date(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, d.Offset())
}

// Title returns the display name of the day.
func (d Day) Title() string {
	if d == Sunday {
		return "Sunday"
	}
	return "Saturday"
}

// Session status values. A session only ever moves from open to closed.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// SessionKey identifies a session: one per game, chat, day and week.
type SessionKey struct {
	GameID    int64
	ChatID    int64
	Day       Day
	WeekStart time.Time
}

// Session is one bookable occurrence of a game on a weekend day.
type Session struct {
	ID        int64     `db:"id"`
	GameID    int64     `db:"game_id"`
	ChatID    int64     `db:"chat_id"`
	Day       Day       `db:"day"`
	WeekStart time.Time `db:"week_start"`
	Status    string    `db:"status"`
	MessageID *int64    `db:"message_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Key returns the uniqueness key of the session.
func (s *Session) Key() SessionKey {
	return SessionKey{GameID: s.GameID, ChatID: s.ChatID, Day: s.Day, WeekStart: s.WeekStart}
}

// IsOpen reports whether bookings are accepted.
func (s *Session) IsOpen() bool {
	return s.Status == SessionOpen
}

// Date returns the calendar date the session is played on.
func (s *Session) Date() time.Time {
	return s.Day.Date(s.WeekStart)
}

// Booking status values. Cancelled is terminal.
const (
	BookingConfirmed = "confirmed"
	BookingWaitlist  = "waitlist"
	BookingCancelled = "cancelled"
)

// Booking is a user's reservation within a session.
type Booking struct {
	ID        int64               `db:"id"`
	SessionID int64               `db:"session_id"`
	UserID    int64               `db:"user_id"`
	Username  string              `db:"username"`
	TimeFrom  timerange.TimeOfDay `db:"time_from"`
	TimeTo    timerange.TimeOfDay `db:"time_to"`
	Position  int                 `db:"position"`
	Status    string              `db:"status"`
	CreatedAt time.Time           `db:"created_at"`
}

// Range returns the booked time window.
func (b *Booking) Range() timerange.Range {
	return timerange.Range{From: b.TimeFrom, To: b.TimeTo}
}

// IsActive reports whether the booking still holds a position.
func (b *Booking) IsActive() bool {
	return b.Status != BookingCancelled
}

// History actions.
const (
	ActionBooked    = "booked"
	ActionCancelled = "cancelled"
	ActionPlayed    = "played"
)

// HistoryEntry is an append-only record of a booking event.
type HistoryEntry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	GameName  string    `db:"game"`
	Action    string    `db:"action"`
	CreatedAt time.Time `db:"created_at"`
}
