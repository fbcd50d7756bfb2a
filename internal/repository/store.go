// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"weekend-booking-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// GameStore persists games.
type GameStore interface {
	// GetGameByName looks a game up by name, case-insensitively.
	GetGameByName(ctx context.Context, name string) (*model.Game, error)
	GetGame(ctx context.Context, id int64) (*model.Game, error)
	ListGames(ctx context.Context) ([]*model.Game, error)
	// UpsertGame creates the game or updates max_slots of an existing one.
	UpsertGame(ctx context.Context, name string, maxSlots int) (*model.Game, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	GetSession(ctx context.Context, id int64) (*model.Session, error)
	// FindSession returns the session with the given key regardless of status.
	FindSession(ctx context.Context, key model.SessionKey) (*model.Session, error)
	// InsertSession creates an open session. Returns ErrDuplicate if the key exists.
	InsertSession(ctx context.Context, key model.SessionKey) (*model.Session, error)
	// LockSession returns the session and, inside a transaction, holds a
	// write lock on it until the transaction ends.
	LockSession(ctx context.Context, id int64) (*model.Session, error)
	ListOpenSessions(ctx context.Context, chatID int64) ([]*model.Session, error)
	ListAllOpenSessions(ctx context.Context) ([]*model.Session, error)
	SetSessionStatus(ctx context.Context, id int64, status string) error
	SetMessageID(ctx context.Context, id int64, messageID int64) error
}

// BookingStore persists bookings.
type BookingStore interface {
	// ListActiveBookings returns non-cancelled bookings ordered by position.
	ListActiveBookings(ctx context.Context, sessionID int64) ([]*model.Booking, error)
	// GetActiveBooking returns the user's non-cancelled booking in the session.
	GetActiveBooking(ctx context.Context, sessionID, userID int64) (*model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) (*model.Booking, error)
	// UpdateBooking writes position, status and time range of b.
	UpdateBooking(ctx context.Context, b *model.Booking) error
}

// HistoryStore persists the append-only booking history.
type HistoryStore interface {
	AddHistory(ctx context.Context, e *model.HistoryEntry) error
	// ListHistory returns all entries, newest first.
	ListHistory(ctx context.Context) ([]*model.HistoryEntry, error)
	// ListUserHistory returns a user's entries, oldest first.
	ListUserHistory(ctx context.Context, userID int64) ([]*model.HistoryEntry, error)
}

// Store is the persistence collaborator of the booking services.
type Store interface {
	GameStore
	SessionStore
	BookingStore
	HistoryStore

	// WithTx runs fn against a transactional view of the store. Changes made
	// through tx are committed if fn returns nil and discarded otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
