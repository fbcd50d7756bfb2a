package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"weekend-booking-bot/internal/model"
)

// SessionRepository handles booking session persistence.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, game_id, chat_id, day, week_start, status, message_id, created_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	var day string
	err := row.Scan(
		&s.ID,
		&s.GameID,
		&s.ChatID,
		&day,
		&s.WeekStart,
		&s.Status,
		&s.MessageID,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Day = model.Day(day)
	return &s, nil
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session does not exist.
func (r *SessionRepository) GetSession(ctx context.Context, id int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// FindSession retrieves the session for a (game, chat, day, week) key.
func (r *SessionRepository) FindSession(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE game_id = $1 AND chat_id = $2 AND day = $3 AND week_start = $4
	`

	s, err := scanSession(r.db.QueryRow(ctx, query, key.GameID, key.ChatID, string(key.Day), key.WeekStart))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s, nil
}

// InsertSession creates a new open session.
// Returns ErrDuplicate if a session with the same key already exists.
func (r *SessionRepository) InsertSession(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	query := `
		INSERT INTO sessions (game_id, chat_id, day, week_start, status, created_at)
		VALUES ($1, $2, $3, $4, 'open', NOW())
		RETURNING ` + sessionColumns

	s, err := scanSession(r.db.QueryRow(ctx, query, key.GameID, key.ChatID, string(key.Day), key.WeekStart))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// LockSession retrieves a session and takes a row lock held until the
// surrounding transaction ends.
func (r *SessionRepository) LockSession(ctx context.Context, id int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 FOR UPDATE`

	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	return s, nil
}

// ListOpenSessions returns the open sessions of a chat.
func (r *SessionRepository) ListOpenSessions(ctx context.Context, chatID int64) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE chat_id = $1 AND status = 'open'
		ORDER BY game_id, week_start, day
	`
	return r.querySessions(ctx, query, chatID)
}

// ListAllOpenSessions returns open sessions across all chats.
func (r *SessionRepository) ListAllOpenSessions(ctx context.Context) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'open'
		ORDER BY chat_id, game_id, week_start, day
	`
	return r.querySessions(ctx, query)
}

// SetSessionStatus updates the status of a session.
func (r *SessionRepository) SetSessionStatus(ctx context.Context, id int64, status string) error {
	const query = `UPDATE sessions SET status = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMessageID stores the Telegram message that renders the session.
func (r *SessionRepository) SetMessageID(ctx context.Context, id int64, messageID int64) error {
	const query = `UPDATE sessions SET message_id = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, messageID)
	if err != nil {
		return fmt.Errorf("failed to update message id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
