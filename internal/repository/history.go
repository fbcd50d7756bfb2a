package repository

import (
	"context"
	"fmt"

	"weekend-booking-bot/internal/model"
)

// HistoryRepository handles the booking history log.
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository creates a new HistoryRepository instance.
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AddHistory appends an entry to the history log.
// The entry's ID and CreatedAt are set from the database.
func (r *HistoryRepository) AddHistory(ctx context.Context, e *model.HistoryEntry) error {
	const query = `
		INSERT INTO booking_history (user_id, username, game, action, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, e.UserID, e.Username, e.GameName, e.Action).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add history entry: %w", err)
	}
	return nil
}

// ListHistory returns every history entry, newest first.
func (r *HistoryRepository) ListHistory(ctx context.Context) ([]*model.HistoryEntry, error) {
	const query = `
		SELECT id, user_id, username, game, action, created_at
		FROM booking_history
		ORDER BY created_at DESC, id DESC
	`
	return r.queryHistory(ctx, query)
}

// ListUserHistory returns a user's history entries, oldest first.
func (r *HistoryRepository) ListUserHistory(ctx context.Context, userID int64) ([]*model.HistoryEntry, error) {
	const query = `
		SELECT id, user_id, username, game, action, created_at
		FROM booking_history
		WHERE user_id = $1
		ORDER BY created_at, id
	`
	return r.queryHistory(ctx, query, userID)
}

func (r *HistoryRepository) queryHistory(ctx context.Context, query string, args ...any) ([]*model.HistoryEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.GameName, &e.Action, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}
