package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"weekend-booking-bot/internal/model"
)

// BookingRepository handles booking persistence.
type BookingRepository struct {
	db DBTX
}

// NewBookingRepository creates a new BookingRepository instance.
func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, session_id, user_id, username, time_from, time_to, position, status, created_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	var from, to pgtype.Time
	err := row.Scan(
		&b.ID,
		&b.SessionID,
		&b.UserID,
		&b.Username,
		&from,
		&to,
		&b.Position,
		&b.Status,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.TimeFrom, err = fromPgTime(from); err != nil {
		return nil, err
	}
	if b.TimeTo, err = fromPgTime(to); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListActiveBookings returns the confirmed and waitlisted bookings of a
// session ordered by position.
func (r *BookingRepository) ListActiveBookings(ctx context.Context, sessionID int64) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE session_id = $1 AND status <> 'cancelled'
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}

// GetActiveBooking retrieves the user's non-cancelled booking in a session.
// Returns ErrNotFound if the user has none.
func (r *BookingRepository) GetActiveBooking(ctx context.Context, sessionID, userID int64) (*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE session_id = $1 AND user_id = $2 AND status <> 'cancelled'
	`

	b, err := scanBooking(r.db.QueryRow(ctx, query, sessionID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// InsertBooking stores a new booking and returns it with ID and timestamp set.
// Returns ErrDuplicate if the user already holds an active booking or the
// position is taken.
func (r *BookingRepository) InsertBooking(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	query := `
		INSERT INTO bookings (session_id, user_id, username, time_from, time_to, position, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + bookingColumns

	created, err := scanBooking(r.db.QueryRow(ctx, query,
		b.SessionID,
		b.UserID,
		b.Username,
		toPgTime(b.TimeFrom),
		toPgTime(b.TimeTo),
		b.Position,
		b.Status,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	return created, nil
}

// UpdateBooking writes the position, status and time range of a booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, b *model.Booking) error {
	const query = `
		UPDATE bookings
		SET position = $2, status = $3, time_from = $4, time_to = $5
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, b.ID, b.Position, b.Status, toPgTime(b.TimeFrom), toPgTime(b.TimeTo))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
