package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"weekend-booking-bot/internal/timerange"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	*GameRepository
	*SessionRepository
	*BookingRepository
	*HistoryRepository

	pool *pgxpool.Pool // nil inside a transaction
}

// NewPostgresStore creates a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return newPostgresStore(pool, pool)
}

func newPostgresStore(db DBTX, pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		GameRepository:    NewGameRepository(db),
		SessionRepository: NewSessionRepository(db),
		BookingRepository: NewBookingRepository(db),
		HistoryRepository: NewHistoryRepository(db),
		pool:              pool,
	}
}

// WithTx runs fn inside a database transaction. Nested calls reuse the
// enclosing transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(newPostgresStore(tx, nil))
	})
}

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// toPgTime converts a TimeOfDay into a TIME parameter.
func toPgTime(t timerange.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Minutes()) * 60 * 1_000_000, Valid: true}
}

// fromPgTime converts a scanned TIME column into a TimeOfDay.
func fromPgTime(t pgtype.Time) (timerange.TimeOfDay, error) {
	if !t.Valid {
		return 0, fmt.Errorf("unexpected NULL time")
	}
	return timerange.TimeOfDay(t.Microseconds / (60 * 1_000_000)), nil
}
