package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order. Every statement is idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "games table",
		sql: `
			CREATE TABLE IF NOT EXISTS games (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(50) NOT NULL UNIQUE,
				max_slots INT NOT NULL CHECK (max_slots >= 1)
			);
		`,
	},
	{
		name: "sessions table",
		sql: `
			CREATE TABLE IF NOT EXISTS sessions (
				id BIGSERIAL PRIMARY KEY,
				game_id BIGINT NOT NULL REFERENCES games(id),
				chat_id BIGINT NOT NULL,
				day VARCHAR(10) NOT NULL CHECK (day IN ('saturday', 'sunday')),
				week_start DATE NOT NULL,
				status VARCHAR(10) NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
				message_id BIGINT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (game_id, chat_id, day, week_start)
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_chat_status ON sessions(chat_id, status);
		`,
	},
	{
		name: "bookings table",
		sql: `
			CREATE TABLE IF NOT EXISTS bookings (
				id BIGSERIAL PRIMARY KEY,
				session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				user_id BIGINT NOT NULL,
				username VARCHAR(255) NOT NULL DEFAULT '',
				time_from TIME NOT NULL,
				time_to TIME NOT NULL,
				position INT NOT NULL CHECK (position >= 1),
				status VARCHAR(10) NOT NULL CHECK (status IN ('confirmed', 'waitlist', 'cancelled')),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_active_user
				ON bookings(session_id, user_id) WHERE status <> 'cancelled';
			CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_active_position
				ON bookings(session_id, position) WHERE status <> 'cancelled';
		`,
	},
	{
		name: "booking_history table",
		sql: `
			CREATE TABLE IF NOT EXISTS booking_history (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				username VARCHAR(255) NOT NULL DEFAULT '',
				game VARCHAR(50) NOT NULL,
				action VARCHAR(10) NOT NULL CHECK (action IN ('booked', 'cancelled', 'played')),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_booking_history_user ON booking_history(user_id, created_at);
		`,
	},
}

// Migrate creates the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
