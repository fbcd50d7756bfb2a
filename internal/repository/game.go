package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"weekend-booking-bot/internal/model"
)

// GameRepository handles game persistence.
type GameRepository struct {
	db DBTX
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(db DBTX) *GameRepository {
	return &GameRepository{db: db}
}

// GetGameByName retrieves a game by name, ignoring case.
// Returns ErrNotFound if no game matches.
func (r *GameRepository) GetGameByName(ctx context.Context, name string) (*model.Game, error) {
	const query = `
		SELECT id, name, max_slots
		FROM games
		WHERE LOWER(name) = LOWER($1)
	`

	var game model.Game
	err := r.db.QueryRow(ctx, query, name).Scan(&game.ID, &game.Name, &game.MaxSlots)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return &game, nil
}

// GetGame retrieves a game by ID.
func (r *GameRepository) GetGame(ctx context.Context, id int64) (*model.Game, error) {
	const query = `
		SELECT id, name, max_slots
		FROM games
		WHERE id = $1
	`

	var game model.Game
	err := r.db.QueryRow(ctx, query, id).Scan(&game.ID, &game.Name, &game.MaxSlots)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return &game, nil
}

// ListGames returns all games ordered by ID.
func (r *GameRepository) ListGames(ctx context.Context) ([]*model.Game, error) {
	const query = `SELECT id, name, max_slots FROM games ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*model.Game
	for rows.Next() {
		var game model.Game
		if err := rows.Scan(&game.ID, &game.Name, &game.MaxSlots); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, &game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	return games, nil
}

// UpsertGame creates a game or updates the slot count of an existing one.
func (r *GameRepository) UpsertGame(ctx context.Context, name string, maxSlots int) (*model.Game, error) {
	const query = `
		INSERT INTO games (name, max_slots)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET max_slots = EXCLUDED.max_slots
		RETURNING id, name, max_slots
	`

	var game model.Game
	err := r.db.QueryRow(ctx, query, name, maxSlots).Scan(&game.ID, &game.Name, &game.MaxSlots)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert game: %w", err)
	}

	return &game, nil
}
