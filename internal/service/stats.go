package service

import (
	"context"
	"fmt"
	"sort"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/repository"
)

// AggregateUser folds a user's history into totals and per-game counts.
func AggregateUser(entries []*model.HistoryEntry) *model.UserStats {
	stats := &model.UserStats{ByGame: make(map[string]*model.GameStats)}

	for _, e := range entries {
		game, ok := stats.ByGame[e.GameName]
		if !ok {
			game = &model.GameStats{}
			stats.ByGame[e.GameName] = game
			stats.GameOrder = append(stats.GameOrder, e.GameName)
		}

		switch e.Action {
		case model.ActionBooked:
			stats.TotalBookings++
			game.Booked++
		case model.ActionCancelled:
			stats.TotalCancellations++
			game.Cancelled++
		case model.ActionPlayed:
			stats.TotalPlayed++
			game.Played++
		}
	}

	return stats
}

// AggregateGroup folds the whole history into per-user played and cancelled
// counts sorted by played, descending. Ties keep the order in which users
// first appear in entries, and each user keeps the first username seen.
func AggregateGroup(entries []*model.HistoryEntry) []*model.PlayerStats {
	byUser := make(map[int64]*model.PlayerStats)
	var players []*model.PlayerStats

	for _, e := range entries {
		p, ok := byUser[e.UserID]
		if !ok {
			p = &model.PlayerStats{UserID: e.UserID, Username: e.Username}
			byUser[e.UserID] = p
			players = append(players, p)
		}

		switch e.Action {
		case model.ActionPlayed:
			p.Played++
		case model.ActionCancelled:
			p.Cancelled++
		}
	}

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Played > players[j].Played
	})
	return players
}

// TopCancellers returns up to limit players with at least one cancellation,
// most cancellations first. Ties keep the order of players.
func TopCancellers(players []*model.PlayerStats, limit int) []*model.PlayerStats {
	var out []*model.PlayerStats
	for _, p := range players {
		if p.Cancelled > 0 {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Cancelled > out[j].Cancelled
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// StatsService serves reporting views over the booking history. Views are
// recomputed on every call.
type StatsService struct {
	history repository.HistoryStore
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(history repository.HistoryStore) *StatsService {
	return &StatsService{history: history}
}

// UserStats returns the summary of a user's booking history.
func (s *StatsService) UserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	entries, err := s.history.ListUserHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user history: %w", err)
	}
	return AggregateUser(entries), nil
}

// Leaderboard returns every player's played and cancelled counts, most
// played first. Usernames come from each player's latest entry.
func (s *StatsService) Leaderboard(ctx context.Context) ([]*model.PlayerStats, error) {
	entries, err := s.history.ListHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return AggregateGroup(entries), nil
}
