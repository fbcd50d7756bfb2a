package model

// GameStats holds per-game action counts for a user.
type GameStats struct {
	Booked    int
	Cancelled int
	Played    int
}

// UserStats summarizes a user's booking history.
type UserStats struct {
	TotalBookings      int
	TotalCancellations int
	TotalPlayed        int
	ByGame             map[string]*GameStats
	// GameOrder lists games in the order they first appear in the history.
	GameOrder []string
}

// Reliability returns played/booked as a percentage, or 0 with no bookings.
func (s *UserStats) Reliability() float64 {
	if s.TotalBookings == 0 {
		return 0
	}
	return float64(s.TotalPlayed) / float64(s.TotalBookings) * 100
}

// PlayerStats is one row of the group leaderboard.
type PlayerStats struct {
	UserID    int64
	Username  string
	Played    int
	Cancelled int
}
