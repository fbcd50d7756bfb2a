package handler

import (
	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/service"
)

// StatsHandler handles the statistics commands.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleMyStats handles the /mystats command.
func (h *StatsHandler) HandleMyStats(c tele.Context) error {
	ctx := requestContext(c)
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	stats, err := h.stats.UserStats(ctx, sender.ID)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}
	return c.Reply(RenderUserStats(displayName(sender), stats))
}

// HandleStats handles the /stats command.
// Shows the top players by games played and the top cancellers.
func (h *StatsHandler) HandleStats(c tele.Context) error {
	ctx := requestContext(c)

	players, err := h.stats.Leaderboard(ctx)
	if err != nil {
		return c.Reply(errorText(ctx, err))
	}
	return c.Reply(RenderLeaderboard(players))
}
