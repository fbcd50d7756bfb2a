package handler

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/service"
)

const (
	leaderboardSize = 10
	cancellersSize  = 3
)

// displayName returns the name a user is shown and stored under.
func displayName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("User%d", u.ID)
}

func mention(username string) string {
	return "@" + username
}

// RenderWeekly renders the combined weekly message of one game. views are
// the game's sessions of one week, Saturday first.
func RenderWeekly(views []*service.SessionView) string {
	if len(views) == 0 {
		return ""
	}

	var b strings.Builder
	game := views[0].Game
	fmt.Fprintf(&b, "🎮 %s, weekend of %s\n", game.Name, views[0].Session.WeekStart.Format("02.01"))

	for _, v := range views {
		b.WriteString("━━━━━━━━━━━━━━━\n")
		renderDay(&b, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDay(b *strings.Builder, v *service.SessionView) {
	status := "🟢 open"
	if !v.Session.IsOpen() {
		status = "🔴 closed"
	}
	fmt.Fprintf(b, "📅 %s, %s (%s)\n", v.Session.Day.Title(), v.Session.Date().Format("02.01"), status)

	confirmed := v.Confirmed()
	fmt.Fprintf(b, "✅ Slots (%d/%d):\n", len(confirmed), v.Game.MaxSlots)
	if len(confirmed) == 0 {
		b.WriteString("— no bookings yet\n")
	}
	for _, bk := range confirmed {
		fmt.Fprintf(b, "%d. %s (%s)\n", bk.Position, mention(bk.Username), bk.Range())
	}

	if waitlist := v.Waitlist(); len(waitlist) > 0 {
		b.WriteString("⏳ Waitlist:\n")
		for i, bk := range waitlist {
			fmt.Fprintf(b, "%d. %s (%s)\n", v.Game.MaxSlots+1+i, mention(bk.Username), bk.Range())
		}
	}

	res := v.Resolve()
	switch res.Outcome {
	case service.Feasible:
		fmt.Fprintf(b, "⏰ Best time: %s (everyone can)\n", res.Window)
	case service.Infeasible:
		b.WriteString("⚠️ No common time for all players\n")
	}
}

// RenderBookResult describes a new booking to the user who made it.
func RenderBookResult(res *service.BookResult, day model.Day) string {
	if res.Confirmed() {
		return fmt.Sprintf("✅ You're in! Slot %d/%d for %s on %s (%s).",
			res.Booking.Position, res.Game.MaxSlots, res.Game.Name, day.Title(), res.Booking.Range())
	}
	return fmt.Sprintf("⏳ All slots are taken. You're #%d on the waitlist for %s on %s.",
		res.QueueRank, res.Game.Name, day.Title())
}

// RenderPromoted announces that a waitlisted player got a slot.
func RenderPromoted(res *service.CancelResult, day model.Day) string {
	return fmt.Sprintf("🎉 %s, a slot opened up. You're in for %s on %s!",
		mention(res.Promoted.Username), res.Game.Name, day.Title())
}

// RenderUserStats renders /mystats.
func RenderUserStats(name string, stats *model.UserStats) string {
	if stats.TotalBookings == 0 && stats.TotalCancellations == 0 && stats.TotalPlayed == 0 {
		return fmt.Sprintf("📊 %s has no booking history yet.", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Stats for %s\n", name)
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📝 Booked: %d\n", stats.TotalBookings)
	fmt.Fprintf(&b, "🎮 Played: %d\n", stats.TotalPlayed)
	fmt.Fprintf(&b, "❌ Cancelled: %d\n", stats.TotalCancellations)
	fmt.Fprintf(&b, "🎯 Reliability: %.0f%%\n", stats.Reliability())

	if len(stats.GameOrder) > 0 {
		b.WriteString("━━━━━━━━━━━━━━━\n")
		for _, name := range stats.GameOrder {
			g := stats.ByGame[name]
			fmt.Fprintf(&b, "%s: %d booked, %d played, %d cancelled\n", name, g.Booked, g.Played, g.Cancelled)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderLeaderboard renders /stats from the players sorted by played.
func RenderLeaderboard(players []*model.PlayerStats) string {
	var b strings.Builder
	b.WriteString("🏆 Top players\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")

	top := players
	if len(top) > leaderboardSize {
		top = top[:leaderboardSize]
	}
	if len(top) == 0 {
		b.WriteString("No games played yet\n")
	}

	medals := []string{"🥇", "🥈", "🥉"}
	for i, p := range top {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s %s: %d played\n", rank, p.Username, p.Played)
	}

	if cancellers := service.TopCancellers(players, cancellersSize); len(cancellers) > 0 {
		b.WriteString("━━━━━━━━━━━━━━━\n")
		b.WriteString("🐔 Top cancellers\n")
		for i, p := range cancellers {
			fmt.Fprintf(&b, "%d. %s: %d cancelled\n", i+1, p.Username, p.Cancelled)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderReminder mentions the confirmed players of a session that starts
// soon.
func RenderReminder(view *service.SessionView, start string) string {
	var mentions []string
	for _, b := range view.Confirmed() {
		mentions = append(mentions, mention(b.Username))
	}
	return fmt.Sprintf("⏰ %s on %s starts at %s. Get ready!\n\n%s",
		view.Game.Name, view.Session.Day.Title(), start, strings.Join(mentions, " "))
}

const helpText = `🎮 Weekend booking bot

Commands:
/book - book a slot
/book sat 18:00-22:00 - quick booking
/cancel - cancel a booking
/cancel sat - quick cancel
/edit sat 19:00-23:00 - change your time
/status - who is playing
/mystats - your stats
/stats - group stats
/help - this help

Admin:
/open - open booking for the week
/close - close booking
/remove @user sat - remove a player

Days: sat, sun
Time: HH:MM-HH:MM or HH-HH, 00:00 means midnight`

const startText = `👋 I keep track of who plays on the weekend.

• Booking opens every week and closes on Sunday night
• Use /book and pick a day and time
• When all slots are taken you join the waitlist
• If someone cancels, the first in the waitlist gets the slot
• I remind everyone before the game starts

/book - book a slot
/help - all commands`
