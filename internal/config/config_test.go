package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "Europe/Warsaw", cfg.Booking.Timezone)
	assert.Equal(t, "PUBG", cfg.Booking.DefaultGame)
	assert.Equal(t, []GameConfig{{Name: "PUBG", MaxSlots: 4}, {Name: "CS", MaxSlots: 5}}, cfg.Booking.Games)
	assert.Equal(t, "0 18 * * THU", cfg.Schedule.OpenCron)
	assert.Equal(t, "0 23 * * SUN", cfg.Schedule.CloseCron)
	assert.Equal(t, time.Hour, cfg.Schedule.ReminderLead)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Warsaw", loc.String())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
bot:
  token: from-file
booking:
  chat_id: -100123
  games:
    - name: Dota
      max_slots: 5
admin:
  ids: [1, 2]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Bot.Token)
	assert.Equal(t, int64(-100123), cfg.Booking.ChatID)
	assert.Equal(t, []GameConfig{{Name: "Dota", MaxSlots: 5}}, cfg.Booking.Games)
	assert.True(t, cfg.IsAdmin(2))
	assert.False(t, cfg.IsAdmin(3))
}

func TestValidate(t *testing.T) {
	cfg := &Config{Booking: BookingConfig{Timezone: "Mars/Olympus", Games: []GameConfig{{Name: "PUBG", MaxSlots: 4}}}}
	assert.Error(t, cfg.Validate())

	cfg.Booking.Timezone = "UTC"
	assert.NoError(t, cfg.Validate())

	cfg.Booking.Games = []GameConfig{{Name: "PUBG", MaxSlots: 0}}
	assert.Error(t, cfg.Validate())
}

// Property 1: an empty whitelist allows every chat; a non-empty one allows
// exactly its members.
func TestIsChatAllowedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chats := rapid.SliceOfDistinct(rapid.Int64Range(-1000, 1000), func(v int64) int64 { return v }).Draw(t, "chats")
		probe := rapid.Int64Range(-1000, 1000).Draw(t, "probe")

		cfg := &Config{Whitelist: WhitelistConfig{Chats: chats}}
		want := len(chats) == 0
		for _, c := range chats {
			if c == probe {
				want = true
			}
		}
		if got := cfg.IsChatAllowed(probe); got != want {
			t.Fatalf("IsChatAllowed(%d) = %v, want %v (whitelist %v)", probe, got, want, chats)
		}
	})
}
