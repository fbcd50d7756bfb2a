// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // booking.timezone must resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// BookingConfig holds booking domain settings.
type BookingConfig struct {
	// ChatID is the group the scheduled jobs announce to. 0 disables them.
	ChatID      int64        `mapstructure:"chat_id"`
	Timezone    string       `mapstructure:"timezone"`
	DefaultGame string       `mapstructure:"default_game"`
	Games       []GameConfig `mapstructure:"games"`
}

// GameConfig describes a bookable game seeded at startup.
type GameConfig struct {
	Name     string `mapstructure:"name"`
	MaxSlots int    `mapstructure:"max_slots"`
}

// ScheduleConfig holds cron expressions for the weekly jobs.
type ScheduleConfig struct {
	OpenCron     string        `mapstructure:"open_cron"`
	CloseCron    string        `mapstructure:"close_cron"`
	ReminderCron string        `mapstructure:"reminder_cron"`
	ReminderLead time.Duration `mapstructure:"reminder_lead"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	// Addr is the listen address of /metrics. Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, BOOKING_CHAT_ID
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "booking")
	v.SetDefault("database.name", "booking")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Booking defaults
	v.SetDefault("booking.chat_id", 0)
	v.SetDefault("booking.timezone", "Europe/Warsaw")
	v.SetDefault("booking.default_game", "PUBG")
	v.SetDefault("booking.games", []map[string]any{
		{"name": "PUBG", "max_slots": 4},
		{"name": "CS", "max_slots": 5},
	})

	// Schedule defaults
	v.SetDefault("schedule.open_cron", "0 18 * * THU")
	v.SetDefault("schedule.close_cron", "0 23 * * SUN")
	v.SetDefault("schedule.reminder_cron", "0 * * * *")
	v.SetDefault("schedule.reminder_lead", "1h")

	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if len(c.Booking.Games) == 0 {
		return fmt.Errorf("at least one game must be configured")
	}
	for _, g := range c.Booking.Games {
		if g.Name == "" || g.MaxSlots < 1 {
			return fmt.Errorf("invalid game config %q: max_slots must be at least 1", g.Name)
		}
	}
	return nil
}

// Location returns the configured booking timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Booking.Timezone, err)
	}
	return loc, nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
