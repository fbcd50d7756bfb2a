// Package main is the entry point for the weekend booking bot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"weekend-booking-bot/internal/bot"
	"weekend-booking-bot/internal/config"
	"weekend-booking-bot/internal/metrics"
	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/pkg/db"
	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/repository"
	"weekend-booking-bot/internal/scheduler"
	"weekend-booking-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.DefaultContextLogger = &log.Logger

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timezone")
	}

	log.Info().Str("timezone", loc.String()).Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	store := repository.NewPostgresStore(dbPool.Pool)
	m := metrics.New(prometheus.DefaultRegisterer)

	// Session and booking services share one lock table.
	sessionLock := lock.NewKeyLock()
	userLock := lock.NewKeyLock()

	sessionService := service.NewSessionService(store, sessionLock, m, loc)
	bookingService := service.NewBookingService(store, sessionLock, m)
	statsService := service.NewStatsService(store)

	games := make([]model.Game, 0, len(cfg.Booking.Games))
	for _, g := range cfg.Booking.Games {
		games = append(games, model.Game{Name: g.Name, MaxSlots: g.MaxSlots})
	}
	if err := sessionService.SeedGames(ctx, games); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed games")
	}

	log.Info().
		Int("game_count", len(games)).
		Str("default_game", cfg.Booking.DefaultGame).
		Msg("Games seeded")

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:         cfg,
		SessionService: sessionService,
		BookingService: bookingService,
		StatsService:   statsService,
		UserLock:       userLock,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	sched, err := scheduler.New(scheduler.Config{
		ChatID:       cfg.Booking.ChatID,
		OpenSpec:     cfg.Schedule.OpenCron,
		CloseSpec:    cfg.Schedule.CloseCron,
		ReminderSpec: cfg.Schedule.ReminderCron,
		ReminderLead: cfg.Schedule.ReminderLead,
		Location:     loc,
	}, sessionService, telegramBot.Notifier())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	srv := newHTTPServer(cfg.Metrics.Addr, dbPool)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if srv != nil {
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("Metrics endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics endpoint failed")
			}
		}()
	}

	sched.Start()

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	sched.Stop()
	telegramBot.Stop()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics endpoint")
		}
	}

	log.Info().Msg("Bot stopped gracefully")
}

// newHTTPServer serves /metrics and /healthz. It returns nil when addr is
// empty.
func newHTTPServer(addr string, pool *db.Pool) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.HealthCheck(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
