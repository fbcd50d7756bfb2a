// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"weekend-booking-bot/internal/config"
	"weekend-booking-bot/internal/handler"
	"weekend-booking-bot/internal/pkg/lock"
	"weekend-booking-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot       *tele.Bot
	cfg       *config.Config
	publisher *handler.Publisher
	notifier  *Notifier

	// Handlers
	bookingHandler *handler.BookingHandler
	adminHandler   *handler.AdminHandler
	statsHandler   *handler.StatsHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	SessionService *service.SessionService
	BookingService *service.BookingService
	StatsService   *service.StatsService
	UserLock       *lock.KeyLock
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler failed")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:       teleBot,
		cfg:       deps.Config,
		publisher: handler.NewPublisher(teleBot, deps.SessionService),
	}
	b.notifier = NewNotifier(b.publisher)

	defaultGame := deps.Config.Booking.DefaultGame
	b.bookingHandler = handler.NewBookingHandler(deps.SessionService, deps.BookingService, b.publisher, deps.UserLock, defaultGame)
	b.adminHandler = handler.NewAdminHandler(deps.SessionService, deps.BookingService, b.publisher, defaultGame)
	b.statsHandler = handler.NewStatsHandler(deps.StatsService)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware. Recovery runs outermost so
// it also covers the other middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.bookingHandler.HandleStart)
	b.bot.Handle("/help", b.bookingHandler.HandleHelp)
	b.bot.Handle("/chatid", b.bookingHandler.HandleChatID)
	b.bot.Handle("/book", b.bookingHandler.HandleBook)
	b.bot.Handle("/cancel", b.bookingHandler.HandleCancel)
	b.bot.Handle("/edit", b.bookingHandler.HandleEdit)
	b.bot.Handle("/status", b.bookingHandler.HandleStatus)

	b.bot.Handle("/mystats", b.statsHandler.HandleMyStats)
	b.bot.Handle("/stats", b.statsHandler.HandleStats)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/open", b.adminHandler.HandleOpen)
	adminGroup.Handle("/close", b.adminHandler.HandleClose)
	adminGroup.Handle("/remove", b.adminHandler.HandleRemove)

	b.bot.Handle(tele.OnCallback, b.bookingHandler.HandleCallback)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// Notifier returns the notifier the scheduler publishes through.
func (b *Bot) Notifier() *Notifier {
	return b.notifier
}
