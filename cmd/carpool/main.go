package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/carpool-bot/config"
	"github.com/yourusername/carpool-bot/internal/delivery/scheduler"
	"github.com/yourusername/carpool-bot/internal/delivery/telegram"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
	"github.com/yourusername/carpool-bot/internal/infrastructure/eventbus"
	"github.com/yourusername/carpool-bot/internal/infrastructure/gemini"
	"github.com/yourusername/carpool-bot/internal/infrastructure/logger"
	"github.com/yourusername/carpool-bot/internal/infrastructure/rabbitmq"
	"github.com/yourusername/carpool-bot/internal/infrastructure/report"
	"github.com/yourusername/carpool-bot/internal/infrastructure/routing"
	"github.com/yourusername/carpool-bot/internal/infrastructure/storage"
	"github.com/yourusername/carpool-bot/internal/usecase"
)

const routeCacheTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.New("carpool-bot", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	rides, err := storage.NewSQLiteRideRepository(cfg.RideDBPath)
	if err != nil {
		log.Fatalf("ride store: %v", err)
	}

	var router repository.RoutingRepository = routing.NewOSRMClient(
		&http.Client{Timeout: cfg.CollaboratorTimeout}, cfg.OSRMURL)

	var contexts repository.ContextRepository
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.CollaboratorTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		contexts = storage.NewRedisContextRepository(rdb, cfg.ContextTTL)
		router = routing.NewCachedRouting(rdb, router, routeCacheTTL, lg)
		lg.Info("redis connected", "action", "redis_connected", "addr", cfg.RedisAddr)
	} else {
		contexts = storage.NewMemoryContextRepository(cfg.ContextTTL)
	}

	var interpreter repository.DateInterpreter
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := gemini.NewDateInterpreter(ctx, cfg.GeminiAPIKey)
		if err != nil {
			lg.Warn("gemini unavailable, dates need the exact format", "action", "gemini_init_failed", "error", err)
		} else {
			interpreter = geminiClient
			defer geminiClient.Close()
		}
	}

	// Notification stream
	bus := eventbus.New()

	// Use cases
	matching := usecase.NewMatchingUseCase(rides, router, bus, usecase.MatchingConfig{
		MaxDistance:         float64(cfg.MatchMaxDistance),
		MaxDuration:         cfg.MatchMaxDuration,
		CommitAttempts:      cfg.MatchCommitAttempts,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
		Location:            cfg.TimeZone,
	}, lg)
	reminders := usecase.NewReminderUseCase(rides, bus, usecase.ReminderConfig{
		LeadTime:            cfg.MinutesBeforeRideStart,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
		Location:            cfg.TimeZone,
	}, lg)
	conversation := usecase.NewConversationUseCase(contexts, rides, interpreter, usecase.ConversationConfig{
		RequestFlexibility:  cfg.RequestFlexibility,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
		Location:            cfg.TimeZone,
	}, lg)
	requests := usecase.NewRequestUseCase(rides)
	admin := usecase.NewAdminUseCase(cfg.AdminPassword, storage.NewMemoryAdminRepository(), rides,
		report.NewExcelRideReport(cfg.TimeZone), matching)

	// Telegram
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("bot init: %v", err)
	}
	handler := telegram.NewBotHandler(bot, conversation, requests, admin, cfg.TimeZone, lg)

	// Delivery loops drain the bus until it shuts down
	var delivery sync.WaitGroup
	notifications := bus.Subscribe()
	delivery.Add(1)
	go func() {
		defer delivery.Done()
		telegram.NewNotifier(bot, lg).Run(notifications.C())
	}()

	var broker *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		broker, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		forwarded := bus.Subscribe()
		delivery.Add(1)
		go func() {
			defer delivery.Done()
			rabbitmq.NewForwarder(broker, lg).Run(forwarded.C())
		}()
		lg.Info("rabbitmq connected", "action", "rabbitmq_connected", "exchange", cfg.RabbitMQExchange)
	}

	// Schedulers
	matchingScheduler := scheduler.NewPeriodic("matching", cfg.MatchingInterval, cfg.CycleTimeout,
		func(ctx context.Context) error {
			result, err := matching.RunCycle(ctx)
			if err == nil {
				lg.Info("matching cycle finished", "action", "matching_cycle",
					"drivers", result.Drivers, "passengers", result.Passengers,
					"matched", result.Matched, "deferred", result.Deferred, "expired", result.Expired)
			}
			return err
		}, lg)
	reminderScheduler := scheduler.NewPeriodic("reminders", cfg.ReminderInterval, cfg.CycleTimeout,
		func(ctx context.Context) error {
			sent, err := reminders.RunCycle(ctx)
			if err == nil && sent > 0 {
				lg.Info("reminders sent", "action", "reminder_cycle", "sent", sent)
			}
			return err
		}, lg)

	var schedulers sync.WaitGroup
	for _, p := range []*scheduler.Periodic{matchingScheduler, reminderScheduler} {
		schedulers.Add(1)
		go func(p *scheduler.Periodic) {
			defer schedulers.Done()
			p.Run(ctx)
		}(p)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	lg.Info("bot started", "action", "startup", "username", bot.Self.UserName)

	// Blocks until a signal arrives
	handler.Start(ctx, updates)

	// Shutdown: intake, schedulers, stream, delivery, stores
	lg.Info("shutting down", "action", "shutdown")
	bot.StopReceivingUpdates()
	schedulers.Wait()
	bus.Shutdown()
	delivery.Wait()

	if broker != nil {
		if err := broker.Close(); err != nil {
			lg.Warn("rabbitmq close failed", "action", "shutdown", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := rides.Close(); err != nil {
		lg.Warn("ride store close failed", "action", "shutdown", "error", err)
	}
	lg.Info("shutdown complete", "action", "shutdown")
}
