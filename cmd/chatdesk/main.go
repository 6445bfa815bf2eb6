package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chatdesk/internal/app/schedule"
	"chatdesk/internal/app/session"
	"chatdesk/internal/domain/conversation"
	"chatdesk/internal/infra/broker/kafka"
	cacheport "chatdesk/internal/infra/cache/port"
	rediscache "chatdesk/internal/infra/cache/redis"
	"chatdesk/internal/infra/config"
	mongodb "chatdesk/internal/infra/db/mongo"
	ginserver "chatdesk/internal/infra/http/gin"
	"chatdesk/internal/infra/obs"
	"chatdesk/internal/infra/storage/memory"
	"chatdesk/internal/infra/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is optional outside local development
	_ = godotenv.Load()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	repo, ready, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("cannot initialize store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	cache := buildCache(cfg, logger)
	if cache != nil {
		defer cache.Close()
	}

	var events session.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Warn("kafka unavailable, lifecycle events disabled", "error", err)
		} else {
			defer producer.Close()
			events = producer
		}
	}

	sessions := session.NewService(repo, cache, logger)
	sessions.CacheTTL = cfg.CacheTTL
	sessions.Events = events
	sessions.TopicPrefix = cfg.KafkaTopicPrefix

	var bot *telegram.Client
	if cfg.TelegramBotToken != "" {
		bot = telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIBase, logger)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, outbound sends disabled")
	}

	sweeper := &session.Sweeper{
		Repo:            repo,
		Events:          events,
		TopicPrefix:     cfg.KafkaTopicPrefix,
		RetentionWindow: cfg.RetentionWindow,
		Enabled:         cfg.CleanupEnabled,
		Logger:          logger,
	}
	runner := schedule.NewRunner(logger)
	if err := runner.Add("conversation-cleanup", cfg.CleanupCron, sweeper.Sweep); err != nil {
		logger.Error("cannot schedule cleanup", "error", err)
		os.Exit(1)
	}
	if err := runner.Add("conversation-stats", cfg.StatsCron, func(ctx context.Context) error {
		sweeper.LogStats(ctx)
		return nil
	}); err != nil {
		logger.Error("cannot schedule stats", "error", err)
		os.Exit(1)
	}
	runner.Start()
	defer runner.Stop()

	handlers := ginserver.Handlers{
		Webhook: ginserver.WebhookHandler{Sessions: sessions, Telegram: sender(bot), Logger: logger},
		Desk:    ginserver.DeskHandler{Sessions: sessions, Logger: logger},
	}
	if bot != nil {
		handlers.Admin = ginserver.AdminHandler{Bot: bot, WebhookURL: cfg.WebhookURL, Logger: logger}
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: ready}, handlers)

	if bot != nil && cfg.WebhookURL != "" {
		registerCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := bot.SetWebhook(registerCtx, cfg.WebhookURL); err != nil {
			logger.Warn("webhook auto-registration failed", "error", err)
		}
		cancel()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// buildStore wires the configured durable store and returns the repository,
// a readiness probe and a close hook.
func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (conversation.Repository, func() error, func(), error) {
	if cfg.StoreMode == config.StoreModeMemory {
		logger.Warn("using in-memory store, data will not survive restarts")
		return memory.NewConversationRepository(), func() error { return nil }, func() {}, nil
	}

	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, nil, err
	}
	repo := mongodb.NewConversationRepository(client.DB)
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := repo.EnsureIndexes(indexCtx); err != nil {
		return nil, nil, nil, err
	}
	ready := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx)
	}
	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("mongo disconnect failed", "error", err)
		}
	}
	return repo, ready, closeFn, nil
}

// buildCache returns the configured cache, or nil when the service should run
// store-only. A cache that cannot be reached at startup is not fatal.
func buildCache(cfg config.Config, logger *slog.Logger) cacheport.Cache {
	if cfg.StoreMode == config.StoreModeMemory {
		return memory.NewCache()
	}
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, running without conversation cache")
		return nil
	}
	cache, err := rediscache.New(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, running without conversation cache", "error", err)
		return nil
	}
	return cache
}

// sender avoids handing a typed-nil *telegram.Client to the handler.
func sender(bot *telegram.Client) ginserver.Sender {
	if bot == nil {
		return nil
	}
	return bot
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
