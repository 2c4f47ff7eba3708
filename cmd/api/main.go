package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/florence-gateway/backend/internal/channels/telegram"
	"github.com/florence-gateway/backend/internal/channels/whatsapp"
	"github.com/florence-gateway/backend/internal/config"
	"github.com/florence-gateway/backend/internal/db"
	"github.com/florence-gateway/backend/internal/events"
	apphttp "github.com/florence-gateway/backend/internal/http"
	"github.com/florence-gateway/backend/internal/http/handlers"
	"github.com/florence-gateway/backend/internal/llm"
	"github.com/florence-gateway/backend/internal/models"
	"github.com/florence-gateway/backend/internal/payproof"
	"github.com/florence-gateway/backend/internal/repositories"
	"github.com/florence-gateway/backend/internal/retry"
	"github.com/florence-gateway/backend/internal/services"
)

type stores struct {
	users      repositories.UserStore
	requests   repositories.RequestStore
	history    repositories.ConversationStore
	txLog      repositories.TransactionLog
	publisher  events.Publisher
	subscriber events.Subscriber
}

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	if err := cfg.Validate(log); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// long polling stops first on shutdown, before in-flight events are drained
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	// Redis (optional unless STORE_BACKEND=redis)
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	// Postgres (optional unless STORE_BACKEND=postgres)
	var pool *pgxpool.Pool
	if cfg.PostgresDSN != "" {
		var err error
		pool, err = db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{
			MaxConns: int32(cfg.PostgresMaxConns),
			Connect:  retry.Policy{MaxAttempts: cfg.DBConnectAttempts, InitialDelay: time.Second, Multiplier: 2},
		}, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	st := buildStores(cfg, rdb, pool, log)
	log.Info("stores ready",
		zap.String("backend", cfg.StoreBackend),
		zap.Bool("redis", rdb != nil),
		zap.Bool("postgres", pool != nil),
	)

	// Services
	ledger := services.NewLedgerService(st.users, st.txLog, st.publisher, map[models.Channel]services.ChannelDefaults{
		models.ChannelTelegram: {InitialTokens: cfg.TelegramInitialTokens, UpdateProfile: true},
		models.ChannelWhatsApp: {InitialTokens: cfg.WhatsAppInitialTokens, ReferralCode: true},
	}, cfg.StreakLocation(), log)
	tracker := services.NewRequestTracker(st.requests, st.publisher, log)
	payments := services.NewPaymentService(ledger, tracker, payproof.NewVerifier(), st.publisher, cfg.PaymentTokenGrant, log)
	model := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMSystemPrompt, cfg.LLMTimeout, log)
	gateway := services.NewGateway(ledger, tracker, payments, model, st.history, services.GatewayConfig{HistoryTurns: cfg.HistoryTurns}, log)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(ctx, gateway, handlers.WebhookConfig{
		TelegramSecret:   cfg.TelegramWebhookSecret,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioWebhookURL: cfg.TwilioWebhookURL,
	}, log)

	// Channels
	if cfg.WhatsAppEnabled() {
		gateway.RegisterChannel(models.ChannelWhatsApp, whatsapp.NewClient(whatsapp.ClientConfig{
			BaseURL:    cfg.TwilioAPIBaseURL,
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
			SendRPS:    cfg.TwilioSendRPS,
		}, log))
	}
	if cfg.TelegramEnabled() {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Fatal("failed to init telegram bot", zap.Error(err))
		}
		log.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
		gateway.RegisterChannel(models.ChannelTelegram, telegram.NewClient(bot, log))

		bootstrap := telegram.BootstrapConfig{
			WebhookURL: cfg.TelegramWebhookURL,
			Secret:     cfg.TelegramWebhookSecret,
			Policy: retry.Policy{
				MaxAttempts:  cfg.WebhookMaxAttempts,
				InitialDelay: cfg.WebhookInitialDelay,
				Multiplier:   2,
			},
		}
		go func() {
			mode := telegram.Start(pollCtx, bot, bootstrap, func(_ context.Context, upd tgbotapi.Update) {
				if ev, ok := telegram.ToEvent(upd, time.Now().UTC()); ok {
					webhookHandler.Dispatch(ev)
				}
			}, log)
			log.Info("telegram receiving updates", zap.String("mode", string(mode)))
		}()
	}

	// Admin API
	var adminHandler *handlers.AdminHandler
	var wsHub *handlers.WSHub
	if cfg.AdminJWTSecret != "" {
		adminHandler = handlers.NewAdminHandler(ledger, tracker, log)
		wsHub = handlers.NewWSHub(cfg.AdminJWTSecret, st.subscriber, log)
		if err := wsHub.Start(ctx); err != nil {
			log.Fatal("failed to subscribe admin feed", zap.Error(err))
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, webhookHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		stopPolling()
		_ = app.ShutdownWithTimeout(10 * time.Second)
		webhookHandler.Close()
		cancel()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	<-ctx.Done()
}

func newLogger(level string) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if level == "debug" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}

// buildStores picks the user store by STORE_BACKEND. Request markers and
// history live in Redis when it is configured, the audit log in Postgres.
func buildStores(cfg *config.Config, rdb *redis.Client, pool *pgxpool.Pool, log *zap.Logger) stores {
	st := stores{
		users:    repositories.NewMemoryUserStore(),
		requests: repositories.NewMemoryRequestStore(),
		history:  repositories.NewMemoryConversationStore(cfg.HistoryTurns),
		txLog:    repositories.NewMemoryTransactionLog(),
	}

	if rdb != nil {
		st.requests = repositories.NewRedisRequestStore(rdb)
		st.history = repositories.NewRedisConversationStore(rdb, cfg.HistoryTurns)
		st.publisher = events.NewRedisPublisher(rdb, log)
		st.subscriber = events.NewRedisSubscriber(rdb, log)
	} else {
		bus := events.NewLocalBus()
		st.publisher, st.subscriber = bus, bus
	}
	if pool != nil {
		st.txLog = repositories.NewTransactionRepo(pool)
	}

	switch cfg.StoreBackend {
	case "redis":
		st.users = repositories.NewRedisUserStore(rdb)
	case "postgres":
		st.users = repositories.NewUserRepo(pool)
	}
	return st
}
