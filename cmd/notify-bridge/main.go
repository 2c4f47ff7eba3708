package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/florence-gateway/backend/internal/config"
	"github.com/florence-gateway/backend/internal/db"
	"github.com/florence-gateway/backend/internal/events"
)

// Notify Bridge: small side service that subscribes to ledger events in
// Redis and forwards payment notifications to admin Telegram accounts.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.RedisURL == "" || cfg.TelegramBotToken == "" || len(cfg.AdminTelegramIDs) == 0 {
		log.Fatal("REDIS_URL, TELEGRAM_BOT_TOKEN and ADMIN_TELEGRAM_IDS are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal("failed to init telegram bot", zap.Error(err))
	}

	subscriber := events.NewRedisSubscriber(rdb, log)
	err = subscriber.Subscribe(ctx, events.StreamLedger, func(event events.Event) {
		text := notificationText(event)
		if text == "" {
			return
		}
		log.Info("forwarding event to admins", zap.String("type", event.Type))
		for _, id := range cfg.AdminTelegramIDs {
			if _, err := bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
				log.Warn("failed to notify admin", zap.Int64("admin_id", id), zap.Error(err))
			}
		}
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started", zap.Int("admins", len(cfg.AdminTelegramIDs)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}

// notificationText returns "" for events admins do not need to see.
func notificationText(event events.Event) string {
	p := event.Payload
	switch event.Type {
	case events.EventPaymentVerified:
		return fmt.Sprintf("💰 Payment verified\nUser: %v (%v)\nAmount: %v via %v\nGranted: %v tokens, balance %v",
			p["display_name"], p["user_key"], p["amount"], p["platform"], p["tokens"], p["balance"])
	case events.EventPaymentRejected:
		return fmt.Sprintf("⚠️ Payment proof rejected\nUser: %v\nReason: %v", p["user_key"], p["reason"])
	}
	return ""
}
