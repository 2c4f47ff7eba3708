package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/florence-gateway/backend/internal/retry"
)

type Mode string

const (
	ModeWebhook Mode = "webhook"
	ModePolling Mode = "polling"
)

// updateSource is the part of *tgbotapi.BotAPI needed to receive updates.
type updateSource interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type BootstrapConfig struct {
	WebhookURL string
	Secret     string
	Policy     retry.Policy
}

// Start registers the webhook, retrying per cfg.Policy. Without a webhook URL,
// or once the retries are exhausted, it falls back to long polling and feeds
// updates to handle until ctx is done.
func Start(ctx context.Context, api updateSource, cfg BootstrapConfig, handle func(context.Context, tgbotapi.Update), log *zap.Logger) Mode {
	if cfg.WebhookURL != "" {
		policy := cfg.Policy
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			log.Warn("webhook registration failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}

		err := policy.Do(ctx, func(context.Context) error {
			return registerWebhook(api, cfg.WebhookURL, cfg.Secret)
		})
		if err == nil {
			log.Info("telegram webhook registered", zap.String("url", cfg.WebhookURL))
			return ModeWebhook
		}
		log.Error("webhook registration exhausted, falling back to long polling", zap.Error(err))
	}

	// вебхук и getUpdates взаимоисключающие
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn("failed to delete webhook before polling", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	log.Info("telegram long polling started")

	go func() {
		defer api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				log.Info("telegram long polling stopped")
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				handle(ctx, upd)
			}
		}
	}()
	return ModePolling
}

func registerWebhook(api updateSource, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	if secret != "" {
		params["secret_token"] = secret
	}
	resp, err := api.MakeRequest("setWebhook", params)
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("setWebhook rejected: %s", resp.Description)
	}
	return nil
}
