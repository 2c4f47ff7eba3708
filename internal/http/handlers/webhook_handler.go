package handlers

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/florence-gateway/backend/internal/auth"
	"github.com/florence-gateway/backend/internal/channels/telegram"
	"github.com/florence-gateway/backend/internal/channels/whatsapp"
	"github.com/florence-gateway/backend/internal/http/dto"
	"github.com/florence-gateway/backend/internal/middleware"
	"github.com/florence-gateway/backend/internal/models"
)

const eventTimeout = 3 * time.Minute

// EventHandler is implemented by services.Gateway.
type EventHandler interface {
	Handle(ctx context.Context, ev models.InboundEvent) error
}

type WebhookConfig struct {
	TelegramSecret   string
	TwilioAuthToken  string
	TwilioWebhookURL string
}

// WebhookHandler acknowledges channel webhooks right away and processes the
// event in the background, since model calls outlast provider timeouts.
type WebhookHandler struct {
	gateway EventHandler
	cfg     WebhookConfig
	baseCtx context.Context
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	now     func() time.Time
	log     *zap.Logger
}

func NewWebhookHandler(ctx context.Context, gateway EventHandler, cfg WebhookConfig, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		gateway: gateway,
		cfg:     cfg,
		baseCtx: ctx,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
}

// Telegram handles POST /webhooks/telegram.
func (h *WebhookHandler) Telegram(c *fiber.Ctx) error {
	if h.cfg.TelegramSecret != "" && c.Get("X-Telegram-Bot-Api-Secret-Token") != h.cfg.TelegramSecret {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid secret token", RequestID: middleware.GetRequestID(c)})
	}

	var upd tgbotapi.Update
	if err := json.Unmarshal(c.Body(), &upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid update", RequestID: middleware.GetRequestID(c)})
	}

	if ev, ok := telegram.ToEvent(upd, h.now()); ok {
		h.Dispatch(ev)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// WhatsApp handles POST /webhooks/whatsapp (Twilio form post).
func (h *WebhookHandler) WhatsApp(c *fiber.Ctx) error {
	form := url.Values{}
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		form.Add(string(k), string(v))
	})

	if h.cfg.TwilioWebhookURL != "" {
		err := auth.ValidateTwilioSignature(h.cfg.TwilioAuthToken, h.cfg.TwilioWebhookURL, form, c.Get("X-Twilio-Signature"))
		if err != nil {
			h.log.Warn("twilio signature rejected", zap.Error(err), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "invalid signature", RequestID: middleware.GetRequestID(c)})
		}
	}

	ev, err := whatsapp.ParseWebhook(form, h.now())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: middleware.GetRequestID(c)})
	}
	h.Dispatch(ev)

	// пустой TwiML: ответ уйдёт через REST API
	c.Set(fiber.HeaderContentType, "text/xml")
	return c.SendString("<Response></Response>")
}

// Dispatch runs the gateway for ev in the background. After Close it drops ev.
func (h *WebhookHandler) Dispatch(ev models.InboundEvent) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.log.Warn("event dropped during shutdown",
			zap.String("channel", string(ev.Channel)),
			zap.String("user", ev.UserKey()),
		)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(h.baseCtx, eventTimeout)
		defer cancel()

		if err := h.gateway.Handle(ctx, ev); err != nil {
			h.log.Warn("event handling failed",
				zap.String("channel", string(ev.Channel)),
				zap.String("user", ev.UserKey()),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every dispatched event has finished.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}

// Close stops accepting new events and waits for the in-flight ones.
func (h *WebhookHandler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.wg.Wait()
}
