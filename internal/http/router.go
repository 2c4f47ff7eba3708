package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/florence-gateway/backend/internal/config"
	"github.com/florence-gateway/backend/internal/http/handlers"
	"github.com/florence-gateway/backend/internal/middleware"
	"github.com/florence-gateway/backend/internal/rbac"
)

// SetupRouter mounts the webhooks, the admin API and the admin event feed.
// rdb may be nil; adminHandler and wsHub are nil when the admin API is disabled.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"telegram": cfg.TelegramEnabled(),
			"whatsapp": cfg.WhatsAppEnabled(),
		})
	})

	// Webhooks (провайдеры ходят без CORS)
	hooks := app.Group("/webhooks", middleware.RateLimitMiddleware(rdb, 600, time.Minute))
	if cfg.TelegramEnabled() {
		hooks.Post("/telegram", webhookHandler.Telegram)
	}
	if cfg.WhatsAppEnabled() {
		hooks.Post("/whatsapp", webhookHandler.WhatsApp)
	}

	if adminHandler == nil {
		return
	}

	api := app.Group("/api/v1", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	admin := api.Group("/admin", middleware.AdminAuthMiddleware(cfg.AdminJWTSecret, log))
	admin.Get("/users/:channel/:id", middleware.RequirePermission(rbac.PermReadUsers), adminHandler.GetUser)
	admin.Get("/users/:channel/:id/transactions", middleware.RequirePermission(rbac.PermReadLedger), adminHandler.ListTransactions)
	admin.Get("/users/:channel/:id/payment-request", middleware.RequirePermission(rbac.PermReadUsers), adminHandler.GetPaymentRequest)
	admin.Delete("/users/:channel/:id/payment-request", middleware.RequirePermission(rbac.PermClosePaymentReq), adminHandler.ClosePaymentRequest)
	admin.Post("/users/:channel/:id/credit", middleware.RequirePermission(rbac.PermCreditTokens), adminHandler.Credit)

	// WebSocket
	if wsHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(wsHub.HandleWS))
	}
}
