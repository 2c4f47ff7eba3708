package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/florence-gateway/backend/internal/auth"
	"github.com/florence-gateway/backend/internal/events"
	"github.com/florence-gateway/backend/internal/rbac"
)

// WSHub streams ledger events to connected admin dashboards.
type WSHub struct {
	secret      string
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.Mutex
	connections map[*websocket.Conn]string
}

func NewWSHub(secret string, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		secret:      secret,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[*websocket.Conn]string),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamLedger, h.broadcast)
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	// запись в одно соединение не потокобезопасна
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, subject := range h.connections {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("ws write failed", zap.String("subject", subject), zap.Error(err))
		}
	}
}

func (h *WSHub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	// Extract token from query
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.secret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}
	if !rbac.HasPermission(claims.Role, rbac.PermWatchEvents) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"insufficient permissions"}`))
		conn.Close()
		return
	}

	h.mu.Lock()
	h.connections[conn] = claims.Subject
	h.mu.Unlock()
	h.log.Info("admin feed connected", zap.String("subject", claims.Subject))

	defer func() {
		h.mu.Lock()
		delete(h.connections, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
