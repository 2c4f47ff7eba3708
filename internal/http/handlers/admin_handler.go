package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/florence-gateway/backend/internal/http/dto"
	"github.com/florence-gateway/backend/internal/middleware"
	"github.com/florence-gateway/backend/internal/models"
	"github.com/florence-gateway/backend/internal/payproof"
	"github.com/florence-gateway/backend/internal/repositories"
	"github.com/florence-gateway/backend/internal/services"
)

const maxTransactions = 200

// AdminHandler exposes read access to balances and manual corrections.
type AdminHandler struct {
	ledger  *services.LedgerService
	tracker *services.RequestTracker
	log     *zap.Logger
}

func NewAdminHandler(ledger *services.LedgerService, tracker *services.RequestTracker, log *zap.Logger) *AdminHandler {
	return &AdminHandler{ledger: ledger, tracker: tracker, log: log}
}

func userParams(c *fiber.Ctx) (models.Channel, string, bool) {
	ch := models.Channel(c.Params("channel"))
	id := c.Params("id")
	return ch, id, ch.Valid() && id != ""
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}

func (h *AdminHandler) lookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found", RequestID: middleware.GetRequestID(c)})
	}
	h.log.Error("admin lookup failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error", RequestID: middleware.GetRequestID(c)})
}

// GetUser handles GET /admin/users/:channel/:id.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	ch, id, ok := userParams(c)
	if !ok {
		return badRequest(c, "invalid channel or id")
	}
	user, err := h.ledger.GetUser(c.Context(), ch, id)
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.UserResponse{UserRecord: user, UserKey: user.Key()}})
}

// ListTransactions handles GET /admin/users/:channel/:id/transactions.
func (h *AdminHandler) ListTransactions(c *fiber.Ctx) error {
	ch, id, ok := userParams(c)
	if !ok {
		return badRequest(c, "invalid channel or id")
	}
	var q dto.TransactionsQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	if q.Limit <= 0 || q.Limit > maxTransactions {
		q.Limit = 50
	}

	txs, err := h.ledger.Transactions(c.Context(), ch, id, q.Limit)
	if err != nil {
		return h.lookupError(c, err)
	}
	if txs == nil {
		txs = []models.TokenTransaction{}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

// GetPaymentRequest handles GET /admin/users/:channel/:id/payment-request.
func (h *AdminHandler) GetPaymentRequest(c *fiber.Ctx) error {
	ch, id, ok := userParams(c)
	if !ok {
		return badRequest(c, "invalid channel or id")
	}
	req, err := h.tracker.Get(c.Context(), models.UserKey(ch, id))
	if err != nil {
		return h.lookupError(c, err)
	}

	resp := dto.PaymentRequestResponse{}
	if req != nil {
		ends := req.RequestedAt.Add(payproof.MaxDateDistance)
		resp = dto.PaymentRequestResponse{Open: true, RequestID: req.ID.String(), RequestedAt: &req.RequestedAt, ExpiresAt: &ends}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: resp})
}

// ClosePaymentRequest handles DELETE /admin/users/:channel/:id/payment-request.
func (h *AdminHandler) ClosePaymentRequest(c *fiber.Ctx) error {
	ch, id, ok := userParams(c)
	if !ok {
		return badRequest(c, "invalid channel or id")
	}
	key := models.UserKey(ch, id)

	unlock := h.ledger.Lock(key)
	defer unlock()
	if err := h.tracker.CloseRequest(c.Context(), key); err != nil {
		return h.lookupError(c, err)
	}
	h.log.Info("payment request closed by admin", zap.String("user", key), zap.String("by", middleware.GetSubject(c)))
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Credit handles POST /admin/users/:channel/:id/credit for manual top-ups.
func (h *AdminHandler) Credit(c *fiber.Ctx) error {
	ch, id, ok := userParams(c)
	if !ok {
		return badRequest(c, "invalid channel or id")
	}
	var req dto.CreditRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Tokens <= 0 {
		return badRequest(c, "tokens must be positive")
	}

	unlock := h.ledger.Lock(models.UserKey(ch, id))
	defer unlock()

	user, err := h.ledger.GetUser(c.Context(), ch, id)
	if err != nil {
		return h.lookupError(c, err)
	}
	meta := map[string]any{"by": middleware.GetSubject(c)}
	if req.Note != "" {
		meta["note"] = req.Note
	}
	if err := h.ledger.Credit(c.Context(), user, req.Tokens, models.TxAdminGrant, meta); err != nil {
		return h.lookupError(c, err)
	}

	h.log.Info("manual credit",
		zap.String("user", user.Key()),
		zap.Int("tokens", req.Tokens),
		zap.String("by", middleware.GetSubject(c)),
	)
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.UserResponse{UserRecord: user, UserKey: user.Key()}})
}
