package services

import (
	"context"
	"fmt"
	"time"

	"github.com/florence-gateway/backend/internal/events"
	"github.com/florence-gateway/backend/internal/models"
	"go.uber.org/zap"
)

type PaymentService struct {
	ledger    *LedgerService
	tracker   *RequestTracker
	verifier  ProofVerifier
	publisher events.Publisher
	grant     int
	log       *zap.Logger
}

func NewPaymentService(
	ledger *LedgerService,
	tracker *RequestTracker,
	verifier ProofVerifier,
	publisher events.Publisher,
	grant int,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		ledger:    ledger,
		tracker:   tracker,
		verifier:  verifier,
		publisher: publisher,
		grant:     grant,
		log:       log,
	}
}

func (s *PaymentService) Grant() int { return s.grant }

// Submit verifies an uploaded proof against the user's open request.
// A rejected proof leaves the request open so the user can retry.
// Returned errors are collaborator failures, not verification outcomes.
func (s *PaymentService) Submit(ctx context.Context, user *models.UserRecord, fetcher DocumentFetcher, att models.Attachment) (models.VerificationResult, error) {
	requestedAt, ok, err := s.tracker.HasOpenRequest(ctx, user.Key())
	if err != nil {
		return models.VerificationResult{}, err
	}
	if !ok {
		return models.VerificationResult{}, ErrNoOpenRequest
	}

	data, contentType, err := fetcher.FetchBytes(ctx, att.Ref)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("failed to fetch document: %w", err)
	}

	res := s.verifier.Verify(data, requestedAt)
	if !res.Valid {
		s.log.Info("payment proof rejected",
			zap.String("user", user.Key()),
			zap.String("content_type", contentType),
			zap.String("reason", res.Reason),
		)
		s.publish(ctx, events.EventPaymentRejected, map[string]any{
			"user_key": user.Key(),
			"reason":   res.Reason,
		})
		return res, nil
	}

	meta := map[string]any{"requested_at": requestedAt.Format(time.RFC3339)}
	if res.Date != nil {
		meta["payment_date"] = res.Date.Format("2006-01-02")
	}
	if err := s.ledger.Credit(ctx, user, s.grant, models.TxPaymentVerified, meta); err != nil {
		return models.VerificationResult{}, err
	}
	if err := s.tracker.CloseRequest(ctx, user.Key()); err != nil {
		// tokens are already granted; a stale marker only allows another upload
		s.log.Error("failed to close payment request", zap.String("user", user.Key()), zap.Error(err))
	}

	payload := map[string]any{
		"user_key":     user.Key(),
		"channel":      string(user.Channel),
		"display_name": user.DisplayName,
		"tokens":       s.grant,
		"balance":      user.Tokens,
	}
	if res.Details != nil {
		payload["amount"] = res.Details.Amount
		payload["platform"] = res.Details.Platform
	}
	s.publish(ctx, events.EventPaymentVerified, payload)
	s.log.Info("payment verified",
		zap.String("user", user.Key()),
		zap.Int("granted", s.grant),
		zap.Int("balance", user.Tokens),
	)
	return res, nil
}

func (s *PaymentService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.StreamLedger, events.New(eventType, payload))
}
