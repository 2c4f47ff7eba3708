package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/florence-gateway/backend/internal/events"
	"github.com/florence-gateway/backend/internal/models"
	"github.com/florence-gateway/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestTracker remembers when each user last declared an intent to pay.
// There is no expiry: the marker lives until an accepted proof closes it.
type RequestTracker struct {
	store     repositories.RequestStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewRequestTracker(store repositories.RequestStore, publisher events.Publisher, log *zap.Logger) *RequestTracker {
	return &RequestTracker{store: store, publisher: publisher, log: log}
}

// OpenRequest records now as the request time, overwriting any earlier marker.
func (t *RequestTracker) OpenRequest(ctx context.Context, userKey string, now time.Time) (*models.PaymentRequest, error) {
	req := &models.PaymentRequest{
		ID:          uuid.New(),
		UserKey:     userKey,
		RequestedAt: now,
	}
	if err := t.store.Put(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to open payment request: %w", err)
	}
	if t.publisher != nil {
		_ = t.publisher.Publish(ctx, events.StreamLedger, events.New(events.EventPaymentRequested, map[string]any{
			"user_key":     userKey,
			"request_id":   req.ID.String(),
			"requested_at": now,
		}))
	}
	t.log.Info("payment request opened", zap.String("user", userKey), zap.String("request_id", req.ID.String()))
	return req, nil
}

// HasOpenRequest returns the request time when a marker exists.
func (t *RequestTracker) HasOpenRequest(ctx context.Context, userKey string) (time.Time, bool, error) {
	req, err := t.Get(ctx, userKey)
	if err != nil || req == nil {
		return time.Time{}, false, err
	}
	return req.RequestedAt, true, nil
}

// Get returns the open marker or nil.
func (t *RequestTracker) Get(ctx context.Context, userKey string) (*models.PaymentRequest, error) {
	req, err := t.store.Get(ctx, userKey)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment request: %w", err)
	}
	return req, nil
}

// CloseRequest removes the marker. Called only after an accepted proof.
func (t *RequestTracker) CloseRequest(ctx context.Context, userKey string) error {
	if err := t.store.Delete(ctx, userKey); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to close payment request: %w", err)
	}
	return nil
}
