package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventUserCreated      = "user_created"
	EventPaymentRequested = "payment_requested"
	EventPaymentVerified  = "payment_verified"
	EventPaymentRejected  = "payment_rejected"
	EventStreakMilestone  = "streak_milestone"
)

// StreamLedger carries every token economy event.
const StreamLedger = "events:ledger"

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

func New(eventType string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
