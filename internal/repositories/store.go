package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/florence-gateway/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

// UserStore is the key-value abstraction the ledger depends on.
type UserStore interface {
	Get(ctx context.Context, key string) (*models.UserRecord, error)
	Put(ctx context.Context, user *models.UserRecord) error
	Delete(ctx context.Context, key string) error
}

// RequestStore keeps at most one open payment request per user.
type RequestStore interface {
	Get(ctx context.Context, userKey string) (*models.PaymentRequest, error)
	Put(ctx context.Context, req *models.PaymentRequest) error
	Delete(ctx context.Context, userKey string) error
}

// ConversationStore keeps the most recent turns of each user's chat.
type ConversationStore interface {
	Append(ctx context.Context, userKey string, turns ...models.Turn) error
	Recent(ctx context.Context, userKey string, limit int) ([]models.Turn, error)
}

type TransactionLog interface {
	Log(ctx context.Context, tx models.TokenTransaction) error
	ListByUser(ctx context.Context, userKey string, limit int) ([]models.TokenTransaction, error)
}

const defaultListLimit = 50

func nowUTC() time.Time { return time.Now().UTC() }
