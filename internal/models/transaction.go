package models

import (
	"time"

	"github.com/google/uuid"
)

// Token transaction reasons. Balances change only through these.
const (
	TxInitialGrant    = "initial_grant"
	TxIdleReward      = "idle_reward"
	TxStreakReward    = "streak_reward"
	TxPaymentVerified = "payment_verified"
	TxSpend           = "spend"
	TxRefund          = "refund"
	TxAdminGrant      = "admin_grant"
)

type TokenTransaction struct {
	ID        uuid.UUID      `json:"id"`
	UserKey   string         `json:"user_key"`
	Reason    string         `json:"reason"`
	Amount    int            `json:"amount"` // signed
	Balance   int            `json:"balance"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
