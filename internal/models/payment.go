package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRequest marks an outstanding /payments declaration.
type PaymentRequest struct {
	ID          uuid.UUID `json:"id"`
	UserKey     string    `json:"user_key"`
	RequestedAt time.Time `json:"requested_at"`
}

type PaymentDetails struct {
	Amount   string `json:"amount"`
	Platform string `json:"platform"`
}

type VerificationResult struct {
	Valid   bool            `json:"valid"`
	Reason  string          `json:"reason,omitempty"`
	Date    *time.Time      `json:"date,omitempty"`
	Details *PaymentDetails `json:"details,omitempty"`
}

func Invalid(reason string) VerificationResult {
	return VerificationResult{Valid: false, Reason: reason}
}
