package dto

import (
	"time"

	"github.com/florence-gateway/backend/internal/models"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type PaymentRequestResponse struct {
	Open        bool       `json:"open"`
	RequestID   string     `json:"request_id,omitempty"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	ExpiresAt   *time.Time `json:"proof_window_ends_at,omitempty"`
}

type UserResponse struct {
	*models.UserRecord
	UserKey string `json:"key"`
}
