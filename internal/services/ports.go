package services

import (
	"context"
	"errors"
	"time"

	"github.com/florence-gateway/backend/internal/llm"
	"github.com/florence-gateway/backend/internal/models"
)

var (
	ErrInsufficientTokens  = errors.New("insufficient tokens")
	ErrTooManyAttachments  = errors.New("too many attachments")
	ErrUnsupportedMimeType = llm.ErrUnsupportedMimeType
	ErrNoOpenRequest       = errors.New("no open payment request")
	ErrUnknownChannel      = errors.New("unknown channel")
)

// AllowedImageMimeTypes lists what may be forwarded to the model.
var AllowedImageMimeTypes = llm.AllowedImageMimeTypes

type ModelAttachment = llm.Attachment

// Sender delivers a text reply to a channel recipient.
type Sender interface {
	Send(ctx context.Context, recipientID, text string) error
}

// DocumentFetcher downloads an attachment by its channel reference and
// returns the bytes with the detected content type.
type DocumentFetcher interface {
	FetchBytes(ctx context.Context, ref string) ([]byte, string, error)
}

// ChannelClient is everything the gateway needs from one messaging channel.
type ChannelClient interface {
	Sender
	DocumentFetcher
}

type ModelBackend interface {
	Complete(ctx context.Context, turns []models.Turn) (string, error)
	CompleteWithAttachments(ctx context.Context, items []ModelAttachment, prompt string) (string, error)
}

// ProofVerifier judges an uploaded payment proof against the request time.
type ProofVerifier interface {
	Verify(data []byte, requestedAt time.Time) models.VerificationResult
}
