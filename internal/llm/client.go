// Package llm is a small client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/florence-gateway/backend/internal/models"
	"go.uber.org/zap"
)

var ErrUnsupportedMimeType = errors.New("unsupported attachment type")

// AllowedImageMimeTypes are the only attachment types sent to the model.
var AllowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

func IsSupportedImage(mimeType string) bool {
	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	return AllowedImageMimeTypes[strings.TrimSpace(mt)]
}

// Attachment is either inline bytes or a URL the model can fetch itself.
type Attachment struct {
	Data     []byte
	URL      string
	MimeType string
}

type Client struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	httpClient   *http.Client
	log          *zap.Logger
}

func NewClient(baseURL, apiKey, model, systemPrompt string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the conversation turns and returns the reply text.
func (c *Client) Complete(ctx context.Context, turns []models.Turn) (string, error) {
	msgs := c.withSystem(len(turns))
	for _, t := range turns {
		msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Content})
	}
	return c.chat(ctx, msgs)
}

// CompleteWithAttachments sends images plus a prompt. Unsupported mime types
// are rejected before any request is made.
func (c *Client) CompleteWithAttachments(ctx context.Context, items []Attachment, prompt string) (string, error) {
	if err := ValidateAttachments(items); err != nil {
		return "", err
	}

	parts := []contentPart{{Type: "text", Text: prompt}}
	for _, it := range items {
		url := it.URL
		if len(it.Data) > 0 {
			url = "data:" + it.MimeType + ";base64," + base64.StdEncoding.EncodeToString(it.Data)
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
	}

	msgs := c.withSystem(1)
	msgs = append(msgs, chatMessage{Role: models.RoleUser, Content: parts})
	return c.chat(ctx, msgs)
}

func ValidateAttachments(items []Attachment) error {
	for _, it := range items {
		if !IsSupportedImage(it.MimeType) {
			return fmt.Errorf("%w: %q", ErrUnsupportedMimeType, it.MimeType)
		}
		if len(it.Data) == 0 && it.URL == "" {
			return errors.New("attachment has neither data nor url")
		}
	}
	return nil
}

func (c *Client) withSystem(extra int) []chatMessage {
	msgs := make([]chatMessage, 0, extra+1)
	if c.systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: models.RoleSystem, Content: c.systemPrompt})
	}
	return msgs
}

func (c *Client) chat(ctx context.Context, msgs []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: msgs})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model backend returned %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("model backend error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("model backend returned an empty reply")
	}

	c.log.Debug("model call",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
