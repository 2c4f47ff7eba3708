package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	maxMessageLen = 4096
	// Bot API не отдаёт файлы больше 20MB
	maxFileSize = 20 << 20
)

// botAPI is the part of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Client sends replies and downloads files through the Bot API.
type Client struct {
	api        botAPI
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(api botAPI, log *zap.Logger) *Client {
	return &Client{
		api:        api,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// Send delivers text to a chat id, split into Telegram sized chunks.
func (c *Client) Send(ctx context.Context, recipientID, text string) error {
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", recipientID, err)
	}

	for _, chunk := range splitText(text, maxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("telegram send failed: %w", err)
		}
	}
	return nil
}

// FetchBytes downloads a file by its file_id.
func (c *Client) FetchBytes(ctx context.Context, fileID string) ([]byte, string, error) {
	fileURL, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve telegram file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("telegram file download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("telegram file download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxFileSize {
		return nil, "", fmt.Errorf("telegram file exceeds %d bytes", maxFileSize)
	}

	// Telegram отдаёт application/octet-stream, определяем тип по содержимому
	return data, mimetype.Detect(data).String(), nil
}

// splitText cuts s into pieces of at most n runes, preferring line breaks.
func splitText(s string, n int) []string {
	if utf8.RuneCountInString(s) <= n {
		return []string{s}
	}

	var out []string
	runes := []rune(s)
	for len(runes) > n {
		cut := n
		for i := n; i > n/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
