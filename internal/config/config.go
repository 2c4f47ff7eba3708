package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Storage
	StoreBackend string // memory / redis / postgres
	PostgresDSN  string
	RedisURL     string

	PostgresMaxConns  int
	DBConnectAttempts int

	// Telegram
	TelegramBotToken      string
	TelegramWebhookURL    string
	TelegramWebhookSecret string
	WebhookMaxAttempts    int
	WebhookInitialDelay   time.Duration

	// WhatsApp (Twilio-style toll-free number)
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioWebhookURL string // публичный URL вебхука, участвует в подписи
	TwilioSendRPS    float64
	TwilioAPIBaseURL string

	// Model backend
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
	LLMSystemPrompt string
	LLMTimeout      time.Duration
	HistoryTurns    int

	// Token economy
	TelegramInitialTokens int
	WhatsAppInitialTokens int
	PaymentTokenGrant     int
	StreakTimezone        string

	// Admin
	AdminJWTSecret   string
	AdminJWTTTL      time.Duration
	AdminTelegramIDs []int64

	// Server
	APIPort  string
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		RedisURL:     getEnv("REDIS_URL", ""),

		PostgresMaxConns:  getEnvInt("POSTGRES_MAX_CONNS", 8),
		DBConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 5),

		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookURL:    getEnv("TELEGRAM_WEBHOOK_URL", ""),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		WebhookMaxAttempts:    getEnvInt("WEBHOOK_MAX_ATTEMPTS", 5),
		WebhookInitialDelay:   time.Duration(getEnvInt("WEBHOOK_INITIAL_DELAY_MS", 1000)) * time.Millisecond,

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioWebhookURL: getEnv("TWILIO_WEBHOOK_URL", ""),
		TwilioSendRPS:    getEnvFloat("TWILIO_SEND_RPS", 3),
		TwilioAPIBaseURL: getEnv("TWILIO_API_BASE_URL", "https://api.twilio.com"),

		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMSystemPrompt: getEnv("LLM_SYSTEM_PROMPT", "You are Florence, a friendly and concise assistant."),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 90)) * time.Second,
		HistoryTurns:    getEnvInt("HISTORY_TURNS", 10),

		TelegramInitialTokens: getEnvInt("TELEGRAM_INITIAL_TOKENS", 10),
		WhatsAppInitialTokens: getEnvInt("WHATSAPP_INITIAL_TOKENS", 100),
		PaymentTokenGrant:     getEnvInt("PAYMENT_TOKEN_GRANT", 100),
		StreakTimezone:        getEnv("STREAK_TIMEZONE", "UTC"),

		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
		AdminJWTTTL:      time.Duration(getEnvInt("ADMIN_JWT_TTL_HOURS", 24)) * time.Hour,
		AdminTelegramIDs: parseIDList(getEnv("ADMIN_TELEGRAM_IDS", "")),

		APIPort:  getEnv("API_PORT", "3000"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

func (c *Config) WhatsAppEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// StreakLocation returns the zone streak day boundaries are judged in.
func (c *Config) StreakLocation() *time.Location {
	loc, err := time.LoadLocation(c.StreakTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports missing credentials. A non-nil error is fatal: the
// process must not serve traffic without a model key and at least one channel.
func (c *Config) Validate(log *zap.Logger) error {
	var errs []error
	if c.LLMAPIKey == "" {
		errs = append(errs, errors.New("LLM_API_KEY is required"))
	}
	if !c.TelegramEnabled() && !c.WhatsAppEnabled() {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN or TWILIO_ACCOUNT_SID/TWILIO_AUTH_TOKEN/TWILIO_FROM_NUMBER is required"))
	}
	switch c.StoreBackend {
	case "memory":
		log.Warn("STORE_BACKEND=memory, balances are lost on restart")
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for STORE_BACKEND=redis"))
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for STORE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, errors.New("STORE_BACKEND must be memory, redis or postgres"))
	}
	if c.WhatsAppEnabled() && c.TwilioWebhookURL == "" {
		log.Warn("TWILIO_WEBHOOK_URL is not set, webhook signatures are not checked")
	}
	if c.TelegramEnabled() && c.TelegramWebhookURL == "" {
		log.Info("TELEGRAM_WEBHOOK_URL is not set, telegram runs in long polling mode")
	}
	if c.AdminJWTSecret == "" {
		log.Warn("ADMIN_JWT_SECRET is not set, admin API is disabled")
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseIDList(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
