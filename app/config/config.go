package config

import (
	"errors"
	"os"
	"strconv"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Logs     LogConfig
	DB       PostgresConfig
	Stripe   StripeConfig
	Mail     MailConfig
	OpenAI   OpenAIConfig
	Sweep    SweepConfig
	QueueURL string
}

type LogConfig struct {
	Style string
	Level string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
	Name     string
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	PriceIDProMonthly string
	FrontendURL       string
}

type MailConfig struct {
	SendGridKey string
	FromEmail   string
	FromName    string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type SweepConfig struct {
	// ReminderWindowDays is how far ahead of the due date reminder emails
	// go out.
	ReminderWindowDays int
	// IntervalHours is the wall-clock cadence of the sweep daemon.
	IntervalHours int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		QueueURL: os.Getenv("MAIL_QUEUE_URL"),
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
			Name:     getEnvDefault("POSTGRES_DB", "verza"),
		},
		Stripe: StripeConfig{
			SecretKey:         os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceIDProMonthly: os.Getenv("STRIPE_PRICE_ID_PRO_MONTHLY"),
			FrontendURL:       os.Getenv("FRONTEND_URL"),
		},
		Mail: MailConfig{
			SendGridKey: os.Getenv("SENDGRID_API_KEY"),
			FromEmail:   getEnvDefault("SENDGRID_FROM_EMAIL", "billing@verza.io"),
			FromName:    getEnvDefault("SENDGRID_FROM_NAME", "Verza"),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Sweep: SweepConfig{
			ReminderWindowDays: getEnvInt("SWEEP_REMINDER_WINDOW_DAYS", 3),
			IntervalHours:      getEnvInt("SWEEP_INTERVAL_HOURS", 24),
		},
	}

	if cfg.Sweep.ReminderWindowDays <= 0 {
		return nil, errors.New("SWEEP_REMINDER_WINDOW_DAYS must be positive")
	}
	if cfg.Sweep.IntervalHours <= 0 {
		return nil, errors.New("SWEEP_INTERVAL_HOURS must be positive")
	}

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
