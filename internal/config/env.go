package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Secrets are read from the process environment, optionally seeded from a
// .env file. They never live in the config file so they cannot leak into
// diffs or logs.
type Secrets struct {
	BearerToken     string `env:"TWITTER_BEARER_TOKEN"`
	TelegramToken   string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChannel string `env:"TELEGRAM_CHANNEL_ID"`
}

// LoadSecrets loads envFile (default ".env") without overriding variables
// already set, then parses Secrets. A missing default .env is fine; a
// missing explicit file is an error.
func LoadSecrets(envFile string) (Secrets, error) {
	explicit := strings.TrimSpace(envFile) != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("parse environment: %w", err)
	}
	s.BearerToken = strings.TrimSpace(s.BearerToken)
	s.TelegramToken = strings.TrimSpace(s.TelegramToken)
	s.TelegramChannel = strings.TrimSpace(s.TelegramChannel)
	return s, nil
}

// TelegramChannel returns the sink destination: the config override when
// set, otherwise TELEGRAM_CHANNEL_ID.
func (c *Config) TelegramChannel(s Secrets) string {
	if ch := strings.TrimSpace(c.Sink.Telegram.Channel); ch != "" {
		return ch
	}
	return s.TelegramChannel
}

// LogChat is the chat for the Telegram log sink; it defaults to the
// notification channel.
func (c *Config) LogChat(s Secrets) string {
	if ch := strings.TrimSpace(c.Logging.Telegram.Chat); ch != "" {
		return ch
	}
	return c.TelegramChannel(s)
}
