package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/openclaw/whatsapp-bridge-go/internal/model"
)

type Config struct {
	Port                 int    `env:"PORT" envDefault:"3001"`
	RedisURL             string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	OllamaHost           string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	OllamaModel          string `env:"OLLAMA_MODEL" envDefault:"gemma3:1b"`
	TransportDriver      string `env:"TRANSPORT_DRIVER" envDefault:"loopback"`
	BotMode              string `env:"BOT_MODE" envDefault:"auto"`
	DebounceSeconds      int    `env:"DEBOUNCE_SECONDS" envDefault:"15"`
	ReconnectSeconds     int    `env:"RECONNECT_SECONDS" envDefault:"10"`
	MediaTimeoutSeconds  int    `env:"MEDIA_TIMEOUT_SECONDS" envDefault:"30"`
	GenerateTimeoutSecs  int    `env:"GENERATE_TIMEOUT_SECONDS" envDefault:"120"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceSeconds) * time.Second
}

func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectSeconds) * time.Second
}

func (c *Config) MediaTimeout() time.Duration {
	return time.Duration(c.MediaTimeoutSeconds) * time.Second
}

func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSecs) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if !model.ValidBotMode(c.BotMode) {
		return fmt.Errorf("BOT_MODE must be one of auto, manual, off (got %q)", c.BotMode)
	}
	if c.DebounceSeconds <= 0 {
		return fmt.Errorf("DEBOUNCE_SECONDS must be positive (got %d)", c.DebounceSeconds)
	}
	if c.ReconnectSeconds <= 0 {
		return fmt.Errorf("RECONNECT_SECONDS must be positive (got %d)", c.ReconnectSeconds)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
