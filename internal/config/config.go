package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        int    `env:"NOVA_PORT" envDefault:"8760"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL string `env:"DATABASE_URL"`
	NatsURL     string `env:"NATS_URL" envDefault:"nats://hermes:4222"`
	NatsToken   string `env:"NATS_TOKEN"`
	APIToken    string `env:"NOVA_API_TOKEN"`

	AnthropicAPIKey   string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel    string `env:"NOVA_MODEL" envDefault:"claude-sonnet-4-20250514"`
	GenerationRetries uint   `env:"NOVA_GENERATION_RETRIES" envDefault:"1"`

	EmbeddingAPIKey     string `env:"EMBEDDING_API_KEY"`
	EmbeddingURL        string `env:"EMBEDDING_URL" envDefault:"https://api.openai.com/v1/embeddings"`
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`

	PersonasFile   string `env:"NOVA_PERSONAS_FILE"`
	DefaultPersona string `env:"NOVA_DEFAULT_PERSONA" envDefault:"translator"`
	MinMessages    int    `env:"NOVA_MIN_MESSAGES" envDefault:"10"`

	RetrievalTopK      int           `env:"NOVA_RETRIEVAL_TOP_K" envDefault:"2"`
	RetrievalThreshold float64       `env:"NOVA_RETRIEVAL_THRESHOLD" envDefault:"0.5"`
	RetrievalTimeout   time.Duration `env:"NOVA_RETRIEVAL_TIMEOUT" envDefault:"2s"`

	HourlyRateEUR float64 `env:"NOVA_HOURLY_RATE_EUR" envDefault:"80"`

	SlackBotToken string `env:"SLACK_BOT_TOKEN"`
	SlackChannel  string `env:"SLACK_REVIEW_CHANNEL"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.EmbeddingDimensions <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", cfg.EmbeddingDimensions)
	}
	if cfg.RetrievalThreshold < 0 || cfg.RetrievalThreshold > 1 {
		return Config{}, fmt.Errorf("NOVA_RETRIEVAL_THRESHOLD must be within [0,1], got %g", cfg.RetrievalThreshold)
	}
	return cfg, nil
}
