package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gpt-3.5-turbo"`
	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1000"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"20s"`

	// Politica de ruteo: umbrales configurables, no constantes.
	IntentMode             string  `env:"INTENT_MODE" envDefault:"keyword"`
	KBPath                 string  `env:"KB_PATH" envDefault:"data/knowledge_base.yaml"`
	KBAcceptThreshold      float64 `env:"KB_ACCEPT_THRESHOLD" envDefault:"0.34"`
	KBCrossAgentSearch     bool    `env:"KB_CROSS_AGENT_SEARCH" envDefault:"false"`
	RoutingConfidenceFloor float64 `env:"ROUTING_CONFIDENCE_FLOOR" envDefault:"0.25"`
	MaxMessageLength       int     `env:"MAX_MESSAGE_LENGTH" envDefault:"5000"`

	FallbackContextMessages int `env:"FALLBACK_CONTEXT_MESSAGES" envDefault:"10"`
	FallbackMaxRetries      int `env:"FALLBACK_MAX_RETRIES" envDefault:"1"`
	RouteWorkers            int `env:"ROUTE_WORKERS" envDefault:"32"`

	WSHeartbeatInterval  time.Duration `env:"WS_HEARTBEAT_INTERVAL" envDefault:"30s"`
	WSSessionGrace       time.Duration `env:"WS_SESSION_GRACE" envDefault:"2m"`
	WSMaxConnections     int           `env:"WS_MAX_CONNECTIONS" envDefault:"1000"`
	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY" envDefault:"1s"`
	ReconnectMaxAttempts int           `env:"RECONNECT_MAX_ATTEMPTS" envDefault:"5"`

	ClientTokenSecret string        `env:"CLIENT_TOKEN_SECRET"`
	ClientTokenTTL    time.Duration `env:"CLIENT_TOKEN_TTL" envDefault:"24h"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

var ErrInvalidConfig = errors.New("invalid config")

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza valores de politica fuera de rango.
func (c *Config) Validate() error {
	switch {
	case c.KBAcceptThreshold < 0 || c.KBAcceptThreshold > 1:
		return fmt.Errorf("%w: KB_ACCEPT_THRESHOLD must be in [0,1]", ErrInvalidConfig)
	case c.RoutingConfidenceFloor < 0 || c.RoutingConfidenceFloor > 1:
		return fmt.Errorf("%w: ROUTING_CONFIDENCE_FLOOR must be in [0,1]", ErrInvalidConfig)
	case c.MaxMessageLength <= 0:
		return fmt.Errorf("%w: MAX_MESSAGE_LENGTH must be positive", ErrInvalidConfig)
	case c.FallbackContextMessages <= 0:
		return fmt.Errorf("%w: FALLBACK_CONTEXT_MESSAGES must be positive", ErrInvalidConfig)
	case c.FallbackMaxRetries < 0:
		return fmt.Errorf("%w: FALLBACK_MAX_RETRIES must not be negative", ErrInvalidConfig)
	case c.RouteWorkers <= 0:
		return fmt.Errorf("%w: ROUTE_WORKERS must be positive", ErrInvalidConfig)
	case c.WSHeartbeatInterval <= 0:
		return fmt.Errorf("%w: WS_HEARTBEAT_INTERVAL must be positive", ErrInvalidConfig)
	case c.ReconnectBaseDelay <= 0:
		return fmt.Errorf("%w: RECONNECT_BASE_DELAY must be positive", ErrInvalidConfig)
	case c.ReconnectMaxAttempts < 0:
		return fmt.Errorf("%w: RECONNECT_MAX_ATTEMPTS must not be negative", ErrInvalidConfig)
	case c.IntentMode != "keyword" && c.IntentMode != "llm":
		return fmt.Errorf("%w: INTENT_MODE must be keyword or llm", ErrInvalidConfig)
	}
	return nil
}

// IsProduction indica si el servicio corre en produccion.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
