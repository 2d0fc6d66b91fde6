package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"dcaadvisor/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Agent         AgentConfig
	AI            AIConfig
	Market        MarketConfig
	Strategy      StrategyConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"dcaadvisor"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"HTTP_ALLOWED_ORIGINS"`
	WSPingInterval  time.Duration `envconfig:"HTTP_WS_PING_INTERVAL" default:"30s"`
	WSPongTimeout   time.Duration `envconfig:"HTTP_WS_PONG_TIMEOUT" default:"60s"`
}

// AgentConfig bounds a single reasoning turn
type AgentConfig struct {
	MaxIterations   int           `envconfig:"AGENT_MAX_ITERATIONS" default:"8"`
	ProviderRetries int           `envconfig:"AGENT_PROVIDER_RETRIES" default:"2"`
	ProviderBackoff time.Duration `envconfig:"AGENT_PROVIDER_BACKOFF" default:"250ms"`
	ProviderTimeout time.Duration `envconfig:"AGENT_PROVIDER_TIMEOUT" default:"60s"`
	ToolTimeout     time.Duration `envconfig:"AGENT_TOOL_TIMEOUT" default:"10s"`
	ToolRetries     int           `envconfig:"AGENT_TOOL_RETRIES" default:"1"`
	MaxHistory      int           `envconfig:"AGENT_MAX_HISTORY" default:"40"`
}

type AIConfig struct {
	OpenAIKey       string  `envconfig:"OPENAI_API_KEY"`
	DeepSeekKey     string  `envconfig:"DEEPSEEK_API_KEY"`
	GeminiKey       string  `envconfig:"GEMINI_API_KEY"`
	ClaudeKey       string  `envconfig:"ANTHROPIC_API_KEY"`
	DefaultProvider string  `envconfig:"DEFAULT_AI_PROVIDER" default:"ollama"`
	DefaultModel    string  `envconfig:"DEFAULT_AI_MODEL" default:"llama3.1"`
	OllamaHost      string  `envconfig:"OLLAMA_HOST" default:"localhost"`
	OllamaPort      int     `envconfig:"OLLAMA_PORT" default:"11434"`
	OllamaTextTools bool    `envconfig:"OLLAMA_TEXT_TOOLS" default:"false"`
	Temperature     float64 `envconfig:"AI_TEMPERATURE" default:"0.2"`
	RequestsPerMin  int     `envconfig:"AI_REQUESTS_PER_MINUTE" default:"60"`
	// ProviderStrategy is model_routed, single, failover or round_robin
	ProviderStrategy  string   `envconfig:"AI_PROVIDER_STRATEGY" default:"model_routed"`
	FallbackProviders []string `envconfig:"AI_FALLBACK_PROVIDERS"`
}

// OllamaBaseURL returns the OpenAI-compatible endpoint of the local Ollama server
func (c AIConfig) OllamaBaseURL() string {
	return fmt.Sprintf("http://%s:%d/v1", c.OllamaHost, c.OllamaPort)
}

type MarketConfig struct {
	Source         string        `envconfig:"MARKET_SOURCE" default:"mock"` // mock | binance
	BinanceURL     string        `envconfig:"BINANCE_API_URL" default:"https://api.binance.com"`
	QuoteAsset     string        `envconfig:"MARKET_QUOTE_ASSET" default:"USDT"`
	RequestTimeout time.Duration `envconfig:"MARKET_REQUEST_TIMEOUT" default:"10s"`
	QuoteCacheTTL  time.Duration `envconfig:"MARKET_QUOTE_CACHE_TTL" default:"30s"`
	HistoryTTL     time.Duration `envconfig:"MARKET_HISTORY_CACHE_TTL" default:"1h"`
	RequestsPerSec float64       `envconfig:"MARKET_REQUESTS_PER_SECOND" default:"10"`
	Burst          int           `envconfig:"MARKET_BURST" default:"20"`
	HistoryStore   string        `envconfig:"MARKET_HISTORY_STORE" default:"none"` // none | clickhouse
}

// StrategyConfig overrides the tier tables and risk bands.
// Tier weights are listed blue_chip, large_cap, mid_cap, speculative.
type StrategyConfig struct {
	DefaultAssetCount int       `envconfig:"STRATEGY_DEFAULT_ASSET_COUNT" default:"10"`
	Conservative      []float64 `envconfig:"STRATEGY_CONSERVATIVE_WEIGHTS" default:"0.40,0.30,0.20,0.10"`
	Balanced          []float64 `envconfig:"STRATEGY_BALANCED_WEIGHTS" default:"0.30,0.30,0.25,0.15"`
	Aggressive        []float64 `envconfig:"STRATEGY_AGGRESSIVE_WEIGHTS" default:"0.20,0.25,0.30,0.25"`
	VolatilityBands   []float64 `envconfig:"STRATEGY_VOLATILITY_BANDS" default:"0.03,0.05,0.08"`
	DrawdownBands     []float64 `envconfig:"STRATEGY_DRAWDOWN_BANDS" default:"0.30,0.50,0.75"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"dcaadvisor"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

// Enabled reports whether a Postgres host was configured
func (c PostgresConfig) Enabled() bool { return c.Host != "" }

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"dcaadvisor"`
}

func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers    []string `envconfig:"KAFKA_BROKERS"`
	TurnsTopic string   `envconfig:"KAFKA_TURNS_TOPIC" default:"advisor.turns"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	var merr errors.MultiError

	if c.Agent.MaxIterations < 1 {
		merr.Add(errors.NewValidationError("AGENT_MAX_ITERATIONS", "must be at least 1", c.Agent.MaxIterations))
	}
	if c.Agent.ProviderRetries < 0 {
		merr.Add(errors.NewValidationError("AGENT_PROVIDER_RETRIES", "must not be negative", c.Agent.ProviderRetries))
	}
	for name, weights := range map[string][]float64{
		"STRATEGY_CONSERVATIVE_WEIGHTS": c.Strategy.Conservative,
		"STRATEGY_BALANCED_WEIGHTS":     c.Strategy.Balanced,
		"STRATEGY_AGGRESSIVE_WEIGHTS":   c.Strategy.Aggressive,
	} {
		if len(weights) != 4 {
			merr.Add(errors.NewValidationError(name, "expected four tier weights", weights))
		}
	}
	if len(c.Strategy.VolatilityBands) != 3 {
		merr.Add(errors.NewValidationError("STRATEGY_VOLATILITY_BANDS", "expected three bands", c.Strategy.VolatilityBands))
	}
	if len(c.Strategy.DrawdownBands) != 3 {
		merr.Add(errors.NewValidationError("STRATEGY_DRAWDOWN_BANDS", "expected three bands", c.Strategy.DrawdownBands))
	}
	switch c.Market.Source {
	case "mock", "binance":
	default:
		merr.Add(errors.NewValidationError("MARKET_SOURCE", "unsupported market source", c.Market.Source))
	}
	switch strings.ToLower(strings.TrimSpace(c.AI.ProviderStrategy)) {
	case "", "model_routed", "single", "failover", "round_robin", "roundrobin":
	default:
		merr.Add(errors.NewValidationError("AI_PROVIDER_STRATEGY", "unsupported provider strategy", c.AI.ProviderStrategy))
	}

	if merr.HasErrors() {
		return errors.Wrap(errors.Join(errors.ErrInvalidInput, merr.ToError()), "invalid config")
	}
	return nil
}
