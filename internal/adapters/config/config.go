package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hermes/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	Inference     InferenceConfig
	Negotiation   NegotiationConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"hermes"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// PostgresConfig configures the hot (operational) store holding live cart sessions
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"hermes"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"hermes"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ClickHouseConfig configures the cold (analytical) store holding nightly user profiles
type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"hermes"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled    bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers    []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	AuditTopic string   `envconfig:"KAFKA_AUDIT_TOPIC" default:"hermes.offers.audit"`
}

type TelegramConfig struct {
	Enabled  bool   `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
}

// InferenceConfig configures the OpenAI-compatible chat completion endpoint.
// Defaults target a local vLLM server.
type InferenceConfig struct {
	BaseURL      string  `envconfig:"INFERENCE_BASE_URL" default:"http://localhost:8000/v1"`
	APIKey       string  `envconfig:"INFERENCE_API_KEY" default:"EMPTY"`
	DefaultModel string  `envconfig:"INFERENCE_DEFAULT_MODEL" default:"Qwen/Qwen2.5-1.5B-Instruct"`
	Temperature  float64 `envconfig:"INFERENCE_TEMPERATURE" default:"0.1"`
	ReqPerMinute float64 `envconfig:"INFERENCE_REQ_PER_MINUTE" default:"60"`
	Burst        int     `envconfig:"INFERENCE_BURST" default:"6"`
}

// NegotiationConfig holds the business rules for discount decisions
type NegotiationConfig struct {
	// Churn probability above which aggressive discounts are offered
	HighChurnThreshold float64 `envconfig:"NEGOTIATION_HIGH_CHURN_THRESHOLD" default:"0.7"`
	// Churn probability below which minimal discounts are offered
	LowChurnThreshold float64 `envconfig:"NEGOTIATION_LOW_CHURN_THRESHOLD" default:"0.3"`

	// Fallbacks applied when a user's feature context is incomplete
	DefaultChurnProbability float64 `envconfig:"NEGOTIATION_DEFAULT_CHURN" default:"0.5"`
	DefaultCartValue        float64 `envconfig:"NEGOTIATION_DEFAULT_CART_VALUE" default:"100.0"`
	DefaultProfitMargin     float64 `envconfig:"NEGOTIATION_DEFAULT_MARGIN" default:"0.2"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
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

	return &cfg, nil
}
