// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AppBaseURL is the public base URL of the web app; used to build redemption links in invite emails.
	AppBaseURL string `mapstructure:"APP_BASE_URL"`
	// SessionPublicKey is the PEM-encoded public key (RSA or ECDSA) or path to file, used to verify
	// session tokens issued by the hosted auth provider.
	SessionPublicKey string `mapstructure:"SESSION_PUBLIC_KEY"`
	// SessionIssuer is the expected iss claim on session tokens (e.g. "quillaborn-auth").
	SessionIssuer string `mapstructure:"SESSION_ISSUER"`
	// SessionAudience is the expected aud claim on session tokens (e.g. "quillaborn-api").
	SessionAudience string `mapstructure:"SESSION_AUDIENCE"`
	// AdminKeyHash is the bcrypt hash of the admin service key guarding /api/admin routes.
	// Generate with cmd/seed -hash-admin-key. Admin routes are disabled when empty.
	AdminKeyHash string `mapstructure:"ADMIN_KEY_HASH"`
	// BcryptCost is the bcrypt cost factor (4–31) used when hashing keys; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// EmailAPIKey is the API key for the transactional email provider. Emails are skipped when empty.
	EmailAPIKey string `mapstructure:"EMAIL_API_KEY"`
	// EmailBaseURL is the email provider API base URL (default https://api.resend.com/emails).
	EmailBaseURL string `mapstructure:"EMAIL_BASE_URL"`
	// EmailFrom is the sender address for invite emails.
	EmailFrom string `mapstructure:"EMAIL_FROM"`
	// RedisAddr is the redis host:port used by the public-endpoint rate limiter.
	// The limiter falls back to an in-process window when empty or unreachable.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// WaitlistRateLimit is the per-IP request limit per minute on public waitlist endpoints.
	WaitlistRateLimit int `mapstructure:"WAITLIST_RATE_LIMIT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap log level (debug, info, warn, error); default info.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogDev enables the zap development encoder when "1".
	LogDev string `mapstructure:"LOG_DEV"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317).
	// Telemetry providers are no-ops when empty.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Telemetry (optional). When Kafka brokers are set, the HTTP server emits admission events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for admission events (default qb-admission).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("SESSION_ISSUER", "quillaborn-auth")
	v.SetDefault("SESSION_AUDIENCE", "quillaborn-api")
	v.SetDefault("ADMIN_KEY_HASH", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("EMAIL_BASE_URL", "https://api.resend.com/emails")
	v.SetDefault("EMAIL_FROM", "Quillaborn <hello@quillaborn.com>")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("WAITLIST_RATE_LIMIT", 10)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("LOG_DEV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "qb-admission")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "qb-admission-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.WaitlistRateLimit <= 0 {
		cfg.WaitlistRateLimit = 10
	}

	return &cfg, nil
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
