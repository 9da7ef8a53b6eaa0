package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/erickpaine43/Mascotas-sub000/pkg/config"
)

// Config holds all configuration for the Mascotas server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"mascotas"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"mascotas_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"mascotas_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Redis (idempotent consumer dedup store)
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Reservation TTL in seconds (default 15 minutes)
	ReservationTTL int `env:"RESERVATION_TTL_SECONDS" envDefault:"900"`

	// Expiry sweeper interval in seconds
	SweepInterval int `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`

	// Tax rate in basis points (1600 = 16%)
	TaxRateBps int64 `env:"TAX_RATE_BPS" envDefault:"1600"`

	// Payment gateway
	GatewayMode    string `env:"GATEWAY_MODE" envDefault:"mock"`
	GatewayBaseURL string `env:"GATEWAY_BASE_URL" envDefault:"https://api.gateway.example.com"`
	GatewayAPIKey  string `env:"GATEWAY_API_KEY" envDefault:""`

	// Checkout redirect URLs
	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:3000/checkout/success"`
	CheckoutCancelURL  string `env:"CHECKOUT_CANCEL_URL" envDefault:"http://localhost:3000/checkout/cancel"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("RESERVATION_TTL_SECONDS must be > 0, got %d", c.ReservationTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be > 0, got %d", c.SweepInterval)
	}
	if c.TaxRateBps < 0 {
		return fmt.Errorf("TAX_RATE_BPS must be >= 0, got %d", c.TaxRateBps)
	}
	switch c.GatewayMode {
	case "hosted", "mock":
	default:
		return fmt.Errorf("GATEWAY_MODE must be hosted or mock, got %q", c.GatewayMode)
	}
	if c.GatewayMode == "hosted" && c.GatewayAPIKey == "" {
		return fmt.Errorf("GATEWAY_API_KEY is required when GATEWAY_MODE=hosted")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// ReservationTTLDuration returns the reservation TTL as a duration.
func (c *Config) ReservationTTLDuration() time.Duration {
	return time.Duration(c.ReservationTTL) * time.Second
}

// SweepIntervalDuration returns the sweeper interval as a duration.
func (c *Config) SweepIntervalDuration() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}
