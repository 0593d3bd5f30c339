package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/selimekin/storefront/pkg/config"
	"github.com/selimekin/storefront/pkg/database"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// CartTTLHours is the sliding expiry for stored carts.
	CartTTLHours int `env:"CART_TTL_HOURS" envDefault:"168"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Auth
	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"24"`

	// Payments
	PaymentProvider     string `env:"PAYMENT_PROVIDER" envDefault:"mock"`
	PaymentCurrency     string `env:"PAYMENT_CURRENCY" envDefault:"usd"`
	StripeAPIKey        string `env:"STRIPE_API_KEY" envDefault:""`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET" envDefault:""`
	MockWebhookSecret   string `env:"MOCK_WEBHOOK_SECRET" envDefault:"mock-webhook-secret"`
	PaymentRateRPS      int    `env:"PAYMENT_RATE_RPS" envDefault:"5"`
	PaymentRateBurst    int    `env:"PAYMENT_RATE_BURST" envDefault:"10"`

	// Pricing
	FreeShippingThreshold int64 `env:"FREE_SHIPPING_THRESHOLD" envDefault:"5000"`

	// Catalog
	ProductCacheMaxAge int `env:"PRODUCT_CACHE_MAX_AGE" envDefault:"60"`

	// Tracing
	TracingEnabled bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSample    float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`

	// Debug
	PprofCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
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
	if c.PaymentProvider != "mock" && c.PaymentProvider != "stripe" {
		return fmt.Errorf("invalid payment provider: %s", c.PaymentProvider)
	}
	if c.PaymentProvider == "stripe" && (c.StripeAPIKey == "" || c.StripeWebhookSecret == "") {
		return fmt.Errorf("stripe provider requires STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET")
	}
	if c.CartTTLHours < 1 {
		return fmt.Errorf("invalid cart TTL: %d", c.CartTTLHours)
	}
	return nil
}

// Postgres returns the PostgreSQL pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	cfg := database.DefaultPostgresConfig()
	cfg.Host = c.PostgresHost
	cfg.Port = c.PostgresPort
	cfg.User = c.PostgresUser
	cfg.Password = c.PostgresPass
	cfg.DBName = c.PostgresDB
	cfg.SSLMode = c.PostgresSSL
	return cfg
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}

// CartTTL returns the cart expiry as a duration.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

// JWTExpiry returns the token lifetime as a duration.
func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}
