package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/smartcycle/discounts/pkg/config"
)

// Config holds all configuration for the discounts service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"DISCOUNTS_HTTP_PORT" envDefault:"8008"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"smartcycle"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"smartcycle_secret"`
	PostgresDB   string `env:"DISCOUNTS_DB_NAME" envDefault:"discounts_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis eligibility cache
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"ELIGIBILITY_CACHE_TTL" envDefault:"1h"`

	// Kafka
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaEnabled   bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	CampaignTopic  string   `env:"CAMPAIGN_EVENTS_TOPIC" envDefault:"campaign-events"`
	CatalogTopic   string   `env:"CATALOG_EVENTS_TOPIC" envDefault:"product-events"`
	CatalogGroupID string   `env:"CATALOG_CONSUMER_GROUP" envDefault:"discounts-catalog-sync"`

	// Lifecycle scheduler
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1m"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load discounts config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.SchedulerInterval < time.Second {
		return nil, fmt.Errorf("scheduler interval too short: %s", cfg.SchedulerInterval)
	}
	if cfg.OTELSampleRate < 0 || cfg.OTELSampleRate > 1.0 {
		return nil, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", cfg.OTELSampleRate)
	}
	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
