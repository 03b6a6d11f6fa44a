package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Replay store backends.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Event sinks.
const (
	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkAMQP  = "amqp"
)

// Config holds all configuration for the application.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	ReplayBackend   string        `env:"REPLAY_BACKEND" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"webhookd.db"`
	ReplayRetention time.Duration `env:"REPLAY_RETENTION" envDefault:"24h"`
	ReplayLease     time.Duration `env:"REPLAY_LEASE" envDefault:"5m"`
	// BreakerThreshold is the consecutive replay store failures that open
	// the circuit.
	BreakerThreshold int `env:"BREAKER_THRESHOLD" envDefault:"5"`

	MaxBodyBytes       int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	HandlerTimeout     time.Duration `env:"HANDLER_TIMEOUT" envDefault:"30s"`
	RateLimitPerSecond int           `env:"RATE_LIMIT_PER_SECOND" envDefault:"0"`

	EventSink    string   `env:"EVENT_SINK" envDefault:"none"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"webhook-events"`
	AMQPURL      string   `env:"AMQP_URL"`
	AMQPQueue    string   `env:"AMQP_QUEUE" envDefault:"webhook-events"`

	OTLPEndpoint string     `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that each selected backend and sink has what it needs.
func (c *Config) Validate() error {
	switch c.ReplayBackend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis replay backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres replay backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite replay backend")
		}
	default:
		return fmt.Errorf("unknown REPLAY_BACKEND %q", c.ReplayBackend)
	}

	switch c.EventSink {
	case SinkNone:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka event sink")
		}
	case SinkAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required for the amqp event sink")
		}
	default:
		return fmt.Errorf("unknown EVENT_SINK %q", c.EventSink)
	}

	if c.RateLimitPerSecond < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must not be negative")
	}
	if c.RateLimitPerSecond > 0 && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_PER_SECOND is set")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	return nil
}
