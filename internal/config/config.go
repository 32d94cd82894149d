// Package config loads runtime configuration for the product API from the
// environment, optionally seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"

	SinkLog     = "log"
	SinkKafka   = "kafka"
	SinkMetrics = "metrics"
)

type Config struct {
	Port            string
	ServiceName     string
	ServiceVersion  string
	LogLevel        string
	ShutdownTimeout time.Duration

	DatabaseURL    string
	DBMaxOpenConns int

	Cache CacheConfig
	Event EventConfig

	OTLPEndpoint string

	MetricsEnabled bool
	MetricsToken   string

	WriteRateLimitPerMin int
}

type CacheConfig struct {
	Backend           string
	TTL               time.Duration
	Prefix            string
	InvalidateOnWrite bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type EventConfig struct {
	Sinks       []string
	QueueSize   int
	Workers     int
	SendTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads the configuration. A missing .env file is not an error; a
// malformed numeric or boolean value is.
func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		Port:            getenv("PORT", "8080"),
		ServiceName:     getenv("SERVICE_NAME", "monitoring-lab-api"),
		ServiceVersion:  getenv("SERVICE_VERSION", "1.0.0"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		ShutdownTimeout: time.Duration(p.atoi("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: p.atoi("DB_MAX_OPEN_CONNS", 10),

		Cache: CacheConfig{
			Backend:           strings.ToLower(getenv("CACHE_BACKEND", CacheMemory)),
			TTL:               time.Duration(p.atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
			Prefix:            getenv("CACHE_PREFIX", "monitoring-lab:"),
			InvalidateOnWrite: p.parseBool("CACHE_INVALIDATE_ON_WRITE", true),
			RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:     os.Getenv("REDIS_PASSWORD"),
			RedisDB:           p.atoi("REDIS_DB", 0),
		},

		Event: EventConfig{
			Sinks:        splitList(strings.ToLower(getenv("EVENT_SINKS", SinkLog+","+SinkMetrics))),
			QueueSize:    p.atoi("EVENT_QUEUE_SIZE", 1024),
			Workers:      p.atoi("EVENT_WORKERS", 2),
			SendTimeout:  time.Duration(p.atoi("EVENT_SEND_TIMEOUT_MS", 2000)) * time.Millisecond,
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:   getenv("KAFKA_TOPIC", "product-events"),
		},

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		MetricsEnabled: p.parseBool("METRICS_ENABLED", true),
		MetricsToken:   os.Getenv("METRICS_TOKEN"),

		WriteRateLimitPerMin: p.atoi("WRITE_RATE_LIMIT_PER_MIN", 0),
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("CACHE_BACKEND: unknown backend %q", c.Cache.Backend)
	}

	for _, s := range c.Event.Sinks {
		switch s {
		case SinkLog, SinkMetrics:
		case SinkKafka:
			if len(c.Event.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required when the kafka sink is enabled")
			}
		default:
			return fmt.Errorf("EVENT_SINKS: unknown sink %q", s)
		}
	}

	if c.Event.QueueSize <= 0 || c.Event.Workers <= 0 {
		return errors.New("EVENT_QUEUE_SIZE and EVENT_WORKERS must be positive")
	}
	if c.Cache.TTL < 0 {
		return errors.New("CACHE_TTL_SECONDS must not be negative")
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("SHUTDOWN_TIMEOUT_SECONDS must not be negative")
	}
	if c.WriteRateLimitPerMin < 0 {
		return errors.New("WRITE_RATE_LIMIT_PER_MIN must not be negative")
	}
	return nil
}

type parser struct {
	errs *[]error
}

func (p parser) atoi(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p parser) parseBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
