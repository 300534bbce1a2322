package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreBackend selects the remote store adapter.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StorePostgres StoreBackend = "postgres"
	StoreRedis    StoreBackend = "redis"
)

// Defaults shared with the obligation components.
var (
	DefaultCacheTTL         = 5 * time.Minute
	DefaultAutosaveInterval = 120 * time.Second
	DefaultVerifySettle     = 300 * time.Millisecond
	DefaultAlertWindow      = 30 * 24 * time.Hour
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string

	Store       StoreBackend
	DatabaseURL string
	Redis       RedisConfig

	CacheTTL         time.Duration
	AutosaveInterval time.Duration
	VerifySettle     time.Duration
	AlertWindow      time.Duration

	KafkaBrokers    []string
	KafkaAuditTopic string

	// Warnings lists values that were ignored in favour of defaults.
	Warnings []string
}

// RedisConfig holds connection settings for the Redis record store.
type RedisConfig struct {
	URL          string
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() Server {
	_ = godotenv.Load()

	cfg := Server{
		Addr:            envOr("FISCUS_ADDR", ":8080"),
		LogLevel:        envOr("FISCUS_LOG_LEVEL", "info"),
		LogFormat:       envOr("FISCUS_LOG_FORMAT", "json"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		KafkaAuditTopic: envOr("KAFKA_AUDIT_TOPIC", "fiscus.audit"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			KeyPrefix:    envOr("REDIS_KEY_PREFIX", "fiscus"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}

	switch backend := StoreBackend(strings.ToLower(envOr("FISCUS_STORE", string(StoreMemory)))); backend {
	case StoreMemory, StorePostgres, StoreRedis:
		cfg.Store = backend
	default:
		cfg.Store = StoreMemory
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown FISCUS_STORE %q, using memory", backend))
	}

	cfg.CacheTTL = cfg.duration("FISCUS_CACHE_TTL", DefaultCacheTTL)
	cfg.AutosaveInterval = cfg.duration("FISCUS_AUTOSAVE_INTERVAL", DefaultAutosaveInterval)
	cfg.VerifySettle = cfg.duration("FISCUS_VERIFY_SETTLE", DefaultVerifySettle)
	cfg.AlertWindow = cfg.duration("FISCUS_ALERT_WINDOW", DefaultAlertWindow)

	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	return cfg
}

func (c *Server) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using %s", key, raw, fallback))
		return fallback
	}
	return d
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
