package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"FISCUS_ADDR", "FISCUS_STORE", "FISCUS_CACHE_TTL", "FISCUS_AUTOSAVE_INTERVAL",
		"FISCUS_VERIFY_SETTLE", "FISCUS_ALERT_WINDOW", "KAFKA_BROKERS", "REDIS_KEY_PREFIX",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 120*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.VerifySettle)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "fiscus", cfg.Redis.KeyPrefix)
	assert.Empty(t, cfg.Warnings)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FISCUS_STORE", "Postgres")
	t.Setenv("FISCUS_CACHE_TTL", "90s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")

	cfg := FromEnv()

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FISCUS_STORE", "dynamo")
	t.Setenv("FISCUS_CACHE_TTL", "soon")
	t.Setenv("FISCUS_AUTOSAVE_INTERVAL", "-5s")

	cfg := FromEnv()

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultAutosaveInterval, cfg.AutosaveInterval)
	assert.Len(t, cfg.Warnings, 3)
}
