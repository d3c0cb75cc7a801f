package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, 8, cfg.SLA.AttentionDays)
	assert.Equal(t, 15, cfg.SLA.CriticalDays)
	assert.Equal(t, 30*24*time.Hour, cfg.SLA.Retention())
	assert.Equal(t, time.Hour, cfg.SLA.SweepInterval())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.PubNub.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SLA_CRITICAL_DAYS", "20")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 20, cfg.SLA.CriticalDays)
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "sqlite")

	_, err := Load("does-not-exist.env")
	assert.Error(t, err)
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load("does-not-exist.env")
	assert.Error(t, err)
}
