package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, DriverPostgres, cfg.StoreDriver)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, []string{"health_sample_events", "health_workout_events"}, cfg.ConsumerTopics)
	require.False(t, cfg.OutboxEnabled())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("HEALTH_STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("DISPLAY_LOCALE", "en-US")

	cfg, err := Parse()
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, ":memory:", cfg.SQLitePath)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, "en-US", cfg.DisplayLocale)
	// Only the Postgres store writes outbox rows.
	require.False(t, cfg.OutboxEnabled())
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	t.Setenv("HEALTH_STORE_DRIVER", "mongo")
	_, err := Parse()
	require.Error(t, err)
}

func TestOutboxEnabled(t *testing.T) {
	cfg := Config{StoreDriver: DriverPostgres, KafkaBrokers: []string{"k:9092"}, SchemaRegistryURL: "http://sr:8081"}
	require.True(t, cfg.OutboxEnabled())
}
