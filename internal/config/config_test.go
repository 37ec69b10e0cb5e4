package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_DSN", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.SessionTTLHours)
	assert.Equal(t, "session", cfg.SessionCookieName)
	assert.Contains(t, cfg.Database.DSN, "@tcp(localhost:3306)/ehealthwave")
	assert.Equal(t, int64(10)<<20, cfg.Uploads.MaxRequest)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadConfigPostgresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_PORT", "5432")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN, "port=5432")
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	t.Setenv("DB_DSN", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfigInvalidTTL(t *testing.T) {
	t.Setenv("SESSION_TTL_HOURS", "a day")

	_, err := LoadConfig()
	assert.Error(t, err)
}
