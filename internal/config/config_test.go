package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-census/internal/domain"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, StorePostgres, cfg.Store.Backend)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "census", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "wisefido-census", cfg.MQTT.ClientID)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, 5*time.Minute, cfg.Census.RollupCacheTTL)
	assert.Equal(t, 4, cfg.Census.RollupConcurrency)
	assert.Equal(t, []string{"Manager", "Admin", "SystemAdmin", "Supervisor"}, cfg.Census.ReviewerRoles)
	assert.Equal(t, EventSinkNone, cfg.Census.EventSink)
	assert.Equal(t, "census:events", cfg.Census.EventStream)
	assert.Equal(t, int64(10000), cfg.Census.EventStreamMaxLen)
	assert.Empty(t, cfg.Census.Wards)

	assert.Empty(t, cfg.WardDirectory.URL)
	assert.Equal(t, 5*time.Second, cfg.WardDirectory.Timeout)
	assert.Equal(t, 2, cfg.WardDirectory.Retries)
	assert.Equal(t, 30*time.Second, cfg.WardDirectory.CacheTTL)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("MQTT_QOS", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CENSUS_ROLLUP_CACHE_TTL", "30s")
	t.Setenv("CENSUS_ROLLUP_CONCURRENCY", "8")
	t.Setenv("CENSUS_REVIEWER_ROLES", " Supervisor , ,Director")
	t.Setenv("CENSUS_EVENT_SINK", "MQTT")
	t.Setenv("CENSUS_WARDS", "W1:Medical, W2")
	t.Setenv("WARD_DIRECTORY_URL", "http://wards.local")
	t.Setenv("WARD_DIRECTORY_CACHE_TTL", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, byte(2), cfg.MQTT.QoS)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Census.RollupCacheTTL)
	assert.Equal(t, 8, cfg.Census.RollupConcurrency)
	assert.Equal(t, []string{"Supervisor", "Director"}, cfg.Census.ReviewerRoles)
	assert.Equal(t, EventSinkMQTT, cfg.Census.EventSink)
	assert.Equal(t, []domain.Ward{
		{WardID: "W1", WardName: "Medical", Active: true},
		{WardID: "W2", WardName: "W2", Active: true},
	}, cfg.Census.Wards)
	assert.Equal(t, "http://wards.local", cfg.WardDirectory.URL)
	assert.Zero(t, cfg.WardDirectory.CacheTTL)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"STORE_BACKEND":             "mongo",
		"CENSUS_EVENT_SINK":         "kafka",
		"CENSUS_ROLLUP_CACHE_TTL":   "five minutes",
		"CENSUS_ROLLUP_CONCURRENCY": "-1",
		"CENSUS_WARDS":              "W1,W1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseWards(t *testing.T) {
	wards, err := ParseWards("")
	require.NoError(t, err)
	assert.Nil(t, wards)

	_, err = ParseWards(":Nameless")
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))

	t.Setenv("TEST_KEY", "test-value")
	assert.Equal(t, "test-value", getEnv("TEST_KEY", "default-value"))
}
