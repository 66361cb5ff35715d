package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "wisefido-census/internal/common/config"
	"wisefido-census/internal/domain"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	EventSinkNone  = "none"
	EventSinkRedis = "redis"
	EventSinkMQTT  = "mqtt"
)

// Config wisefido-census (shift census HTTP API) settings, all from the environment.
type Config struct {
	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	Store struct {
		// Backend memory | postgres. postgres falls back to memory when the database is unreachable.
		Backend string
	}
	Database commoncfg.DatabaseConfig
	Redis    struct {
		Enabled bool
		commoncfg.RedisConfig
	}
	MQTT commoncfg.MQTTConfig
	Log  struct {
		Level  string
		Format string
	}
	Census        CensusConfig
	WardDirectory WardDirectoryConfig
}

// CensusConfig pipeline behaviour.
type CensusConfig struct {
	RollupCacheTTL    time.Duration
	RollupConcurrency int
	ReviewerRoles     []string

	EventSink         string // none | redis | mqtt
	EventStream       string
	EventStreamMaxLen int64
	EventTopicPrefix  string
	PublishTimeout    time.Duration

	// Wards seeds the in-memory ward directory ("W1:Medical,W2:Surgical").
	Wards []domain.Ward
}

// WardDirectoryConfig remote ward reference service; empty URL uses the local store.
type WardDirectoryConfig struct {
	URL      string
	Timeout  time.Duration
	Retries  int
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	var err error
	if cfg.HTTP.ShutdownTimeout, err = parseDuration("HTTP_SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", StorePostgres))
	if cfg.Store.Backend != StoreMemory && cfg.Store.Backend != StorePostgres {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q (must be memory or postgres)", cfg.Store.Backend)
	}

	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "census",
		SSLMode:  "disable",
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.RedisConfig.LoadFromEnv("REDIS")

	cfg.MQTT = commoncfg.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-census",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// Census
	if cfg.Census.RollupCacheTTL, err = parseDuration("CENSUS_ROLLUP_CACHE_TTL", "5m"); err != nil {
		return nil, err
	}
	cfg.Census.RollupConcurrency = parseInt(getEnv("CENSUS_ROLLUP_CONCURRENCY", "4"), 4)
	if cfg.Census.RollupConcurrency <= 0 {
		return nil, fmt.Errorf("invalid CENSUS_ROLLUP_CONCURRENCY %d (must be > 0)", cfg.Census.RollupConcurrency)
	}
	cfg.Census.ReviewerRoles = splitList(getEnv("CENSUS_REVIEWER_ROLES", "Manager,Admin,SystemAdmin,Supervisor"))

	cfg.Census.EventSink = strings.ToLower(getEnv("CENSUS_EVENT_SINK", EventSinkNone))
	switch cfg.Census.EventSink {
	case EventSinkNone, EventSinkRedis, EventSinkMQTT:
	default:
		return nil, fmt.Errorf("invalid CENSUS_EVENT_SINK %q (must be none, redis or mqtt)", cfg.Census.EventSink)
	}
	cfg.Census.EventStream = getEnv("CENSUS_EVENT_STREAM", "census:events")
	cfg.Census.EventStreamMaxLen = int64(parseInt(getEnv("CENSUS_EVENT_STREAM_MAXLEN", "10000"), 10000))
	cfg.Census.EventTopicPrefix = getEnv("CENSUS_EVENT_TOPIC_PREFIX", "census")
	if cfg.Census.PublishTimeout, err = parseDuration("CENSUS_PUBLISH_TIMEOUT", "3s"); err != nil {
		return nil, err
	}
	if cfg.Census.Wards, err = ParseWards(getEnv("CENSUS_WARDS", "")); err != nil {
		return nil, err
	}

	// Ward directory
	cfg.WardDirectory.URL = getEnv("WARD_DIRECTORY_URL", "")
	if cfg.WardDirectory.Timeout, err = parseDuration("WARD_DIRECTORY_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	cfg.WardDirectory.Retries = parseInt(getEnv("WARD_DIRECTORY_RETRIES", "2"), 2)
	if cfg.WardDirectory.CacheTTL, err = parseDuration("WARD_DIRECTORY_CACHE_TTL", "30s"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseWards "W1:Medical,W2:Surgical" into active wards. A bare id uses itself as name.
func ParseWards(s string) ([]domain.Ward, error) {
	var wards []domain.Ward
	seen := make(map[string]bool)
	for _, item := range splitList(s) {
		id, name, _ := strings.Cut(item, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" {
			return nil, fmt.Errorf("invalid CENSUS_WARDS entry %q", item)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate ward %q in CENSUS_WARDS", id)
		}
		seen[id] = true
		if name == "" {
			name = id
		}
		wards = append(wards, domain.Ward{WardID: id, WardName: name, Active: true})
	}
	return wards, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
