package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.CartTTL)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 30*time.Minute, cfg.StaleSessionAfter)
	assert.False(t, cfg.StaleSweepEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, BrokerNone, cfg.EventsBroker)
	assert.Equal(t, 12*time.Hour, cfg.JWTTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "PGX")
	t.Setenv("DATABASE_URL", "postgres://app@db/tableorder")
	t.Setenv("EVENTS_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CLEANUP_INTERVAL", "15m")
	t.Setenv("STALE_SWEEP_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPgx, cfg.DBDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.CleanupInterval)
	assert.True(t, cfg.StaleSweepEnabled)
}

func TestValidateRejects(t *testing.T) {
	base := func() Config {
		return Config{DBDriver: "memory", EventsBroker: "none", LogLevel: "info", CartTTL: time.Hour, RateLimit: 1, RateBurst: 1}
	}
	tests := map[string]func(*Config){
		"sql without url": func(c *Config) { c.DBDriver = "mysql" },
		"unknown driver":  func(c *Config) { c.DBDriver = "sqlite" },
		"unknown broker":  func(c *Config) { c.EventsBroker = "nats" },
		"bad level":       func(c *Config) { c.LogLevel = "loud" },
		"zero cart ttl":   func(c *Config) { c.CartTTL = 0 },
		"zero burst":      func(c *Config) { c.RateBurst = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	ok := base()
	require.NoError(t, ok.Validate())
	assert.Error(t, ok.RequireJWT())
	ok.JWTSecret = "0123456789abcdef"
	assert.NoError(t, ok.RequireJWT())
}
