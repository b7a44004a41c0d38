package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "invoicing", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Invoicing.EnforceDraftOnly)
		assert.Equal(t, 5, cfg.Invoicing.NumberMaxAttempts)
		assert.Equal(t, 24*time.Hour, cfg.Payment.IdempotencyTTL)
		assert.Equal(t, "invoicing", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with INV prefix", func(t *testing.T) {
		t.Setenv("INV_APP_NAME", "billing")
		t.Setenv("INV_DATABASE_DRIVER", "SQLite")
		t.Setenv("INV_DATABASE_PATH", ":memory:")
		t.Setenv("INV_INVOICING_ENFORCE_DRAFT_ONLY", "true")
		t.Setenv("INV_INVOICING_NUMBER_MAX_ATTEMPTS", "9")
		t.Setenv("INV_PAYMENT_SIMULATED_DELAY", "250ms")
		t.Setenv("INV_PAYMENT_RANDOM_SEED", "42")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "billing", cfg.App.Name)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.DSN())
		assert.True(t, cfg.Invoicing.EnforceDraftOnly)
		assert.Equal(t, 9, cfg.Invoicing.NumberMaxAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.Payment.SimulatedDelay)
		assert.Equal(t, int64(42), cfg.Payment.RandomSeed)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("INV_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("INV_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		t.Setenv("INV_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("production requires password and ssl", func(t *testing.T) {
		t.Setenv("INV_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")
	})

	t.Run("stripe methods need a key", func(t *testing.T) {
		t.Setenv("INV_PAYMENT_STRIPE_METHODS", "CREDIT_CARD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe_secret_key")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "p@ss word",
		DBName:   "invoicing",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/invoicing?sslmode=require", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}
