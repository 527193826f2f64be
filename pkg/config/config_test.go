package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "10000", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "*", cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 3, cfg.Dispatch.BatchSize)
	assert.Equal(t, 3, cfg.Dispatch.MaxRounds)
	assert.Equal(t, 12*time.Second, cfg.Dispatch.OfferTTL)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.DriverStale)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.RetryDelay)
	assert.Equal(t, 3*time.Second, cfg.Dispatch.Linger)
	assert.False(t, cfg.Dispatch.QuickTestMode)

	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.NATS.Enabled())
}

func TestLoadCustomValues(t *testing.T) {
	os.Clearenv()
	os.Setenv("PORT", "9999")
	os.Setenv("BATCH_SIZE", "5")
	os.Setenv("MAX_ROUNDS", "2")
	os.Setenv("OFFER_TTL_MS", "500")
	os.Setenv("DRIVER_STALE_MS", "1000")
	os.Setenv("RETRY_DELAY_MS", "50")
	os.Setenv("LINGER_MS", "100")
	os.Setenv("QUICK_TEST_MODE", "true")
	os.Setenv("REDIS_ADDR", "localhost:6379")
	os.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Dispatch.BatchSize)
	assert.Equal(t, 2, cfg.Dispatch.MaxRounds)
	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.OfferTTL)
	assert.Equal(t, time.Second, cfg.Dispatch.DriverStale)
	assert.Equal(t, 50*time.Millisecond, cfg.Dispatch.RetryDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Dispatch.Linger)
	assert.True(t, cfg.Dispatch.QuickTestMode)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.NATS.Enabled())
}

func TestLoadClampsInvalidValues(t *testing.T) {
	os.Clearenv()
	os.Setenv("BATCH_SIZE", "0")
	os.Setenv("MAX_ROUNDS", "-1")
	os.Setenv("OFFER_TTL_MS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Dispatch.BatchSize)
	assert.Equal(t, 3, cfg.Dispatch.MaxRounds)
	assert.Equal(t, 12*time.Second, cfg.Dispatch.OfferTTL)
}

func TestLoadIgnoresGarbageValues(t *testing.T) {
	os.Clearenv()
	os.Setenv("BATCH_SIZE", "many")
	os.Setenv("QUICK_TEST_MODE", "sim")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Dispatch.BatchSize)
	assert.False(t, cfg.Dispatch.QuickTestMode)
}
