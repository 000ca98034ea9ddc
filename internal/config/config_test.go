package config_test

import (
	"os"
	"testing"
	"time"

	"astrochat/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "STORAGE_DRIVER", "SWEEP_INTERVAL", "SEND_RATE_BURST", "JWT_SECRET"} {
		unsetenv(t, key)
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, config.StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10, cfg.SendRateBurst)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestConsultationTTL(t *testing.T) {
	assert.Equal(t, 5*time.Minute, config.ConsultationTTL)
}
