package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoad_Defaults(t *testing.T) {
	t.Setenv("COMPANION_DB_DRIVER", "")
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5, cfg.DailyCap)
	assert.Equal(t, 20, cfg.MinWords)
	assert.Equal(t, 30, cfg.MaxWords)
	assert.Equal(t, 2, cfg.DifficultyDropStreak)
	assert.Equal(t, 5, cfg.BootstrapTimeoutSeconds)
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("COMPANION_DAILY_CAP", "3")
	t.Setenv("COMPANION_TIME_ZONE", "Asia/Shanghai")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DailyCap)
	assert.Equal(t, "Asia/Shanghai", cfg.Location().String())
}

func TestConfigLoad_DispatchSettings(t *testing.T) {
	t.Setenv("COMPANION_DISPATCH_SHARDS", "8")
	t.Setenv("COMPANION_DISPATCH_MAX_ATTEMPTS", "0")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.DispatchShards)
	assert.Equal(t, 128, cfg.DispatchQueueSize)
	assert.Equal(t, 5, cfg.DispatchMaxAttempts)
}

func TestConfigLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("COMPANION_DB_DRIVER", "postgres")
	t.Setenv("COMPANION_POSTGRES_DSN", "")

	_, err := New()
	require.Error(t, err)
}

func TestResolveDefaults_RejectsBadBounds(t *testing.T) {
	cfg := NewForTesting()
	cfg.MinWords = 40
	require.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.DBDriver = "spanner"
	require.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.TimeZone = "Mars/Olympus"
	require.Error(t, cfg.ResolveDefaults())
}

func TestNewForTesting(t *testing.T) {
	cfg := NewForTesting()
	assert.True(t, cfg.IsTesting())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":11545", cfg.GetHTTPAddr())
	require.NoError(t, cfg.ResolveDefaults())
}
