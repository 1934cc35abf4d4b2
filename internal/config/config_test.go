package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesSpecDefaults(t *testing.T) {
	for _, key := range []string{
		"CACHE_PROVIDER_TTL_SECONDS", "MIN_SYNC_INTERVAL_SECONDS",
		"DEFAULT_SYNC_WINDOW_SECONDS", "PROGRESS_RECORD_INTERVAL",
		"PROGRESS_PERCENT_INTERVAL",
	} {
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.CacheProviderTTL)
	assert.Equal(t, 300*time.Second, cfg.MinSyncInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.DefaultSyncWindow)
	assert.Equal(t, 100, cfg.ProgressRecordInterval)
	assert.Equal(t, 5, cfg.ProgressPercentInterval)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	require.NoError(t, os.Setenv("MIN_SYNC_INTERVAL_SECONDS", "60"))
	defer os.Unsetenv("MIN_SYNC_INTERVAL_SECONDS")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.MinSyncInterval)
}

func TestLoad_ResolvesDataDirToAbsolutePath(t *testing.T) {
	cfg, err := Load("relative-data-dir")
	require.NoError(t, err)
	defer os.RemoveAll(cfg.DataDir)
	assert.True(t, len(cfg.DataDir) > 0 && cfg.DataDir[0] == '/')
}
