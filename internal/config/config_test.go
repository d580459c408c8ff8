package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("REMOTE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.NotEmpty(t, cfg.Remote.DeviceID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ORGANIZATION_ID", "org-1")
	t.Setenv("REMOTE_BASE_URL", "https://api.example.test")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PG_EMBEDDED", "yes")
	t.Setenv("REMOTE_TOKEN_TTL", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "org-1", cfg.OrganizationID)
	assert.True(t, cfg.Database.Embedded)
	assert.Equal(t, time.Minute, cfg.Remote.TokenTTL)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "sqlite"}}
	assert.Error(t, cfg.Validate(), "organization is required")

	cfg.OrganizationID = "org-1"
	assert.Error(t, cfg.Validate(), "remote url is required")

	cfg.Remote.BaseURL = "http://localhost"
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "sqlite"
	assert.NoError(t, cfg.Validate())
}

func TestLoadSyncConfig_Defaults(t *testing.T) {
	t.Setenv("SYNC_CONFIG_PATH", "")
	t.Setenv("SYNC_MAX_FAILED_ATTEMPTS", "")
	t.Setenv("REMOTE_BASE_URL", "http://backend.test")
	t.Setenv("REMOTE_FALLBACK_URL", "")

	cfg, err := LoadSyncConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxFailedAttempts)
	assert.Equal(t, DefaultPushOrder, cfg.PushOrder)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "http://backend.test", cfg.Routes[0].URL)
	assert.False(t, cfg.PruneOnPull)
}

func TestLoadSyncConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")
	body := `{"max_failed_attempts": 2, "push_order": ["stock", "customers"], "batch_size": -1}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("SYNC_CONFIG_PATH", path)

	cfg, err := LoadSyncConfig()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxFailedAttempts)
	assert.Equal(t, []string{"stock", "customers"}, cfg.PushOrder)
	assert.Equal(t, 100, cfg.BatchSize, "invalid batch size falls back to default")
	assert.True(t, cfg.Enabled, "missing keys keep defaults")
}

func TestLoadSyncConfig_BadFile(t *testing.T) {
	t.Setenv("SYNC_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	_, err := LoadSyncConfig()
	assert.Error(t, err)
}
