package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "@every 15m", cfg.Reminders.Schedule)
	assert.Equal(t, "project-files", cfg.Storage.Bucket)
	assert.Equal(t, 3600, cfg.Storage.SignedURLTTLSec)
	assert.Equal(t, "epikomhub:changes", cfg.Realtime.RedisChannel)
	assert.Equal(t, "Sent", cfg.IMAP.SentMailbox)
	assert.False(t, cfg.Reminders.EmailEnabled)
	assert.Empty(t, cfg.Session.Email)
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
session:
  email: ada@agency.test
reminders:
  schedule: "@hourly"
  email_enabled: true
smtp:
  host: smtp.agency.test
  port: "2525"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ada@agency.test", cfg.Session.Email)
	assert.Equal(t, "@hourly", cfg.Reminders.Schedule)
	assert.True(t, cfg.Reminders.EmailEnabled)
	assert.Equal(t, "smtp.agency.test", cfg.SMTP.Host)
	assert.Equal(t, "2525", cfg.SMTP.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("EPIKOMHUB_SESSION_EMAIL", "env@agency.test")
	t.Setenv("EPIKOMHUB_REALTIME_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env@agency.test", cfg.Session.Email)
	assert.Equal(t, "localhost:6379", cfg.Realtime.RedisAddr)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.Session.Email = "saved@agency.test"
	cfg.Reminders.Schedule = "@every 5m"

	require.NoError(t, SaveConfig(path, cfg))
	require.FileExists(t, path)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "saved@agency.test", loaded.Session.Email)
	assert.Equal(t, "@every 5m", loaded.Reminders.Schedule)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "hub.db"), expandHome("~/hub.db"))
	assert.Equal(t, "/var/hub.db", expandHome("/var/hub.db"))
}
