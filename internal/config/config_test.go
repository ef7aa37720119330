package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  public_base_url: "https://mail.fluentive.com"

database:
  url: "postgres://localhost/campaigns_test"

mailer:
  provider: "ses"
  from_name: "Fluentive"
  from_addr: "hello@fluentive.com"
  region: "eu-west-1"

dispatch:
  batch_size: 50
  batch_pause_millis: 2000
  confirm_threshold: 250

scheduler:
  enabled: true
  interval_seconds: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://mail.fluentive.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, "postgres://localhost/campaigns_test", cfg.Database.URL)
	assert.Equal(t, "ses", cfg.Mailer.Provider)
	assert.Equal(t, "eu-west-1", cfg.Mailer.Region)
	assert.Equal(t, 50, cfg.Dispatch.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.BatchPause())
	assert.Equal(t, 250, cfg.Dispatch.ConfirmThreshold)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/campaigns"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "log", cfg.Mailer.Provider)
	assert.Equal(t, 100, cfg.Dispatch.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Dispatch.BatchPause())
	assert.Equal(t, 500, cfg.Dispatch.ConfirmThreshold)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval())
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.LockTTL())
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://file-host/campaigns"
mailer:
  from_addr: "file@fluentive.com"
`)

	t.Setenv("DATABASE_URL", "postgres://env-host/campaigns")
	t.Setenv("MAILER_FROM_ADDR", "env@fluentive.com")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/campaigns", cfg.Database.URL)
	assert.Equal(t, "env@fluentive.com", cfg.Mailer.FromAddr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}
