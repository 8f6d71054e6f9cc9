package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "ada.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.DB.BusyTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 20*time.Second, cfg.Scheduler.FetchTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.MaxCatchUp)
	assert.Equal(t, 256, cfg.Notify.QueueSize)
	assert.Equal(t, "log", cfg.Email.Adapter)
	assert.Equal(t, "@daily", cfg.Events.PruneSchedule)
	assert.Equal(t, "https://content.guardianapis.com", cfg.Sources.Guardian.BaseURL)

	loc, err := cfg.Scheduler.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadLayers(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
http:
  addr: 0.0.0.0:9000
log:
  level: debug
scheduler:
  timezone: Europe/London
  task_timeout: 10s
`)
	t.Setenv("ADA_LOG_LEVEL", "warn")
	t.Setenv("ADA_SCHEDULER_TASK_TIMEOUT", "45s")
	t.Setenv("ADA_NOT_A_KEY", "ignored")

	cfg, err := Load(path, map[string]any{"http.addr": "127.0.0.1:7000"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.HTTP.Addr, "override beats file")
	assert.Equal(t, "warn", cfg.Log.Level, "env beats file")
	assert.Equal(t, 45*time.Second, cfg.Scheduler.TaskTimeout)
	assert.Equal(t, "Europe/London", cfg.Scheduler.Timezone)
	assert.Equal(t, "ada.db", cfg.DB.Path, "defaults fill the rest")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		contains  string
	}{
		{"bad level", map[string]any{"log.level": "loud"}, "Level"},
		{"bad timezone", map[string]any{"scheduler.timezone": "Mars/Olympus"}, "scheduler.timezone"},
		{"bad adapter", map[string]any{"email.adapter": "pigeon"}, "Adapter"},
		{"sendgrid without key", map[string]any{"email.adapter": "sendgrid"}, "api_key"},
		{"fetch timeout not shorter", map[string]any{"scheduler.fetch_timeout": "30s"}, "fetch_timeout"},
		{"unbounded fetch", map[string]any{"scheduler.fetch_timeout": "0s"}, "fetch_timeout"},
		{"zero interval", map[string]any{"scheduler.interval": "0s"}, "Interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestEnvKeys(t *testing.T) {
	got := envKeys([]string{"scheduler.task_timeout", "http.addr"})
	assert.Equal(t, map[string]string{
		"scheduler_task_timeout": "scheduler.task_timeout",
		"http_addr":              "http.addr",
	}, got)
}

func TestWatchReloads(t *testing.T) {
	old := DebounceDelay
	DebounceDelay = 10 * time.Millisecond
	t.Cleanup(func() { DebounceDelay = old })

	dir := t.TempDir()
	path := writeFile(t, dir, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, zerolog.Nop(), func(c *Config) { got <- c.Log.Level })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "log:\n  level: loud\n")
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "log:\n  level: debug\n")

	select {
	case level := <-got:
		assert.Equal(t, "debug", level, "invalid config is skipped")
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	assert.NoError(t, <-done)
}
