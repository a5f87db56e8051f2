package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadConfigDefaults(t *testing.T) {
	writeConfig(t, `
http:
  addr: ":8080"
grpc:
  addr: ":9090"
postgres:
  dsn: "postgres://localhost/sessions"
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "session-service", cfg.Logging.Service)
	require.Equal(t, "dev", cfg.Logging.Env)
	require.Equal(t, 24*time.Hour, cfg.Rooms.RetentionDur)
	require.Equal(t, time.Hour, cfg.Rooms.SweepEveryDur)
	require.Equal(t, 30*time.Second, cfg.Observer.IntervalDur)
	require.Equal(t, 15*time.Second, cfg.Observer.GenTimeoutDur)
	require.Equal(t, 3, cfg.Observer.MinMessages)
	require.Equal(t, 8, cfg.Observer.PromptWindow)
	require.Equal(t, 500, cfg.Observer.MaxReplyLen)
	require.False(t, cfg.Observer.RequireMinOnTrigger)
	require.Equal(t, "gemini-1.5-flash", cfg.GenAI.Model)
}

func TestLoadConfigParsesDurations(t *testing.T) {
	writeConfig(t, `
http:
  addr: ":8080"
grpc:
  addr: ":9090"
postgres:
  dsn: "postgres://localhost/sessions"
rooms:
  retention: 48h
  sweepEvery: 30m
observer:
  interval: 10s
  genTimeout: 5s
  requireMinOnTrigger: true
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 48*time.Hour, cfg.Rooms.RetentionDur)
	require.Equal(t, 30*time.Minute, cfg.Rooms.SweepEveryDur)
	require.Equal(t, 10*time.Second, cfg.Observer.IntervalDur)
	require.Equal(t, 5*time.Second, cfg.Observer.GenTimeoutDur)
	require.True(t, cfg.Observer.RequireMinOnTrigger)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	writeConfig(t, `
http:
  addr: ":8080"
grpc:
  addr: ":9090"
`)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestGenAIKeyFromEnv(t *testing.T) {
	writeConfig(t, `
http:
  addr: ":8080"
grpc:
  addr: ":9090"
postgres:
  dsn: "postgres://localhost/sessions"
`)
	t.Setenv("GOOGLE_GENAI_API_KEY", "from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.GenAI.APIKey)
}
