package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAMLAndDefaults(t *testing.T) {
	path := writeConfig(t, `
mysql:
  dsn: "user:pw@tcp(db:3306)/dh"
queue:
  mode: asynq
fal:
  poll_interval: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "user:pw@tcp(db:3306)/dh", cfg.MySQL.DSN)
	assert.Equal(t, QueueModeAsynq, cfg.Queue.Mode)
	assert.Equal(t, time.Second, cfg.Fal.PollInterval)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.Concurrency)
	assert.Equal(t, int64(20), cfg.Quota.DailyLimit)
	assert.Equal(t, TTSProviderVoiceClone, cfg.TTS.Provider)
	assert.Equal(t, LLMProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "Abbess", cfg.TTS.VoiceID)
	assert.Equal(t, 30*time.Minute, cfg.Fal.Timeout)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9000"
llm:
  provider: openai
`)
	t.Setenv("DH_SERVER_PORT", ":7000")
	t.Setenv("DH_LLM_PROVIDER", "ollama")
	t.Setenv("DH_QUOTA_DAILY_LIMIT", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Port)
	assert.Equal(t, LLMProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, int64(3), cfg.Quota.DailyLimit)
}

func TestLoad_MissingFileUsesEnvOnly(t *testing.T) {
	t.Setenv("DH_MYSQL_DSN", "env-dsn")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-dsn", cfg.MySQL.DSN)
}

func TestLoad_RejectsUnknownQueueMode(t *testing.T) {
	path := writeConfig(t, "queue:\n  mode: kafka\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.mode")
}
