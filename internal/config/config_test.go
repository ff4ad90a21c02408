package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("CONFIG_PATH")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.FastModel)
	require.Equal(t, "gpt-4o", cfg.LLM.SynthesisModel)
	require.Equal(t, "https://google.serper.dev/search", cfg.Search.Endpoint)
	require.Equal(t, "in", cfg.News.Country)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9100
redis:
  addr: redis:6380
search:
  api_keys:
    - key-one
    - key-two
news:
  api_key: serp-key
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "redis:6380", cfg.Redis.Addr)
	require.Equal(t, []string{"key-one", "key-two"}, cfg.Search.APIKeys)
	require.Equal(t, "serp-key", cfg.News.APIKey)
	// Untouched values keep their defaults.
	require.Equal(t, 8081, cfg.Server.AdminPort)
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}
