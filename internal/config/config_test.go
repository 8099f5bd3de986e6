package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Contains(t, cfg.Crawler.Excludes, "**/target*")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(dir, "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Pipeline, cfg.Pipeline)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
embedding:
  provider: jina
pipeline:
  workers: 3
  call_timeout: 5s
search:
  max_results: 20
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "jina", cfg.Embedding.Provider)
		assert.Equal(t, 3, cfg.Pipeline.Workers)
		assert.Equal(t, 5*time.Second, cfg.Pipeline.CallTimeout)
		assert.Equal(t, 20, cfg.Search.MaxResults)
		assert.Equal(t, 256, cfg.Pipeline.QueueSize, "unset fields keep defaults")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pipeline: [\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "local"
	cfg.Pipeline.BaseDelay = 250 * time.Millisecond

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestResolve(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvDataDir, dataDir)
	t.Setenv(EnvEmbeddingProvider, "LOCAL")
	t.Setenv(EnvEmbeddingModel, "")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dataDir, "index.db"), cfg.DatabasePath())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"zero queue", func(c *Config) { c.Pipeline.QueueSize = 0 }},
		{"batch too large", func(c *Config) { c.Pipeline.BatchSize = 500 }},
		{"bad glob", func(c *Config) { c.Crawler.Excludes = []string{"[unclosed"} }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "mystery" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"no data dir", func(c *Config) { c.DataDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
