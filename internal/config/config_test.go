package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "revsearch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 384, cfg.Dimension)
	assert.Equal(t, "sync", cfg.Durability)
	assert.True(t, cfg.Repair)
	assert.Equal(t, "go-json", cfg.Codec)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Service.DefaultTopK)
	assert.Equal(t, 2000, cfg.Indexer.BatchSize)
	assert.Equal(t, "zstd", cfg.Snapshot.Compression)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/revsearch
dimension: 768
durability: async
log:
  level: debug
  format: json
server:
  addr: "127.0.0.1:9000"
  read_timeout: 3s
  rate_limit:
    enabled: false
service:
  max_top_k: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/revsearch", cfg.DataDir)
	assert.Equal(t, 768, cfg.Dimension)
	assert.Equal(t, "async", cfg.Durability)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 50, cfg.Service.MaxTopK)

	// Untouched keys keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 64, cfg.Service.BatchSize)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("REVSEARCH_TEST_KEY", "sk-test")
	t.Setenv("REVSEARCH_TEST_BUCKET", "snaps")

	path := writeConfig(t, `
embedder:
  provider: openai
  api_key: ${REVSEARCH_TEST_KEY}
snapshot:
  backend: s3
  s3:
    bucket: $REVSEARCH_TEST_BUCKET
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embedder.APIKey)
	assert.Equal(t, "snaps", cfg.Snapshot.S3.Bucket)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "dimension: [1, 2"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero dimension", func(c *Config) { c.Dimension = 0 }},
		{"negative scale", func(c *Config) { c.Scale = -1 }},
		{"bad durability", func(c *Config) { c.Durability = "never" }},
		{"bad codec", func(c *Config) { c.Codec = "xml" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad rate limit", func(c *Config) { c.Server.RateLimit.RPS = 0 }},
		{"openai without key", func(c *Config) { c.Embedder.Provider = "openai" }},
		{"unknown provider", func(c *Config) { c.Embedder.Provider = "word2vec" }},
		{"max below default", func(c *Config) { c.Service.MaxTopK = 1 }},
		{"bad compression", func(c *Config) { c.Snapshot.Compression = "gzip" }},
		{"s3 without bucket", func(c *Config) { c.Snapshot.Backend = "s3" }},
		{"minio without endpoint", func(c *Config) { c.Snapshot.Backend = "minio" }},
		{"unknown backend", func(c *Config) { c.Snapshot.Backend = "ftp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")

	cfg := Default()
	cfg.Dimension = 128
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
