// Package config loads the revsearch service configuration from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/revsearch/codec"
	"github.com/hupe1980/revsearch/internal/snapshot"
)

// Config is the service configuration.
type Config struct {
	DataDir    string  `yaml:"data_dir"`
	Dimension  int     `yaml:"dimension"`
	Scale      float32 `yaml:"scale,omitempty"`
	Durability string  `yaml:"durability"`
	Repair     bool    `yaml:"repair"`
	Codec      string  `yaml:"codec"`

	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Service  ServiceConfig  `yaml:"service"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// EmbedderConfig selects the embedding backend.
type EmbedderConfig struct {
	// Provider is "hashing" or "openai".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	// Fallback maps empty text and embedding failures to the zero vector.
	Fallback bool `yaml:"fallback"`
}

// ServiceConfig tunes ingestion and search.
type ServiceConfig struct {
	BatchSize   int `yaml:"batch_size"`
	Concurrency int `yaml:"concurrency"`
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// IndexerConfig tunes index rebuilds.
type IndexerConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// SnapshotConfig selects the snapshot destination.
type SnapshotConfig struct {
	// Backend is "local", "s3" or "minio".
	Backend     string      `yaml:"backend"`
	Compression string      `yaml:"compression"`
	Concurrency int         `yaml:"concurrency"`
	Local       LocalConfig `yaml:"local"`
	S3          S3Config    `yaml:"s3"`
	MinIO       MinIOConfig `yaml:"minio"`
}

// LocalConfig is a snapshot directory.
type LocalConfig struct {
	Dir string `yaml:"dir"`
}

// S3Config is an S3 snapshot bucket. Credentials come from the AWS chain.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// MinIOConfig is a MinIO snapshot bucket.
type MinIOConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Secure       bool   `yaml:"secure"`
	CreateBucket bool   `yaml:"create_bucket"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir:    "data",
		Dimension:  384,
		Durability: "sync",
		Repair:     true,
		Codec:      codec.Default.Name(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8000",
			CORSOrigins:     []string{"*"},
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    32 << 20,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Embedder: EmbedderConfig{
			Provider: "hashing",
			Model:    "text-embedding-3-small",
			Fallback: true,
		},
		Service: ServiceConfig{
			BatchSize:   64,
			Concurrency: 4,
			DefaultTopK: 5,
			MaxTopK:     100,
		},
		Indexer: IndexerConfig{
			BatchSize: 2000,
		},
		Snapshot: SnapshotConfig{
			Backend:     "local",
			Compression: string(snapshot.CompressionZstd),
			Concurrency: 3,
			Local:       LocalConfig{Dir: "snapshots"},
		},
	}
}

// Load reads path over the defaults, expands ${ENV} references and
// validates the result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnvVars()
	cfg.expandTilde()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) expandEnvVars() {
	for _, p := range []*string{
		&c.DataDir,
		&c.Embedder.APIKey,
		&c.Embedder.BaseURL,
		&c.Embedder.Model,
		&c.Snapshot.Local.Dir,
		&c.Snapshot.S3.Bucket,
		&c.Snapshot.S3.Prefix,
		&c.Snapshot.S3.Region,
		&c.Snapshot.S3.Endpoint,
		&c.Snapshot.MinIO.Endpoint,
		&c.Snapshot.MinIO.AccessKey,
		&c.Snapshot.MinIO.SecretKey,
		&c.Snapshot.MinIO.Bucket,
		&c.Snapshot.MinIO.Prefix,
	} {
		*p = os.ExpandEnv(*p)
	}
}

func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}
	c.DataDir = expand(c.DataDir)
	c.Snapshot.Local.Dir = expand(c.Snapshot.Local.Dir)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be greater than 0")
	}
	if c.Scale < 0 {
		return fmt.Errorf("scale must not be negative")
	}
	switch c.Durability {
	case "sync", "async":
	default:
		return fmt.Errorf("invalid durability %q (want sync or async)", c.Durability)
	}
	if _, ok := codec.ByName(c.Codec); !ok {
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", c.Log.Format)
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limiting configuration")
	}

	switch c.Embedder.Provider {
	case "hashing":
	case "openai":
		if c.Embedder.APIKey == "" && c.Embedder.BaseURL == "" {
			return fmt.Errorf("embedder.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown embedder provider %q", c.Embedder.Provider)
	}

	if c.Service.DefaultTopK <= 0 || c.Service.MaxTopK < c.Service.DefaultTopK {
		return fmt.Errorf("invalid top_k limits: default %d, max %d", c.Service.DefaultTopK, c.Service.MaxTopK)
	}

	if _, err := snapshot.ParseCompression(c.Snapshot.Compression); err != nil {
		return err
	}
	switch c.Snapshot.Backend {
	case "local":
		if c.Snapshot.Local.Dir == "" {
			return fmt.Errorf("snapshot.local.dir must not be empty")
		}
	case "s3":
		if c.Snapshot.S3.Bucket == "" {
			return fmt.Errorf("snapshot.s3.bucket must not be empty")
		}
	case "minio":
		if c.Snapshot.MinIO.Endpoint == "" || c.Snapshot.MinIO.Bucket == "" {
			return fmt.Errorf("snapshot.minio.endpoint and bucket must not be empty")
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend)
	}
	return nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
