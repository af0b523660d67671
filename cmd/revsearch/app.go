package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/blobstore"
	"github.com/hupe1980/revsearch/blobstore/minio"
	"github.com/hupe1980/revsearch/blobstore/s3"
	"github.com/hupe1980/revsearch/codec"
	"github.com/hupe1980/revsearch/embed"
	"github.com/hupe1980/revsearch/internal/config"
	"github.com/hupe1980/revsearch/internal/service"
)

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("dimension") {
		cfg.Dimension = dimension
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *revsearch.Logger {
	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return revsearch.NewWriterLogger(os.Stderr, cfg.Log.Format, level)
}

func newEmbedder(cfg *config.Config, logger *revsearch.Logger) embed.Embedder {
	var e embed.Embedder
	switch cfg.Embedder.Provider {
	case "openai":
		opts := []embed.Option{
			embed.WithModel(cfg.Embedder.Model),
			embed.WithDimension(cfg.Dimension),
		}
		if cfg.Embedder.BaseURL != "" {
			opts = append(opts, embed.WithBaseURL(cfg.Embedder.BaseURL))
		}
		e = embed.NewOpenAI(cfg.Embedder.APIKey, opts...)
	default:
		e = embed.NewHashing(cfg.Dimension)
	}
	if cfg.Embedder.Fallback {
		e = embed.NewFallback(e, logger.WithComponent("embedder").Logger)
	}
	return e
}

func openStore(cfg *config.Config, logger *revsearch.Logger, metrics revsearch.MetricsCollector) (*revsearch.Store, error) {
	c, _ := codec.ByName(cfg.Codec)

	durability := revsearch.DurabilitySync
	if cfg.Durability == "async" {
		durability = revsearch.DurabilityAsync
	}

	opts := []revsearch.Option{
		revsearch.WithCodec(c),
		revsearch.WithDurability(durability),
		revsearch.WithRepair(cfg.Repair),
		revsearch.WithLogger(logger),
		revsearch.WithMetricsCollector(metrics),
	}
	if cfg.Scale > 0 {
		opts = append(opts, revsearch.WithScale(cfg.Scale))
	}
	return revsearch.Open(cfg.DataDir, cfg.Dimension, opts...)
}

func newService(cfg *config.Config, store *revsearch.Store, logger *revsearch.Logger) (*service.Service, error) {
	return service.New(store, newEmbedder(cfg, logger), func(o *service.Options) {
		o.BatchSize = cfg.Service.BatchSize
		o.Concurrency = cfg.Service.Concurrency
		o.DefaultTopK = cfg.Service.DefaultTopK
		o.MaxTopK = cfg.Service.MaxTopK
		o.Logger = logger
	})
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	sc := cfg.Snapshot
	switch sc.Backend {
	case "s3":
		var opts []func(o *s3.Options)
		if sc.S3.Prefix != "" {
			opts = append(opts, s3.WithPrefix(sc.S3.Prefix))
		}
		if sc.S3.Region != "" {
			opts = append(opts, s3.WithRegion(sc.S3.Region))
		}
		if sc.S3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(sc.S3.Endpoint))
		}
		return s3.New(ctx, sc.S3.Bucket, opts...)
	case "minio":
		return minio.New(ctx, minio.Config{
			Endpoint:     sc.MinIO.Endpoint,
			AccessKey:    sc.MinIO.AccessKey,
			SecretKey:    sc.MinIO.SecretKey,
			Region:       sc.MinIO.Region,
			Secure:       sc.MinIO.Secure,
			Bucket:       sc.MinIO.Bucket,
			Prefix:       sc.MinIO.Prefix,
			CreateBucket: sc.MinIO.CreateBucket,
		})
	default:
		if err := os.MkdirAll(sc.Local.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
		return blobstore.NewLocalStore(sc.Local.Dir), nil
	}
}
