package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. Reviews are embedded on insert and appended to the
store in the data directory; searches rank every stored vector.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		logger := newLogger(cfg)
		metrics := &revsearch.BasicMetricsCollector{}

		store, err := openStore(cfg, logger, metrics)
		if err != nil {
			return err
		}
		defer store.Close()

		svc, err := newService(cfg, store, logger)
		if err != nil {
			return err
		}

		rl := server.RateLimitConfig{}
		if cfg.Server.RateLimit.Enabled {
			rl.RequestsPerSecond = cfg.Server.RateLimit.RPS
			rl.Burst = cfg.Server.RateLimit.Burst
		}
		srv, err := server.New(server.Config{
			ListenAddr:      cfg.Server.Addr,
			CORSOrigins:     cfg.Server.CORSOrigins,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			MaxBodyBytes:    cfg.Server.MaxBodyBytes,
			RateLimit:       rl,
		}, svc, server.WithLogger(logger), server.WithMetrics(metrics))
		if err != nil {
			return err
		}

		n, _ := store.Len()
		logger.InfoContext(cmd.Context(), "starting server",
			"addr", cfg.Server.Addr,
			"data_dir", cfg.DataDir,
			"dimension", cfg.Dimension,
			"reviews", n,
			"embedder", cfg.Embedder.Provider,
		)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8000", "listen address")
}
