package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/revsearch/codec"
	"github.com/hupe1980/revsearch/internal/indexer"
)

var (
	indexBatchSize   int
	indexConcurrency int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector log from the stored reviews",
	Long: `Re-embed every review in reviews.jsonl and replace reviews.vectors.
Use it after switching embedders or dimensions. Fails while a server holds
the same data directory open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		c, _ := codec.ByName(cfg.Codec)

		batchSize := cfg.Indexer.BatchSize
		if cmd.Flags().Changed("batch-size") {
			batchSize = indexBatchSize
		}

		res, err := indexer.Rebuild(cmd.Context(), cfg.DataDir, newEmbedder(cfg, logger), func(o *indexer.Options) {
			o.BatchSize = batchSize
			o.EmbedBatchSize = cfg.Service.BatchSize
			if indexConcurrency > 0 {
				o.Concurrency = indexConcurrency
			}
			o.Scale = cfg.Scale
			o.Codec = c
			o.Logger = logger
		})
		if err != nil {
			return fmt.Errorf("index rebuild failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexed %d reviews in %d batches\n", res.Lines, res.Batches)
		if res.Fallback > 0 {
			fmt.Fprintf(out, "Raw-text fallback: %d lines\n", res.Fallback)
		}
		fmt.Fprintf(out, "Duration: %v\n", res.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexBatchSize, "batch-size", 2000, "lines per append batch")
	indexCmd.Flags().IntVar(&indexConcurrency, "concurrency", 0, "parallel embedding calls (default GOMAXPROCS)")
}
