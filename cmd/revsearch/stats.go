package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/revsearch"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, newLogger(cfg), revsearch.NoopMetricsCollector{})
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Fprintf(out, "Directory: %s\n", store.Dir())
		fmt.Fprintf(out, "Reviews: %d\n", stats.Count)
		fmt.Fprintf(out, "Dimension: %d\n", stats.Dimension)
		fmt.Fprintf(out, "Scale: %g\n", stats.Scale)
		fmt.Fprintf(out, "Durability: %s\n", stats.Durability)
		fmt.Fprintf(out, "Vector bytes: %s\n", formatSize(stats.VectorBytes))
		fmt.Fprintf(out, "Metadata bytes: %s\n", formatSize(stats.MetadataBytes))
		fmt.Fprintf(out, "Products: %d\n", stats.Products)
		fmt.Fprintf(out, "Ratings: %v\n", stats.Ratings)
		if r := store.LastRepair(); r.Changed() {
			fmt.Fprintf(out, "Repaired on open: dropped %d vectors, %d metadata lines\n",
				r.DroppedVectors, r.DroppedMetadata)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

// formatSize formats a byte count in binary units.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
