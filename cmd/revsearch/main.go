// Command revsearch runs and maintains a semantic review search store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	dataDir   string
	dimension int
	logFormat string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "revsearch",
	Short: "Semantic search over product reviews",
	Long: `revsearch embeds reviews into a flat int8 vector log next to a JSON-lines
metadata log and answers nearest-neighbour queries over HTTP.

Run "revsearch serve" to start the API, "revsearch import" to load a CSV
export and "revsearch snapshot" to back the store up to a bucket.`,
	SilenceUsage: true,
	Version:      version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "revsearch %s\n", version)
		if info, ok := debug.ReadBuildInfo(); ok {
			fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					fmt.Fprintf(out, "Git commit: %s\n", s.Value)
				case "vcs.modified":
					if s.Value == "true" {
						fmt.Fprintln(out, "Git status: dirty (uncommitted changes)")
					}
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "store directory (overrides data_dir)")
	rootCmd.PersistentFlags().IntVar(&dimension, "dimension", 0, "vector dimension (overrides dimension)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides log.format)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
