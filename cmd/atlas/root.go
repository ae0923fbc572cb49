package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Atlas - adaptive endpoint health and routing engine",
	Long: `Atlas routes AI client traffic across multiple upstream provider
endpoints, continuously tracking endpoint health and picking the best
upstream per request.

It provides:
  - Per-client-type endpoint registries (claude, gemini, codex)
  - Rolling-window health derivation with synthetic probes
  - Latency, priority, and cost aware endpoint selection
  - Batch test-and-optimize with automatic enable/disable
  - Quota tracking with daily, weekly, and monthly reset cycles
  - A management console over HTTP with live event streaming`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "atlas.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
