package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theia-log/theia/pkg/log"
	"github.com/theia-log/theia/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "theia",
	Short: "Theia - Distributed log event aggregator",
	Long: `Theia collects log events from many hosts in one place.

Watchers tail log files and ship every appended line to a collector
over a persistent message channel. The collector stores each event,
serves historical queries and streams matching events to live
subscribers in real time.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Theia version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(collectorCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(liveCmd)
}

// initLogging configures the global logger from the persistent flags.
func initLogging(cmd *cobra.Command) {
	level := log.InfoLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level})
	metrics.SetVersion(Version)
}
