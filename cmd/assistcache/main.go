package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "assistcache",
	Short:   "Maintenance CLI for the local assistant cache",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			slog.SetLogLoggerLevel(slog.LevelWarn)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable info-level logging")
}
