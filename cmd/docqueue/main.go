package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eargollo/docqueue/internal/config"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

var (
	configPath string
	logLevel   string

	// cfg is loaded once by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docqueue",
	Short: "Scan document trees and queue them for extraction",
	Long: `docqueue walks directory trees, computes a stable identity for every
eligible file and puts it on a queue consumed by extraction workers. Workers
record each outcome in a report that can be inspected or filtered later.

Examples:
  docqueue queue /data/leak                    # queue a tree on the configured queue
  docqueue queue --queue-type redis --progress # queue . on Redis with a progress bar
  docqueue report --match failure_not_parsed   # list documents that failed to parse
  docqueue serve                               # HTTP API, metrics and scheduled rescans
  docqueue fields                              # print the index field names`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Logging first at info, so config errors are visible.
		setupLogging(slog.LevelInfo)

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		level, err := config.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		setupLogging(level)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(queueCmd, reportCmd, serveCmd, fieldsCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("docqueue failed", "error", err)
		os.Exit(1)
	}
}
