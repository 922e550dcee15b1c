package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eargollo/docqueue/internal/db"
	"github.com/eargollo/docqueue/internal/events"
	"github.com/eargollo/docqueue/internal/report"
)

var (
	reportMatch    string
	reportProgress bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the extraction report as JSON",
	Long: `Write the report to stdout as a JSON object mapping every document path
to its status code. With --match only documents in that status are written.

Status codes:
  0 success            1 failure_not_saved     2 failure_not_decrypted
  3 failure_not_parsed 4 failure_unreadable    5 failure_not_found
  6 failure_unsupported 7 success_empty        9 failure_unknown`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportMatch, "match", "", "only include documents with this status (name or code)")
	reportCmd.Flags().BoolVar(&reportProgress, "progress", false, "show a progress bar on stderr")
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var match *report.Status
	if reportMatch != "" {
		s, err := report.ParseStatus(reportMatch)
		if err != nil {
			return err
		}
		match = &s
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := cfg.ReportConfig()
	var database *sql.DB
	if rc.Type == report.TypeSQLite {
		d, err := db.OpenAndMigrate(cfg.DBPath)
		if err != nil {
			return err
		}
		defer d.Close()
		database = d
	}
	r, err := report.New(ctx, rc, database)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer r.Close()

	var monitor events.Notifiable
	if reportProgress {
		bar := events.NewConsoleListener("Reporting")
		bar.Writer = os.Stderr
		defer bar.Stop()
		monitor = events.NewMonitor("report", bar)
	}

	if err := report.Serialize(ctx, cmd.OutOrStdout(), r, match, monitor); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
