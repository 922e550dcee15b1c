package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eargollo/docqueue/internal/api"
	"github.com/eargollo/docqueue/internal/db"
	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/events"
	"github.com/eargollo/docqueue/internal/queue"
	"github.com/eargollo/docqueue/internal/report"
	"github.com/eargollo/docqueue/internal/scan"
	"github.com/eargollo/docqueue/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, metrics endpoint and scheduled rescans",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	slog.Info("docqueue starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"queue", cfg.Queue.Type,
		"report", cfg.Report.Type,
		"scan_paths", cfg.ScanPaths)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database ───────────────────────────────────────────────────────────
	database, err := db.OpenAndMigrate(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	// Mark any scans that were 'running' when last process exited as failed.
	if err := scan.MarkStaleScansFailed(database); err != nil {
		slog.Warn("mark stale scans", "error", err)
	}

	// ── Identity, queue, report ───────────────────────────────────────────
	opts, err := cfg.DocumentOptions()
	if err != nil {
		return err
	}
	factory, err := document.NewFactory(opts)
	if err != nil {
		return err
	}
	q, err := queue.New(ctx, cfg.QueueConfig())
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer q.Close()
	r, err := report.New(ctx, cfg.ReportConfig(), database)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer r.Close()

	// ── Scan manager ───────────────────────────────────────────────────────
	monitor := events.NewMonitor("scan", events.LogListener{})
	mgr := scan.NewManager(database, factory, q, monitor, cfg.ScanPaths, cfg.ScanOptions())

	// ── Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New(ctx, mgr)
	sched.SetPaused(cfg.ScanPaused)
	if err := sched.SetSchedule(cfg.Schedule); err != nil {
		slog.Warn("invalid cron expression", "expr", cfg.Schedule, "error", err)
	}
	sched.Start()
	defer sched.Stop()

	// ── HTTP server ────────────────────────────────────────────────────────
	srv := api.New(cfg.HTTPAddr, api.Deps{
		DB:        database,
		Config:    cfg,
		Manager:   mgr,
		Scheduler: sched,
		Queue:     q,
		Report:    r,
		Factory:   factory,
		Version:   version,
		BaseCtx:   ctx,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	if _, err := mgr.Cancel(); err == nil {
		slog.Info("cancelled running scan")
	}
	if err := mgr.Wait(context.Background()); err != nil {
		slog.Warn("wait for scan", "error", err)
	}
	slog.Info("docqueue stopped")
	return nil
}
