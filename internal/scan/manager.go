package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/events"
	"github.com/eargollo/docqueue/internal/metrics"
	"github.com/eargollo/docqueue/internal/queue"
)

// ErrAlreadyRunning is returned when a scan is started while one is in progress.
var ErrAlreadyRunning = errors.New("a scan is already in progress")

// ErrNoActiveScan is returned when cancel is called with no scan running.
var ErrNoActiveScan = errors.New("no scan is currently running")

// ActiveScan holds live information about the running scan.
type ActiveScan struct {
	ID          int64
	StartedAt   time.Time
	TriggeredBy string
	Roots       []string
	Progress    *Progress
}

// Manager runs at most one background scan over the configured roots and
// records each run in scan_history. It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	db      *sql.DB
	factory *document.Factory
	queue   queue.Queue
	monitor events.Notifiable
	roots   []string
	opts    Options

	active   *ActiveScan
	cancelFn context.CancelFunc
	done     chan struct{}
}

// NewManager creates a Manager. monitor may be nil.
func NewManager(db *sql.DB, factory *document.Factory, q queue.Queue, monitor events.Notifiable, roots []string, opts Options) *Manager {
	return &Manager{
		db:      db,
		factory: factory,
		queue:   q,
		monitor: monitor,
		roots:   roots,
		opts:    opts,
	}
}

// UpdateRoots replaces the roots used for future scans. A running scan is
// not affected.
func (m *Manager) UpdateRoots(roots []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots = roots
}

// Roots returns the roots future scans will walk.
func (m *Manager) Roots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.roots...)
}

// Start launches an asynchronous scan. Returns an ActiveScan snapshot or
// ErrAlreadyRunning if a scan is already in progress.
func (m *Manager) Start(parentCtx context.Context, triggeredBy string) (*ActiveScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyRunning
	}
	if len(m.roots) == 0 {
		return nil, ErrNoPaths
	}

	// The record is created up front so the ID is in the HTTP response.
	startedAt := time.Now()
	roots := append([]string(nil), m.roots...)
	scanID, err := insertScanRecord(m.db, startedAt, triggeredBy, roots)
	if err != nil {
		return nil, fmt.Errorf("create scan record: %w", err)
	}

	opts := m.opts
	opts.OnError = func(path, stage, errMsg string) {
		if err := insertScanError(m.db, scanID, path, stage, errMsg); err != nil {
			slog.Warn("scan: record entry error", "id", scanID, "error", err)
		}
		if m.opts.OnError != nil {
			m.opts.OnError(path, stage, errMsg)
		}
	}
	scanner, err := New(m.factory, m.queue, m.monitor, opts)
	if err != nil {
		_ = finaliseScanRecord(m.db, scanID, StatusFailed, time.Now().Unix(), 0, &Progress{})
		return nil, err
	}

	scanCtx, cancel := context.WithCancel(parentCtx)
	active := &ActiveScan{
		ID:          scanID,
		StartedAt:   startedAt,
		TriggeredBy: triggeredBy,
		Roots:       roots,
		Progress:    scanner.Progress(),
	}
	m.active = active
	m.cancelFn = cancel
	m.done = make(chan struct{})
	done := m.done

	go func() {
		defer close(done)
		defer cancel()
		m.execute(scanCtx, scanner, active)

		m.mu.Lock()
		m.active = nil
		m.cancelFn = nil
		m.mu.Unlock()
	}()

	return active, nil
}

// execute runs the scan and finalises its record.
func (m *Manager) execute(ctx context.Context, scanner *Scanner, active *ActiveScan) {
	slog.Info("scan started", "id", active.ID, "triggered_by", active.TriggeredBy, "roots", len(active.Roots))

	stop := make(chan struct{})
	go progressReporter(ctx, m.db, active.ID, active.Progress, stop)

	_, runErr := Run(ctx, scanner, active.Roots)
	close(stop)

	status := StatusCompleted
	switch {
	case ctx.Err() != nil:
		status = StatusCancelled
	case runErr != nil:
		status = StatusFailed
	}

	finishedAt := time.Now()
	elapsed := finishedAt.Sub(active.StartedAt)
	duration := int64(elapsed.Seconds())
	metrics.ScansTotal.WithLabelValues(status).Inc()
	metrics.ScanDuration.Observe(elapsed.Seconds())
	if err := finaliseScanRecord(m.db, active.ID, status, finishedAt.Unix(), duration, active.Progress); err != nil {
		slog.Error("finalise scan record", "id", active.ID, "error", err)
	}
	if runErr != nil && status == StatusFailed {
		slog.Error("scan run error", "id", active.ID, "error", runErr)
	}

	slog.Info("scan finished", "id", active.ID, "status", status,
		"files_discovered", active.Progress.FilesDiscovered.Load(),
		"queued", active.Progress.Queued.Load())
}

// Cancel stops the currently running scan. Returns ErrNoActiveScan if idle.
func (m *Manager) Cancel() (*ActiveScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveScan
	}

	snap := *m.active
	m.cancelFn()
	return &snap, nil
}

// ActiveScan returns a snapshot of the running scan, or nil when idle.
func (m *Manager) ActiveScan() *ActiveScan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	snap := *m.active
	return &snap
}

// Wait blocks until the current scan (if any) has been finalised or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkStaleScansFailed marks any scan_history rows still in 'running' state
// as 'failed'. Call it once at startup in case a previous process crashed
// mid-scan.
func MarkStaleScansFailed(db *sql.DB) error {
	res, err := db.Exec(`
		UPDATE scan_history
		SET status = ?, finished_at = ?
		WHERE status = ?`,
		StatusFailed, time.Now().Unix(), StatusRunning)
	if err != nil {
		return fmt.Errorf("mark stale scans failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale scans as failed", "count", n)
	}
	return nil
}
