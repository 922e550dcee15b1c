package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eargollo/docqueue/internal/scan"
)

// TriggeredBy is recorded in scan_history for scheduled runs.
const TriggeredBy = "schedule"

// Starter starts a background scan. *scan.Manager satisfies it.
type Starter interface {
	Start(ctx context.Context, triggeredBy string) (*scan.ActiveScan, error)
}

// Scheduler wraps robfig/cron and fires periodic rescans.
type Scheduler struct {
	mu       sync.RWMutex
	c        *cron.Cron
	ctx      context.Context
	starter  Starter
	entryID  cron.EntryID
	cronExpr string
	paused   bool
}

// New creates a stopped Scheduler. Scans it starts derive from ctx, so
// cancelling ctx cancels a scheduled scan in flight.
func New(ctx context.Context, starter Starter) *Scheduler {
	return &Scheduler{
		c:       cron.New(),
		ctx:     ctx,
		starter: starter,
	}
}

// SetSchedule replaces the rescan job. An empty expression removes it.
// If the scheduler is already running, the change takes effect immediately.
func (s *Scheduler) SetSchedule(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expr == "" {
		if s.entryID != 0 {
			s.c.Remove(s.entryID)
		}
		s.entryID = 0
		s.cronExpr = ""
		slog.Info("scheduler: rescans disabled")
		return nil
	}

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
	}
	s.entryID = s.c.Schedule(sched, cron.FuncJob(s.rescan))
	s.cronExpr = expr
	slog.Info("scheduler: job set", "cron", expr)
	return nil
}

// rescan is the cron job body. A scan already in progress is not an error.
func (s *Scheduler) rescan() {
	if s.Paused() {
		slog.Info("scheduler: rescan skipped, paused")
		return
	}
	active, err := s.starter.Start(s.ctx, TriggeredBy)
	switch {
	case errors.Is(err, scan.ErrAlreadyRunning):
		slog.Info("scheduler: rescan skipped, scan in progress")
	case err != nil:
		slog.Error("scheduler: rescan failed to start", "error", err)
	default:
		slog.Info("scheduler: rescan started", "id", active.ID)
	}
}

// SetPaused stops or resumes scheduled rescans without touching the job.
func (s *Scheduler) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// Paused reports whether scheduled rescans are suspended.
func (s *Scheduler) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// NextRunAt returns the next scheduled time, or nil if no job is set.
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.c.Entry(s.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// CronExpr returns the current cron expression.
func (s *Scheduler) CronExpr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cronExpr
}
