package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/eargollo/docqueue/internal/metrics"
	"github.com/eargollo/docqueue/internal/queue"
	"github.com/eargollo/docqueue/internal/report"
	"github.com/eargollo/docqueue/internal/scan"
	"github.com/eargollo/docqueue/internal/scheduler"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	DB      *sql.DB
	Manager *scan.Manager
	Sched   *scheduler.Scheduler
	Queue   queue.Queue
	Report  report.Report
	Version string
}

type statusResponse struct {
	Version           string             `json:"version"`
	ActiveScan        *activeScanInfo    `json:"active_scan"`
	Schedule          scheduleInfo       `json:"schedule"`
	LastCompletedScan *completedScanInfo `json:"last_completed_scan"`
	Queue             queueInfo          `json:"queue"`
	Report            reportInfo         `json:"report"`
}

type activeScanInfo struct {
	ID          int64            `json:"id"`
	StartedAt   time.Time        `json:"started_at"`
	TriggeredBy string           `json:"triggered_by"`
	Roots       []string         `json:"roots"`
	Progress    scanProgressInfo `json:"progress"`
}

type scanProgressInfo struct {
	FilesDiscovered int64 `json:"files_discovered"`
	Queued          int64 `json:"queued"`
	Skipped         int64 `json:"skipped"`
	DirsVisited     int64 `json:"dirs_visited"`
	Errors          int64 `json:"errors"`
	FailedRoots     int64 `json:"failed_roots"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	Paused    bool       `json:"paused"`
	NextRunAt *time.Time `json:"next_run_at"`
}

type completedScanInfo struct {
	ID          int64     `json:"id"`
	FinishedAt  time.Time `json:"finished_at"`
	FilesQueued int64     `json:"files_queued"`
	Errors      int64     `json:"errors"`
}

type queueInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Available bool   `json:"available"`
}

type reportInfo struct {
	Entries   int64 `json:"entries"`
	Available bool  `json:"available"`
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:           h.Version,
		ActiveScan:        h.activeScan(),
		LastCompletedScan: h.lastCompletedScan(r),
	}
	if h.Sched != nil {
		resp.Schedule = scheduleInfo{
			Cron:      h.Sched.CronExpr(),
			Paused:    h.Sched.Paused(),
			NextRunAt: h.Sched.NextRunAt(),
		}
	}
	if h.Queue != nil {
		resp.Queue.Name = h.Queue.Name()
		if n, err := h.Queue.Size(r.Context()); err == nil {
			resp.Queue.Size = n
			resp.Queue.Available = true
			metrics.QueueSize.WithLabelValues(h.Queue.Name()).Set(float64(n))
		} else {
			slog.Warn("status: queue size", "error", err)
		}
	}
	if h.Report != nil {
		if n, err := h.Report.Len(r.Context()); err == nil {
			resp.Report = reportInfo{Entries: n, Available: true}
		} else {
			slog.Warn("status: report length", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) activeScan() *activeScanInfo {
	if h.Manager == nil {
		return nil
	}
	a := h.Manager.ActiveScan()
	if a == nil {
		return nil
	}
	p := a.Progress
	return &activeScanInfo{
		ID:          a.ID,
		StartedAt:   a.StartedAt.UTC(),
		TriggeredBy: a.TriggeredBy,
		Roots:       a.Roots,
		Progress: scanProgressInfo{
			FilesDiscovered: p.FilesDiscovered.Load(),
			Queued:          p.Queued.Load(),
			Skipped:         p.Skipped.Load(),
			DirsVisited:     p.DirsVisited.Load(),
			Errors:          p.Errors.Load(),
			FailedRoots:     p.FailedRoots.Load(),
		},
	}
}

func (h *StatusHandler) lastCompletedScan(r *http.Request) *completedScanInfo {
	if h.DB == nil {
		return nil
	}
	row := h.DB.QueryRowContext(r.Context(), `
		SELECT id, finished_at, files_queued, errors
		FROM scan_history
		WHERE status = ?
		ORDER BY finished_at DESC, id DESC
		LIMIT 1`, scan.StatusCompleted)

	var info completedScanInfo
	var finishedAt int64
	err := row.Scan(&info.ID, &finishedAt, &info.FilesQueued, &info.Errors)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.Error("status: query last scan", "error", err)
		}
		return nil
	}
	info.FinishedAt = time.Unix(finishedAt, 0).UTC()
	return &info
}
