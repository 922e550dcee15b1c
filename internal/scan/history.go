package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Scan statuses stored in scan_history.status.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ErrRecordNotFound is returned by GetRecord for an unknown scan ID.
var ErrRecordNotFound = errors.New("scan record not found")

// Record is one row of scan_history.
type Record struct {
	ID              int64      `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	Status          string     `json:"status"`
	TriggeredBy     string     `json:"triggered_by"`
	Roots           []string   `json:"roots"`
	FilesDiscovered int64      `json:"files_discovered"`
	FilesQueued     int64      `json:"files_queued"`
	FilesSkipped    int64      `json:"files_skipped"`
	Errors          int64      `json:"errors"`
	FailedRoots     int64      `json:"failed_roots"`
	DurationSeconds *int64     `json:"duration_seconds"`
}

// RecordError is one row of scan_errors.
type RecordError struct {
	Path       string    `json:"path"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

const recordColumns = `id, started_at, finished_at, status, triggered_by, roots,
	files_discovered, files_queued, files_skipped, errors, failed_roots, duration_seconds`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var startedAt int64
	var finishedAt, durSecs sql.NullInt64
	var roots string
	err := row.Scan(&rec.ID, &startedAt, &finishedAt, &rec.Status, &rec.TriggeredBy, &roots,
		&rec.FilesDiscovered, &rec.FilesQueued, &rec.FilesSkipped, &rec.Errors, &rec.FailedRoots, &durSecs)
	if err != nil {
		return Record{}, err
	}
	rec.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		rec.FinishedAt = &t
	}
	if durSecs.Valid {
		rec.DurationSeconds = &durSecs.Int64
	}
	rec.Roots = splitRoots(roots)
	return rec, nil
}

// ListRecords returns scan history newest first, plus the total row count.
func ListRecords(ctx context.Context, db *sql.DB, limit, offset int) ([]Record, int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM scan_history
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list scans: scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list scans: %w", err)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_history`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scans: %w", err)
	}
	return records, total, nil
}

// GetRecord returns one scan by ID.
func GetRecord(ctx context.Context, db *sql.DB, id int64) (Record, error) {
	rec, err := scanRecord(db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM scan_history WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get scan %d: %w", id, err)
	}
	return rec, nil
}

// RecordErrors returns the per-entry errors logged for a scan, oldest first.
func RecordErrors(ctx context.Context, db *sql.DB, id int64) ([]RecordError, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, stage, error, occurred_at
		FROM scan_errors WHERE scan_id = ?
		ORDER BY occurred_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("scan errors %d: %w", id, err)
	}
	defer rows.Close()

	list := []RecordError{}
	for rows.Next() {
		var e RecordError
		var occAt int64
		if err := rows.Scan(&e.Path, &e.Stage, &e.Error, &occAt); err != nil {
			return nil, fmt.Errorf("scan errors %d: %w", id, err)
		}
		e.OccurredAt = time.Unix(occAt, 0).UTC()
		list = append(list, e)
	}
	return list, rows.Err()
}

// progressReporter writes the current counters to scan_history every second
// until stop is closed.
func progressReporter(ctx context.Context, db *sql.DB, scanID int64, p *Progress, stop <-chan struct{}) {
	flush := func() {
		_, err := db.ExecContext(ctx, `
			UPDATE scan_history
			SET files_discovered = ?,
			    files_queued     = ?,
			    files_skipped    = ?,
			    errors           = ?,
			    failed_roots     = ?
			WHERE id = ?`,
			p.FilesDiscovered.Load(),
			p.Queued.Load(),
			p.Skipped.Load(),
			p.Errors.Load(),
			p.FailedRoots.Load(),
			scanID)
		if err != nil && ctx.Err() == nil {
			slog.Warn("progress reporter: update failed", "error", err)
		}
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			flush()
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ── DB helpers ────────────────────────────────────────────────────────────────

func joinRoots(roots []string) string { return strings.Join(roots, "\n") }

func splitRoots(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

func insertScanRecord(db *sql.DB, startedAt time.Time, triggeredBy string, roots []string) (int64, error) {
	now := startedAt.Unix()
	res, err := db.Exec(`
		INSERT INTO scan_history
			(started_at, status, triggered_by, roots, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		now, StatusRunning, triggeredBy, joinRoots(roots), now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertScanError(db *sql.DB, scanID int64, path, stage, errMsg string) error {
	_, err := db.Exec(`
		INSERT INTO scan_errors (scan_id, path, stage, error, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		scanID, path, stage, errMsg, time.Now().Unix())
	return err
}

func finaliseScanRecord(db *sql.DB, scanID int64, status string, finishedAt, durationSecs int64, p *Progress) error {
	_, err := db.Exec(`
		UPDATE scan_history
		SET status           = ?,
		    finished_at      = ?,
		    duration_seconds = ?,
		    files_discovered = ?,
		    files_queued     = ?,
		    files_skipped    = ?,
		    errors           = ?,
		    failed_roots     = ?
		WHERE id = ?`,
		status, finishedAt, durationSecs,
		p.FilesDiscovered.Load(),
		p.Queued.Load(),
		p.Skipped.Load(),
		p.Errors.Load(),
		p.FailedRoots.Load(),
		scanID)
	return err
}
