package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eargollo/docqueue/internal/scan"
)

// ScansHandler handles scan-related API endpoints.
type ScansHandler struct {
	DB      *sql.DB
	Manager *scan.Manager
	// BaseCtx parents manual scans so server shutdown cancels them.
	BaseCtx context.Context
}

// Create handles POST /api/scans: triggers a manual scan.
func (h *ScansHandler) Create(w http.ResponseWriter, r *http.Request) {
	base := h.BaseCtx
	if base == nil {
		base = context.Background()
	}
	active, err := h.Manager.Start(base, "manual")
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, "SCAN_ALREADY_RUNNING", "A scan is already in progress")
		case errors.Is(err, scan.ErrNoPaths):
			writeError(w, http.StatusUnprocessableEntity, "NO_SCAN_PATHS", "No scan paths are configured")
		default:
			slog.Error("scans: start", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start scan")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":           active.ID,
		"status":       scan.StatusRunning,
		"started_at":   active.StartedAt.UTC().Format(time.RFC3339),
		"triggered_by": active.TriggeredBy,
		"roots":        active.Roots,
	})
}

// Cancel handles DELETE /api/scans/current.
func (h *ScansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Manager.Cancel()
	if err != nil {
		if errors.Is(err, scan.ErrNoActiveScan) {
			writeError(w, http.StatusNotFound, "NO_ACTIVE_SCAN", "No scan is currently running")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         snap.ID,
		"status":     scan.StatusCancelled,
		"started_at": snap.StartedAt.UTC().Format(time.RFC3339),
		"queued":     snap.Progress.Queued.Load(),
	})
}

// List handles GET /api/scans: scan history, newest first.
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	records, total, err := scan.ListRecords(r.Context(), h.DB, limit, offset)
	if err != nil {
		slog.Error("scans list", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[scan.Record]{
		Items:  records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

type scanDetail struct {
	scan.Record
	ErrorList []scan.RecordError `json:"error_list"`
}

// Get handles GET /api/scans/{id}.
func (h *ScansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid scan ID")
		return
	}

	rec, err := scan.GetRecord(r.Context(), h.DB, id)
	if errors.Is(err, scan.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Scan not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	errs, err := scan.RecordErrors(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("scans get: errors", "id", id, "error", err)
		errs = []scan.RecordError{}
	}
	writeJSON(w, http.StatusOK, scanDetail{Record: rec, ErrorList: errs})
}
