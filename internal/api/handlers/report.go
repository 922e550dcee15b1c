package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/metrics"
	"github.com/eargollo/docqueue/internal/report"
)

// ReportHandler reads and records extraction outcomes.
type ReportHandler struct {
	Report  report.Report
	Factory *document.Factory
}

// RecordRequest is the body of PUT /api/report. ID may be omitted; it is then
// derived from the path with the configured identity method.
type RecordRequest struct {
	Path   string         `json:"path"`
	ID     string         `json:"id"`
	Status *report.Status `json:"status"`
}

// Get handles GET /api/report?match=<status>. The body is the JSON object
// mapping each path to its status code.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	var match *report.Status
	if v := r.URL.Query().Get("match"); v != "" {
		s, err := report.ParseStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", err.Error())
			return
		}
		match = &s
	}

	w.Header().Set("Content-Type", "application/json")
	if err := report.Serialize(r.Context(), w, h.Report, match, nil); err != nil {
		// Headers are gone once the first byte is written; all we can do is log.
		slog.Error("report: serialize", "error", err)
	}
}

// Put handles PUT /api/report.
func (h *ReportHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body: "+err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "path is required")
		return
	}
	if req.Status == nil {
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "status is required")
		return
	}
	status := *req.Status

	doc, err := h.document(req)
	if err != nil {
		if errors.Is(err, document.ErrUnreadable) {
			writeError(w, http.StatusUnprocessableEntity, "UNREADABLE", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := h.Report.Put(r.Context(), doc, status); err != nil {
		slog.Error("report: put", "path", doc.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "REPORT_UNAVAILABLE", err.Error())
		return
	}
	metrics.ReportRecords.WithLabelValues(status.String()).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   doc.Path,
		"id":     doc.ID,
		"status": status,
	})
}

func (h *ReportHandler) document(req RecordRequest) (document.Document, error) {
	if req.ID == "" && h.Factory.Method() == document.IDMethodDigest {
		return h.Factory.Create(req.Path)
	}
	path, err := document.NormalizePath(req.Path)
	if err != nil {
		return document.Document{}, err
	}
	return h.Factory.FromRecord(path, req.ID), nil
}
