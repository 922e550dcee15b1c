package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/fields"
	"github.com/eargollo/docqueue/internal/metrics"
	"github.com/eargollo/docqueue/internal/queue"
)

// maxPollWait bounds how long a poll request may hold the connection.
const maxPollWait = 30 * time.Second

// QueueHandler exposes the extraction queue to HTTP workers.
type QueueHandler struct {
	Queue  queue.Queue
	Fields fields.Names
}

// PolledDocument is a queued document plus the index fields known for it.
type PolledDocument struct {
	document.Document
	Fields map[string]string `json:"fields"`
}

// Get handles GET /api/queue.
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.Queue.Size(r.Context())
	if err != nil {
		writeQueueError(w, err)
		return
	}
	metrics.QueueSize.WithLabelValues(h.Queue.Name()).Set(float64(n))
	writeJSON(w, http.StatusOK, map[string]any{
		"name": h.Queue.Name(),
		"size": n,
	})
}

// Poll handles POST /api/queue/poll?wait=5s. It answers 200 with the next
// document or 204 when none arrived in time.
func (h *QueueHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var wait time.Duration
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_WAIT", "wait must be a non-negative duration")
			return
		}
		wait = min(d, maxPollWait)
	}

	doc, ok, err := h.Queue.Poll(r.Context(), wait)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, PolledDocument{Document: doc, Fields: h.Fields.Record(doc)})
}

func writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusGone, "QUEUE_CLOSED", err.Error())
	case errors.Is(err, queue.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
