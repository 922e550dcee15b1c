package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/eargollo/docqueue/internal/config"
	"github.com/eargollo/docqueue/internal/scan"
	"github.com/eargollo/docqueue/internal/scheduler"
)

// ConfigHandler handles GET/PATCH /api/config and GET /api/fields.
type ConfigHandler struct {
	Cfg     *config.Config
	Manager *scan.Manager
	Sched   *scheduler.Scheduler
	mu      sync.Mutex // guards Cfg mutations
}

// ConfigPatch describes the fields that can be updated at runtime.
// Only supplied (non-nil) fields are applied. Changes last until restart.
type ConfigPatch struct {
	ScanPaths  []string `json:"scan_paths"`
	Schedule   *string  `json:"schedule"`
	ScanPaused *bool    `json:"scan_paused"`
}

// Get handles GET /api/config.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.Cfg)
}

// Fields handles GET /api/fields: the index field names workers should use.
func (h *ConfigHandler) Fields(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.Cfg.Fields)
}

// Apply acquires the config lock, validates and applies each non-nil patch
// field, and propagates the change to the scan manager and scheduler.
func (h *ConfigHandler) Apply(_ context.Context, patch ConfigPatch) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if patch.Schedule != nil && h.Sched != nil {
		if err := h.Sched.SetSchedule(*patch.Schedule); err != nil {
			return err
		}
	}
	if patch.Schedule != nil {
		h.Cfg.Schedule = *patch.Schedule
	}
	if patch.ScanPaths != nil {
		for _, p := range patch.ScanPaths {
			if p == "" {
				return fmt.Errorf("scan_paths must not contain empty paths")
			}
		}
		h.Cfg.ScanPaths = patch.ScanPaths
		if h.Manager != nil {
			h.Manager.UpdateRoots(patch.ScanPaths)
		}
	}
	if patch.ScanPaused != nil {
		h.Cfg.ScanPaused = *patch.ScanPaused
		if h.Sched != nil {
			h.Sched.SetPaused(*patch.ScanPaused)
		}
	}
	return nil
}

// Update handles PATCH /api/config.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}

	if err := h.Apply(r.Context(), patch); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.Cfg)
}
