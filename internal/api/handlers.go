// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/portier-bms/portier/internal/logging"
)

// healthResponse is the /healthz payload.
type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// syncStatusResponse is the /api/v1/sync/status payload. LastSync is
// RFC3339 or empty before the first successful cycle.
type syncStatusResponse struct {
	Initialized bool   `json:"initialized"`
	LastSync    string `json:"last_sync,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Err(err).Msg("Failed to encode response")
	}
}

// handleHealthz reports liveness. Always 200 while the process runs.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReadyz reports readiness: 200 once the sync manager has
// initialized, 503 before that.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.controller.Initialized() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleSyncStatus reports the last successful cycle.
func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	resp := syncStatusResponse{Initialized: s.controller.Initialized()}
	if last := s.controller.LastSyncTime(); !last.IsZero() {
		resp.LastSync = last.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSyncTrigger requests an immediate cycle. Returns 202; the cycle
// runs asynchronously and coalesces with a pending trigger.
func (s *Server) handleSyncTrigger(w http.ResponseWriter, _ *http.Request) {
	if !s.controller.Initialized() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sync manager not initialized"})
		return
	}
	s.controller.TriggerSync()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}
