package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

// AdminHandler exposes the operator surface: queue statistics and purge.
type AdminHandler struct {
	store store.JobStore
	log   *slog.Logger
}

func NewAdminHandler(s store.JobStore, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{store: s, log: log}
}

// GetStats returns counts by status plus aggregate size and processing time.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

type purgeRequest struct {
	Status         string `json:"status"`
	OlderThanHours int    `json:"older_than_hours"`
}

var purgeableStatuses = map[models.JobStatus]bool{
	models.StatusCompleted: true,
	models.StatusError:     true,
}

// Purge deletes terminal jobs in the given status older than the window.
func (h *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	status := models.JobStatus(req.Status)
	if !purgeableStatuses[status] {
		http.Error(w, "status must be completed or error", http.StatusBadRequest)
		return
	}
	if req.OlderThanHours <= 0 {
		http.Error(w, "older_than_hours must be positive", http.StatusBadRequest)
		return
	}

	cutoff := time.Now().UTC().Add(-time.Duration(req.OlderThanHours) * time.Hour)
	n, err := h.store.PurgeOlderThan(r.Context(), status, cutoff)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.log.Info("admin purge", "status", status, "cutoff", cutoff, "deleted", n)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"deleted": n})
}
