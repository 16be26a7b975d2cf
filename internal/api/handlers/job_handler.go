package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	middleware "github.com/resumelens/resumelens/internal/api/middlewares"
	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

// JobHandler serves job status for polling clients and the completion
// payload for downstream consumers.
type JobHandler struct {
	store store.JobStore
}

func NewJobHandler(s store.JobStore) *JobHandler {
	return &JobHandler{store: s}
}

// ownedJob loads a job and enforces ownership. A job belonging to someone
// else reads as not found, never as forbidden.
func (h *JobHandler) ownedJob(w http.ResponseWriter, r *http.Request) *models.UploadJob {
	ownerID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return nil
	}
	job, err := h.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return nil
	}
	if job.OwnerID != ownerID {
		http.Error(w, "job not found", http.StatusNotFound)
		return nil
	}
	return job
}

// ListResumes returns the caller's jobs, newest first.
func (h *JobHandler) ListResumes(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}
	jobs, err := h.store.ListByOwner(r.Context(), ownerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// GetResume returns one job's current state, including status and progress.
func (h *JobHandler) GetResume(w http.ResponseWriter, r *http.Request) {
	job := h.ownedJob(w, r)
	if job == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// completionPayload is exactly what the analysis collaborator consumes.
type completionPayload struct {
	ExtractedText    string           `json:"extracted_text"`
	WordCount        int              `json:"word_count"`
	CharacterCount   int              `json:"character_count"`
	ExtractionMethod string           `json:"extraction_method"`
	DetectedSections []models.Section `json:"detected_sections"`
}

// GetResumeText returns the extraction outputs of a completed job.
func (h *JobHandler) GetResumeText(w http.ResponseWriter, r *http.Request) {
	job := h.ownedJob(w, r)
	if job == nil {
		return
	}
	if job.Status != models.StatusCompleted || job.ExtractedText == nil {
		http.Error(w, "job has not completed", http.StatusConflict)
		return
	}
	payload := completionPayload{
		ExtractedText:    *job.ExtractedText,
		DetectedSections: job.DetectedSections,
	}
	if job.WordCount != nil {
		payload.WordCount = *job.WordCount
	}
	if job.CharacterCount != nil {
		payload.CharacterCount = *job.CharacterCount
	}
	if job.ExtractionMethod != nil {
		payload.ExtractionMethod = *job.ExtractionMethod
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
