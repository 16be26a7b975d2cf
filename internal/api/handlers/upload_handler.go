package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	middleware "github.com/resumelens/resumelens/internal/api/middlewares"
	"github.com/resumelens/resumelens/internal/core/ingest"
	"github.com/resumelens/resumelens/internal/core/objectstore"
	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

// UploadHandler accepts resume uploads and hands them to the pipeline. It is
// deliberately thin: real validation happens inside the pipeline, where its
// outcome is recorded on the job.
type UploadHandler struct {
	store   store.JobStore
	objects objectstore.Client
	pool    *ingest.Pool
	maxSize int64
	log     *slog.Logger
}

func NewUploadHandler(s store.JobStore, objects objectstore.Client, pool *ingest.Pool, maxSize int64, log *slog.Logger) *UploadHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UploadHandler{store: s, objects: objects, pool: pool, maxSize: maxSize, log: log}
}

// UploadResume handles multipart upload, object storage, job creation, and
// scheduling.
func (h *UploadHandler) UploadResume(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	// A little headroom over the pipeline's max so oversized uploads reach
	// the validator and fail with a proper job record.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+(1<<20))
	if err := r.ParseMultipartForm(h.maxSize + (1 << 20)); err != nil {
		http.Error(w, "upload too large or malformed", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read upload", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	jobID := uuid.NewString()
	key := path.Join("resumes", ownerID, jobID, filepath.Base(header.Filename))

	if err := h.objects.Put(r.Context(), key, data, contentType); err != nil {
		h.log.Error("store upload", "job_id", jobID, "error", err)
		http.Error(w, "could not store upload", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	job := &models.UploadJob{
		ID:               jobID,
		OwnerID:          ownerID,
		Filename:         key,
		OriginalFilename: header.Filename,
		MimeType:         contentType,
		FileSize:         int64(len(data)),
		Status:           models.StatusPending,
		TargetRole:       formValue(r, "target_role"),
		TargetIndustry:   formValue(r, "target_industry"),
		ExperienceLevel:  formValue(r, "experience_level"),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.store.CreateJob(r.Context(), job); err != nil {
		h.log.Error("create job", "job_id", jobID, "error", err)
		http.Error(w, "could not record upload", http.StatusInternalServerError)
		return
	}

	if err := h.pool.Enqueue(jobID); err != nil {
		h.log.Error("enqueue job", "job_id", jobID, "error", err)
		// The job stays pending; startup recovery or the sweeper resolves it.
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// formValue returns a pointer to a non-empty form field, nil otherwise. The
// classification tags are pass-through values; empty means "not supplied".
func formValue(r *http.Request, name string) *string {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	return &v
}
