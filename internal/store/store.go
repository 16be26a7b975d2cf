// Package store persists upload jobs. Two backends implement JobStore:
// Postgres for deployments and embedded SQLite for local use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/resumelens/resumelens/internal/models"
)

var (
	// ErrNotFound is returned when no job exists for the given id.
	ErrNotFound = errors.New("job not found")
	// ErrStaleVersion is returned when an update carries a version that no
	// longer matches the stored row. The caller read a job, lost the race to
	// another writer, and must re-read before retrying.
	ErrStaleVersion = errors.New("stale job version")
)

// QueueStats is the administrative statistics summary.
type QueueStats struct {
	CountsByStatus  map[models.JobStatus]int64 `json:"counts_by_status"`
	TotalBytes      int64                      `json:"total_bytes"`
	AvgProcessingMS float64                    `json:"avg_processing_ms"`
}

// JobStore is the transactional record store the pipeline runs against.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.UploadJob) error
	GetJob(ctx context.Context, id string) (*models.UploadJob, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.UploadJob, error)

	// UpdateJob writes every mutable field of job, guarded by job.Version.
	// On success the stored version is incremented and job.Version is bumped
	// to match. A version mismatch returns ErrStaleVersion and writes nothing.
	UpdateJob(ctx context.Context, job *models.UploadJob) error

	// FindCompletedByHash returns the most recent completed job with the given
	// content hash for one owner, or (nil, nil) when there is none.
	FindCompletedByHash(ctx context.Context, ownerID, hash string) (*models.UploadJob, error)

	ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.UploadJob, error)

	// ListStale returns non-terminal jobs not updated since cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]models.UploadJob, error)

	// PurgeOlderThan deletes jobs in the given status created before cutoff
	// and reports how many rows went away.
	PurgeOlderThan(ctx context.Context, status models.JobStatus, cutoff time.Time) (int64, error)

	Stats(ctx context.Context) (*QueueStats, error)
	Close() error
}
