package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/resumelens/resumelens/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS upload_jobs (
	id                 TEXT PRIMARY KEY,
	owner_id           TEXT NOT NULL,
	filename           TEXT NOT NULL,
	original_filename  TEXT NOT NULL,
	mime_type          TEXT NOT NULL,
	file_size          INTEGER NOT NULL,
	content_hash       TEXT,
	status             TEXT NOT NULL,
	progress           INTEGER NOT NULL DEFAULT 0,
	error_message      TEXT,
	target_role        TEXT,
	target_industry    TEXT,
	experience_level   TEXT,
	extracted_text     TEXT,
	word_count         INTEGER,
	character_count    INTEGER,
	extraction_method  TEXT,
	detected_sections  TEXT,
	processing_time_ms INTEGER,
	validation_time_ms INTEGER,
	extraction_time_ms INTEGER,
	version            INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL,
	completed_at       INTEGER
);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_owner ON upload_jobs (owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_hash ON upload_jobs (owner_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_status ON upload_jobs (status, updated_at);
`

// SQLiteStore is an embedded JobStore backend for local runs and tests.
// Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ JobStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The modernc driver serializes access through a single connection; more
	// would trip SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func unixMS(t time.Time) int64 { return t.UTC().UnixMilli() }

func unixMSPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := unixMS(*t)
	return &ms
}

func fromUnixMS(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (s *SQLiteStore) CreateJob(ctx context.Context, job *models.UploadJob) error {
	if job == nil {
		return errors.New("nil job")
	}
	sections, err := encodeSections(job.DetectedSections)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO upload_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, q,
		job.ID, job.OwnerID, job.Filename, job.OriginalFilename, job.MimeType, job.FileSize,
		job.ContentHash, string(job.Status), job.Progress, job.ErrorMessage,
		job.TargetRole, job.TargetIndustry, job.ExperienceLevel,
		job.ExtractedText, job.WordCount, job.CharacterCount, job.ExtractionMethod, sections,
		job.ProcessingTimeMS, job.ValidationTimeMS, job.ExtractionTimeMS,
		job.Version, unixMS(job.CreatedAt), unixMS(job.UpdatedAt), unixMSPtr(job.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) scanJob(row interface{ Scan(...any) error }) (*models.UploadJob, error) {
	var j models.UploadJob
	var status string
	var sections *string
	var createdMS, updatedMS int64
	var completedMS *int64
	err := row.Scan(
		&j.ID, &j.OwnerID, &j.Filename, &j.OriginalFilename, &j.MimeType, &j.FileSize,
		&j.ContentHash, &status, &j.Progress, &j.ErrorMessage,
		&j.TargetRole, &j.TargetIndustry, &j.ExperienceLevel,
		&j.ExtractedText, &j.WordCount, &j.CharacterCount, &j.ExtractionMethod, &sections,
		&j.ProcessingTimeMS, &j.ValidationTimeMS, &j.ExtractionTimeMS,
		&j.Version, &createdMS, &updatedMS, &completedMS,
	)
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	j.CreatedAt = fromUnixMS(createdMS)
	j.UpdatedAt = fromUnixMS(updatedMS)
	if completedMS != nil {
		t := fromUnixMS(*completedMS)
		j.CompletedAt = &t
	}
	if j.DetectedSections, err = decodeSections(sections); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*models.UploadJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM upload_jobs WHERE id = ?`
	job, err := s.scanJob(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]models.UploadJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM upload_jobs WHERE owner_id = ? ORDER BY created_at DESC`
	return s.queryJobs(ctx, q, ownerID)
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *models.UploadJob) error {
	if job == nil {
		return errors.New("nil job")
	}
	sections, err := encodeSections(job.DetectedSections)
	if err != nil {
		return err
	}
	const q = `
		UPDATE upload_jobs SET
			content_hash = ?, status = ?, progress = ?, error_message = ?,
			extracted_text = ?, word_count = ?, character_count = ?,
			extraction_method = ?, detected_sections = ?,
			processing_time_ms = ?, validation_time_ms = ?, extraction_time_ms = ?,
			updated_at = ?, completed_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, q,
		job.ContentHash, string(job.Status), job.Progress, job.ErrorMessage,
		job.ExtractedText, job.WordCount, job.CharacterCount,
		job.ExtractionMethod, sections,
		job.ProcessingTimeMS, job.ValidationTimeMS, job.ExtractionTimeMS,
		unixMS(now), unixMSPtr(job.CompletedAt),
		job.ID, job.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetJob(ctx, job.ID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleVersion
	}
	job.Version++
	job.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) FindCompletedByHash(ctx context.Context, ownerID, hash string) (*models.UploadJob, error) {
	const q = `
		SELECT ` + jobColumns + ` FROM upload_jobs
		WHERE owner_id = ? AND content_hash = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	job, err := s.scanJob(s.db.QueryRowContext(ctx, q, ownerID, hash, string(models.StatusCompleted)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.UploadJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM upload_jobs WHERE status = ? ORDER BY created_at ASC LIMIT ?`
	return s.queryJobs(ctx, q, string(status), limit)
}

func (s *SQLiteStore) ListStale(ctx context.Context, cutoff time.Time) ([]models.UploadJob, error) {
	const q = `
		SELECT ` + jobColumns + ` FROM upload_jobs
		WHERE status IN (?, ?, ?) AND updated_at < ?
		ORDER BY updated_at ASC
	`
	return s.queryJobs(ctx, q,
		string(models.StatusPending), string(models.StatusValidating), string(models.StatusExtracting), unixMS(cutoff))
}

func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, status models.JobStatus, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM upload_jobs WHERE status = ? AND created_at < ?`
	res, err := s.db.ExecContext(ctx, q, string(status), unixMS(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Stats(ctx context.Context) (*QueueStats, error) {
	out := &QueueStats{CountsByStatus: map[models.JobStatus]int64{}}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM upload_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out.CountsByStatus[models.JobStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const q = `
		SELECT COALESCE(SUM(file_size), 0),
		       COALESCE((SELECT AVG(processing_time_ms) FROM upload_jobs WHERE status = ?), 0)
		FROM upload_jobs
	`
	if err := s.db.QueryRowContext(ctx, q, string(models.StatusCompleted)).
		Scan(&out.TotalBytes, &out.AvgProcessingMS); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) queryJobs(ctx context.Context, q string, args ...any) ([]models.UploadJob, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UploadJob
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}
