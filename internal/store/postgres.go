package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/resumelens/resumelens/internal/models"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS upload_jobs (
	id                 TEXT PRIMARY KEY,
	owner_id           TEXT NOT NULL,
	filename           TEXT NOT NULL,
	original_filename  TEXT NOT NULL,
	mime_type          TEXT NOT NULL,
	file_size          BIGINT NOT NULL,
	content_hash       TEXT,
	status             TEXT NOT NULL,
	progress           INT NOT NULL DEFAULT 0,
	error_message      TEXT,
	target_role        TEXT,
	target_industry    TEXT,
	experience_level   TEXT,
	extracted_text     TEXT,
	word_count         INT,
	character_count    INT,
	extraction_method  TEXT,
	detected_sections  TEXT,
	processing_time_ms BIGINT,
	validation_time_ms BIGINT,
	extraction_time_ms BIGINT,
	version            BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	completed_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_owner ON upload_jobs (owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_hash ON upload_jobs (owner_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_status ON upload_jobs (status, updated_at);
`

const jobColumns = `id, owner_id, filename, original_filename, mime_type, file_size,
	content_hash, status, progress, error_message,
	target_role, target_industry, experience_level,
	extracted_text, word_count, character_count, extraction_method, detected_sections,
	processing_time_ms, validation_time_ms, extraction_time_ms,
	version, created_at, updated_at, completed_at`

// PostgresStore is the production JobStore backend, reached through the pgx
// stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

var _ JobStore = (*PostgresStore)(nil)

// NewPostgresStore opens a pool against databaseURL, pings it, and ensures the
// schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.ExecContext(pingCtx, pgSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.UploadJob) error {
	if job == nil {
		return errors.New("nil job")
	}
	sections, err := encodeSections(job.DetectedSections)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO upload_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`
	_, err = s.db.ExecContext(ctx, q,
		job.ID, job.OwnerID, job.Filename, job.OriginalFilename, job.MimeType, job.FileSize,
		job.ContentHash, string(job.Status), job.Progress, job.ErrorMessage,
		job.TargetRole, job.TargetIndustry, job.ExperienceLevel,
		job.ExtractedText, job.WordCount, job.CharacterCount, job.ExtractionMethod, sections,
		job.ProcessingTimeMS, job.ValidationTimeMS, job.ExtractionTimeMS,
		job.Version, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	return err
}

func (s *PostgresStore) scanJob(row interface{ Scan(...any) error }) (*models.UploadJob, error) {
	var j models.UploadJob
	var status string
	var sections *string
	err := row.Scan(
		&j.ID, &j.OwnerID, &j.Filename, &j.OriginalFilename, &j.MimeType, &j.FileSize,
		&j.ContentHash, &status, &j.Progress, &j.ErrorMessage,
		&j.TargetRole, &j.TargetIndustry, &j.ExperienceLevel,
		&j.ExtractedText, &j.WordCount, &j.CharacterCount, &j.ExtractionMethod, &sections,
		&j.ProcessingTimeMS, &j.ValidationTimeMS, &j.ExtractionTimeMS,
		&j.Version, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	if j.DetectedSections, err = decodeSections(sections); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.UploadJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM upload_jobs WHERE id = $1`
	job, err := s.scanJob(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]models.UploadJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM upload_jobs WHERE owner_id = $1 ORDER BY created_at DESC`
	return s.queryJobs(ctx, q, ownerID)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.UploadJob) error {
	if job == nil {
		return errors.New("nil job")
	}
	sections, err := encodeSections(job.DetectedSections)
	if err != nil {
		return err
	}
	const q = `
		UPDATE upload_jobs SET
			content_hash = $2, status = $3, progress = $4, error_message = $5,
			extracted_text = $6, word_count = $7, character_count = $8,
			extraction_method = $9, detected_sections = $10,
			processing_time_ms = $11, validation_time_ms = $12, extraction_time_ms = $13,
			updated_at = $14, completed_at = $15,
			version = version + 1
		WHERE id = $1 AND version = $16
	`
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, q,
		job.ID,
		job.ContentHash, string(job.Status), job.Progress, job.ErrorMessage,
		job.ExtractedText, job.WordCount, job.CharacterCount,
		job.ExtractionMethod, sections,
		job.ProcessingTimeMS, job.ValidationTimeMS, job.ExtractionTimeMS,
		now, job.CompletedAt,
		job.Version,
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

func (s *PostgresStore) FindCompletedByHash(ctx context.Context, ownerID, hash string) (*models.UploadJob, error) {
	const q = `
		SELECT ` + jobColumns + ` FROM upload_jobs
		WHERE owner_id = $1 AND content_hash = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	job, err := s.scanJob(s.db.QueryRowContext(ctx, q, ownerID, hash, string(models.StatusCompleted)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.UploadJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM upload_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	return s.queryJobs(ctx, q, string(status), limit)
}

func (s *PostgresStore) ListStale(ctx context.Context, cutoff time.Time) ([]models.UploadJob, error) {
	const q = `
		SELECT ` + jobColumns + ` FROM upload_jobs
		WHERE status IN ($1, $2, $3) AND updated_at < $4
		ORDER BY updated_at ASC
	`
	return s.queryJobs(ctx, q,
		string(models.StatusPending), string(models.StatusValidating), string(models.StatusExtracting), cutoff)
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, status models.JobStatus, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM upload_jobs WHERE status = $1 AND created_at < $2`
	res, err := s.db.ExecContext(ctx, q, string(status), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) Stats(ctx context.Context) (*QueueStats, error) {
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
		       COALESCE(AVG(processing_time_ms) FILTER (WHERE status = $1), 0)
		FROM upload_jobs
	`
	if err := s.db.QueryRowContext(ctx, q, string(models.StatusCompleted)).
		Scan(&out.TotalBytes, &out.AvgProcessingMS); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) queryJobs(ctx context.Context, q string, args ...any) ([]models.UploadJob, error) {
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
