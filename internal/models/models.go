package models

import (
	"time"
)

// JobStatus is the lifecycle state of an upload job. Statuses only ever move
// forward: pending -> validating -> extracting -> completed | error.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusValidating JobStatus = "validating"
	StatusExtracting JobStatus = "extracting"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Section is one detected resume section, a best-effort structural overlay on
// the extracted text. Offsets are byte offsets into the normalized text.
type Section struct {
	Name       string  `json:"name"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// UploadJob tracks one uploaded resume through the ingestion pipeline.
// Mutable fields are written only through the tracker; Version backs the
// optimistic check that serializes those writes.
type UploadJob struct {
	ID               string    `db:"id" json:"id"`
	OwnerID          string    `db:"owner_id" json:"owner_id"`
	Filename         string    `db:"filename" json:"filename"` // object storage key
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	MimeType         string    `db:"mime_type" json:"mime_type"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	ContentHash      *string   `db:"content_hash" json:"content_hash,omitempty"` // sha256 hex, set after hashing
	Status           JobStatus `db:"status" json:"status"`
	Progress         int       `db:"progress" json:"progress"`
	ErrorMessage     *string   `db:"error_message" json:"error_message,omitempty"`

	// Caller-supplied classification tags, passed through untouched.
	TargetRole      *string `db:"target_role" json:"target_role,omitempty"`
	TargetIndustry  *string `db:"target_industry" json:"target_industry,omitempty"`
	ExperienceLevel *string `db:"experience_level" json:"experience_level,omitempty"`

	// Extraction outputs, present only once the job completes.
	ExtractedText    *string   `db:"extracted_text" json:"extracted_text,omitempty"`
	WordCount        *int      `db:"word_count" json:"word_count,omitempty"`
	CharacterCount   *int      `db:"character_count" json:"character_count,omitempty"`
	ExtractionMethod *string   `db:"extraction_method" json:"extraction_method,omitempty"`
	DetectedSections []Section `db:"detected_sections" json:"detected_sections,omitempty"`

	// Timing metrics in milliseconds.
	ProcessingTimeMS *int64 `db:"processing_time_ms" json:"processing_time_ms,omitempty"`
	ValidationTimeMS *int64 `db:"validation_time_ms" json:"validation_time_ms,omitempty"`
	ExtractionTimeMS *int64 `db:"extraction_time_ms" json:"extraction_time_ms,omitempty"`

	Version     int64      `db:"version" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
