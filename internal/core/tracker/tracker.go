// Package tracker owns the persisted job lifecycle. It is the single writer
// of status and progress; workers and the cleanup sweeper only ever go
// through its transition operations.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumelens/resumelens/internal/core/extract"
	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

// Stage names the pipeline step reporting a failure.
type Stage string

const (
	StageValidation Stage = "validation"
	StageScan       Stage = "security_scan"
	StageDedup      Stage = "deduplication"
	StageExtraction Stage = "extraction"
	StageTimeout    Stage = "timeout"
)

// Progress milestones. Progress is monotonically non-decreasing while a job
// is non-terminal.
const (
	ProgressValidating = 10
	ProgressValidated  = 40
	ProgressExtracting = 70
	ProgressCompleted  = 100
)

var (
	// ErrTerminal means the job already reached completed or error and no
	// further write is accepted: terminal wins.
	ErrTerminal = errors.New("job is in a terminal state")
	// ErrIllegalTransition means the requested transition would move the
	// status backward or skip a stage.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Timings carries measured stage durations in milliseconds.
type Timings struct {
	ValidationMS int64
	ExtractionMS int64
	TotalMS      int64
}

// Tracker applies transitions atomically through the store's optimistic
// version check. Re-applying the same transition is a no-op, so callers can
// retry safely.
type Tracker struct {
	store store.JobStore
	log   *slog.Logger
}

func New(s store.JobStore, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{store: s, log: log}
}

// transitionRetries bounds how often a transition is retried after losing a
// version race before giving up.
const transitionRetries = 3

// mutation inspects the freshly-read job and either mutates it (true) or
// reports the transition is already applied (false). It returns an error for
// illegal transitions.
type mutation func(job *models.UploadJob) (changed bool, err error)

func (t *Tracker) apply(ctx context.Context, jobID string, op string, fn mutation) error {
	var lastErr error
	for attempt := 0; attempt < transitionRetries; attempt++ {
		job, err := t.store.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		changed, err := fn(job)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !changed {
			return nil
		}
		if err := t.store.UpdateJob(ctx, job); err != nil {
			if errors.Is(err, store.ErrStaleVersion) {
				lastErr = err
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		t.log.Debug("job transition", "op", op, "job_id", jobID, "status", job.Status, "progress", job.Progress)
		return nil
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

// bumpProgress never lets progress move backward.
func bumpProgress(job *models.UploadJob, p int) {
	if p > job.Progress {
		job.Progress = p
	}
}

// BeginValidation moves pending -> validating.
func (t *Tracker) BeginValidation(ctx context.Context, jobID string) error {
	return t.apply(ctx, jobID, "begin validation", func(job *models.UploadJob) (bool, error) {
		switch job.Status {
		case models.StatusPending:
			job.Status = models.StatusValidating
			bumpProgress(job, ProgressValidating)
			return true, nil
		case models.StatusValidating:
			return false, nil // already applied
		case models.StatusCompleted, models.StatusError:
			return false, ErrTerminal
		default:
			return false, ErrIllegalTransition
		}
	})
}

// MarkValidated records that validation and the safety scan passed.
func (t *Tracker) MarkValidated(ctx context.Context, jobID string, validationMS int64) error {
	return t.apply(ctx, jobID, "mark validated", func(job *models.UploadJob) (bool, error) {
		switch job.Status {
		case models.StatusValidating:
			if job.Progress >= ProgressValidated {
				return false, nil
			}
			bumpProgress(job, ProgressValidated)
			job.ValidationTimeMS = &validationMS
			return true, nil
		case models.StatusCompleted, models.StatusError:
			return false, ErrTerminal
		default:
			return false, ErrIllegalTransition
		}
	})
}

// BeginExtraction moves validating -> extracting and records the content
// hash, which exists only once the hashing stage has succeeded.
func (t *Tracker) BeginExtraction(ctx context.Context, jobID, contentHash string) error {
	return t.apply(ctx, jobID, "begin extraction", func(job *models.UploadJob) (bool, error) {
		switch job.Status {
		case models.StatusValidating:
			job.Status = models.StatusExtracting
			bumpProgress(job, ProgressExtracting)
			job.ContentHash = &contentHash
			return true, nil
		case models.StatusExtracting:
			if job.ContentHash != nil && *job.ContentHash == contentHash {
				return false, nil
			}
			return false, ErrIllegalTransition
		case models.StatusCompleted, models.StatusError:
			return false, ErrTerminal
		default:
			return false, ErrIllegalTransition
		}
	})
}

// Complete moves extracting -> completed with the extraction outputs and
// timing metrics. Only successful completion stamps completed_at.
func (t *Tracker) Complete(ctx context.Context, jobID string, res *extract.Result, timings Timings) error {
	if res == nil {
		return errors.New("complete: nil extraction result")
	}
	return t.apply(ctx, jobID, "complete", func(job *models.UploadJob) (bool, error) {
		switch job.Status {
		case models.StatusExtracting:
			now := time.Now().UTC()
			job.Status = models.StatusCompleted
			bumpProgress(job, ProgressCompleted)
			job.ExtractedText = &res.Text
			wc, cc := res.WordCount, res.CharCount
			job.WordCount = &wc
			job.CharacterCount = &cc
			method := res.Method
			job.ExtractionMethod = &method
			job.DetectedSections = res.Sections
			v, x, total := timings.ValidationMS, timings.ExtractionMS, timings.TotalMS
			job.ValidationTimeMS = &v
			job.ExtractionTimeMS = &x
			job.ProcessingTimeMS = &total
			job.CompletedAt = &now
			return true, nil
		case models.StatusCompleted:
			return false, nil
		case models.StatusError:
			return false, ErrTerminal
		default:
			return false, ErrIllegalTransition
		}
	})
}

// Fail moves a job to the error terminal state with a user-safe message.
// Failing from pending is only legal for the stuck-job timeout, which reaps
// jobs no worker ever picked up; every other stage implies validation was at
// least attempted. completed_at stays unset: it means "finished
// successfully", not "stopped".
func (t *Tracker) Fail(ctx context.Context, jobID string, stage Stage, message string) error {
	return t.apply(ctx, jobID, "fail", func(job *models.UploadJob) (bool, error) {
		switch job.Status {
		case models.StatusValidating, models.StatusExtracting:
			// fallthrough to the failure write below
		case models.StatusPending:
			if stage != StageTimeout {
				return false, ErrIllegalTransition
			}
		case models.StatusError:
			return false, nil
		case models.StatusCompleted:
			return false, ErrTerminal
		default:
			return false, ErrIllegalTransition
		}
		job.Status = models.StatusError
		job.ErrorMessage = &message
		t.log.Info("job failed", "job_id", jobID, "stage", stage, "message", message)
		return true, nil
	})
}
