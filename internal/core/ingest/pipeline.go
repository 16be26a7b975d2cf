// Package ingest drives upload jobs through the processing stages: validate,
// scan, hash, extract. A bounded worker pool processes jobs in parallel;
// within one job the stages run strictly in order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/resumelens/resumelens/internal/core/dedup"
	"github.com/resumelens/resumelens/internal/core/extract"
	"github.com/resumelens/resumelens/internal/core/objectstore"
	"github.com/resumelens/resumelens/internal/core/scan"
	"github.com/resumelens/resumelens/internal/core/tracker"
	"github.com/resumelens/resumelens/internal/core/validate"
	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

// Stable user-facing failure messages. The scan message is deliberately
// generic so scanner internals never leak to the uploader.
const (
	MsgScanRejected = "file rejected by security scan"
	MsgDuplicate    = "this file has already been uploaded"
	MsgTimedOut     = "processing timed out"
	msgUnreadable   = "stored file could not be read"
)

// TextExtractor is the extraction capability the pipeline depends on.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, declaredMIME string) (*extract.Result, error)
}

// Pipeline runs one job through every stage, reporting each outcome to the
// tracker. A job failure is terminal for that job only; the error returns to
// the pool purely for logging.
type Pipeline struct {
	store     store.JobStore
	objects   objectstore.Client
	tracker   *tracker.Tracker
	validator *validate.Validator
	scanner   scan.Scanner
	deduper   *dedup.Deduper
	extractor TextExtractor
	log       *slog.Logger
}

func NewPipeline(
	s store.JobStore,
	objects objectstore.Client,
	tr *tracker.Tracker,
	v *validate.Validator,
	sc scan.Scanner,
	d *dedup.Deduper,
	ex TextExtractor,
	log *slog.Logger,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store: s, objects: objects, tracker: tr,
		validator: v, scanner: sc, deduper: d, extractor: ex,
		log: log,
	}
}

// Process advances one job from pending to a terminal state.
func (p *Pipeline) Process(ctx context.Context, jobID string) error {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.Terminal() {
		return nil
	}

	start := time.Now()
	if err := p.tracker.BeginValidation(ctx, jobID); err != nil {
		return ignoreTerminal(err)
	}

	data, err := p.objects.Get(ctx, job.Filename)
	if err != nil {
		p.fail(jobID, tracker.StageValidation, msgUnreadable)
		return fmt.Errorf("fetch object %s: %w", job.Filename, err)
	}

	// Stage 1: validation.
	vres := p.validator.Validate(data, job.OriginalFilename, job.MimeType)
	if !vres.OK {
		p.fail(jobID, tracker.StageValidation, "file validation failed: "+strings.Join(vres.Errors, "; "))
		return nil
	}

	// Stage 2: safety scan. A scan error counts as a rejection; ambiguity is
	// not given the benefit of the doubt. The stored file is not retained.
	sres, err := p.scanner.Scan(ctx, data)
	if err != nil && errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil || !sres.Safe {
		if err != nil {
			p.log.Error("scan failed, treating as rejection", "job_id", jobID, "error", err)
		}
		p.discardObject(job.Filename)
		p.fail(jobID, tracker.StageScan, MsgScanRejected)
		return nil
	}

	validationMS := time.Since(start).Milliseconds()
	if err := p.tracker.MarkValidated(ctx, jobID, validationMS); err != nil {
		return ignoreTerminal(err)
	}

	// Stage 3: hash and duplicate policy.
	hash := dedup.HashBytes(data)
	if done, err := p.applyDedup(ctx, job, hash, validationMS, start); done || err != nil {
		return err
	}

	if err := p.tracker.BeginExtraction(ctx, jobID, hash); err != nil {
		return ignoreTerminal(err)
	}

	// Stage 4: extraction.
	extractStart := time.Now()
	res, err := p.extractor.Extract(ctx, data, job.MimeType)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err // shutdown, leave the job for recovery or the sweeper
		}
		var xerr *extract.Error
		if errors.As(err, &xerr) {
			p.fail(jobID, tracker.StageExtraction, xerr.Message())
		} else {
			p.fail(jobID, tracker.StageExtraction, "could not extract text from this file")
		}
		return nil
	}

	timings := tracker.Timings{
		ValidationMS: validationMS,
		ExtractionMS: time.Since(extractStart).Milliseconds(),
		TotalMS:      time.Since(start).Milliseconds(),
	}
	if err := p.tracker.Complete(ctx, jobID, res, timings); err != nil {
		return ignoreTerminal(err)
	}

	p.log.Info("job completed",
		"job_id", jobID,
		"method", res.Method,
		"words", res.WordCount,
		"sections", len(res.Sections),
		"total_ms", timings.TotalMS,
	)
	return nil
}

// applyDedup resolves the duplicate policy for a hashed payload. It returns
// done=true when the job reached a terminal state here and no extraction
// should run.
func (p *Pipeline) applyDedup(ctx context.Context, job *models.UploadJob, hash string, validationMS int64, start time.Time) (bool, error) {
	existing, err := p.deduper.FindExisting(ctx, job.OwnerID, hash)
	if err != nil {
		// The lookup is an optimization; full processing is always correct.
		p.log.Error("dedup lookup failed, processing in full", "job_id", job.ID, "error", err)
		return false, nil
	}
	if existing == nil {
		return false, nil
	}

	switch p.deduper.Policy() {
	case dedup.PolicyReject:
		p.fail(job.ID, tracker.StageDedup, MsgDuplicate)
		return true, nil
	case dedup.PolicyReuse:
		if existing.ExtractedText == nil || existing.WordCount == nil ||
			existing.CharacterCount == nil || existing.ExtractionMethod == nil {
			return false, nil // incomplete prior record; reprocess
		}
		if err := p.tracker.BeginExtraction(ctx, job.ID, hash); err != nil {
			return true, ignoreTerminal(err)
		}
		reused := &extract.Result{
			Text:      *existing.ExtractedText,
			WordCount: *existing.WordCount,
			CharCount: *existing.CharacterCount,
			Method:    *existing.ExtractionMethod,
			Sections:  existing.DetectedSections,
		}
		timings := tracker.Timings{
			ValidationMS: validationMS,
			ExtractionMS: 0,
			TotalMS:      time.Since(start).Milliseconds(),
		}
		if err := p.tracker.Complete(ctx, job.ID, reused, timings); err != nil {
			return true, ignoreTerminal(err)
		}
		p.log.Info("job completed from duplicate", "job_id", job.ID, "prior_job_id", existing.ID)
		return true, nil
	default:
		return false, nil
	}
}

// FailTimedOut force-fails a job that exhausted its overall processing
// budget, through the same mechanism the cleanup sweeper uses. Jobs that
// reached a terminal state in the meantime stay as they are.
func (p *Pipeline) FailTimedOut(ctx context.Context, jobID string) {
	err := p.tracker.Fail(ctx, jobID, tracker.StageTimeout, MsgTimedOut)
	if err != nil && !errors.Is(err, tracker.ErrTerminal) {
		p.log.Error("force-fail after timeout", "job_id", jobID, "error", err)
	}
}

// ignoreTerminal swallows terminal-wins races: if another writer already
// closed the job, that outcome stands and processing stops cleanly.
func ignoreTerminal(err error) error {
	if errors.Is(err, tracker.ErrTerminal) {
		return nil
	}
	return err
}

// fail reports a stage failure with a background context so a job always
// lands in a terminal state even when the processing context is gone.
func (p *Pipeline) fail(jobID string, stage tracker.Stage, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.tracker.Fail(ctx, jobID, stage, message); err != nil && !errors.Is(err, tracker.ErrTerminal) {
		p.log.Error("mark job failed", "job_id", jobID, "stage", stage, "error", err)
	}
}

func (p *Pipeline) discardObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.objects.Delete(ctx, key); err != nil {
		p.log.Error("discard object", "key", key, "error", err)
	}
}
