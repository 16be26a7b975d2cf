package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/resumelens/resumelens/internal/core/extract"
	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

// memStore is a minimal in-memory JobStore with the real optimistic version
// check. staleNext forces the next update to lose the version race.
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*models.UploadJob
	staleNext int
	updates   int
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string]*models.UploadJob{}}
}

func (m *memStore) CreateJob(_ context.Context, job *models.UploadJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) GetJob(_ context.Context, id string) (*models.UploadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) UpdateJob(_ context.Context, job *models.UploadJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.staleNext > 0 {
		m.staleNext--
		return store.ErrStaleVersion
	}
	current, ok := m.jobs[job.ID]
	if !ok {
		return store.ErrNotFound
	}
	if current.Version != job.Version {
		return store.ErrStaleVersion
	}
	cp := *job
	cp.Version++
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[job.ID] = &cp
	job.Version = cp.Version
	job.UpdatedAt = cp.UpdatedAt
	return nil
}

func (m *memStore) ListByOwner(context.Context, string) ([]models.UploadJob, error) {
	return nil, nil
}

func (m *memStore) FindCompletedByHash(context.Context, string, string) (*models.UploadJob, error) {
	return nil, nil
}

func (m *memStore) ListByStatus(context.Context, models.JobStatus, int) ([]models.UploadJob, error) {
	return nil, nil
}

func (m *memStore) ListStale(context.Context, time.Time) ([]models.UploadJob, error) {
	return nil, nil
}

func (m *memStore) PurgeOlderThan(context.Context, models.JobStatus, time.Time) (int64, error) {
	return 0, nil
}

func (m *memStore) Stats(context.Context) (*store.QueueStats, error) { return nil, nil }
func (m *memStore) Close() error                                     { return nil }

func seedJob(t *testing.T, m *memStore, status models.JobStatus) string {
	t.Helper()
	job := &models.UploadJob{
		ID:        "job-1",
		OwnerID:   "alice",
		Filename:  "resumes/alice/job-1/resume.pdf",
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := m.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job.ID
}

func sampleResult() *extract.Result {
	return &extract.Result{
		Text:      "Summary\nBuilds systems.",
		WordCount: 3,
		CharCount: 23,
		Method:    "pdf",
		Sections:  []models.Section{{Name: "summary", Start: 0, End: 23, Confidence: 0.9}},
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	m := newMemStore()
	tr := New(m, nil)
	ctx := context.Background()
	id := seedJob(t, m, models.StatusPending)

	if err := tr.BeginValidation(ctx, id); err != nil {
		t.Fatalf("BeginValidation: %v", err)
	}
	job, _ := m.GetJob(ctx, id)
	if job.Status != models.StatusValidating || job.Progress != ProgressValidating {
		t.Fatalf("after BeginValidation: status=%s progress=%d", job.Status, job.Progress)
	}

	if err := tr.MarkValidated(ctx, id, 12); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}
	job, _ = m.GetJob(ctx, id)
	if job.Progress != ProgressValidated || job.ValidationTimeMS == nil || *job.ValidationTimeMS != 12 {
		t.Fatalf("after MarkValidated: progress=%d validation_ms=%v", job.Progress, job.ValidationTimeMS)
	}

	if err := tr.BeginExtraction(ctx, id, "abc123"); err != nil {
		t.Fatalf("BeginExtraction: %v", err)
	}
	job, _ = m.GetJob(ctx, id)
	if job.Status != models.StatusExtracting || job.Progress != ProgressExtracting {
		t.Fatalf("after BeginExtraction: status=%s progress=%d", job.Status, job.Progress)
	}
	if job.ContentHash == nil || *job.ContentHash != "abc123" {
		t.Fatalf("content hash not recorded: %v", job.ContentHash)
	}

	timings := Timings{ValidationMS: 12, ExtractionMS: 30, TotalMS: 50}
	if err := tr.Complete(ctx, id, sampleResult(), timings); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	job, _ = m.GetJob(ctx, id)
	if job.Status != models.StatusCompleted || job.Progress != ProgressCompleted {
		t.Fatalf("after Complete: status=%s progress=%d", job.Status, job.Progress)
	}
	if job.ExtractedText == nil || *job.ExtractedText == "" {
		t.Fatal("extracted text not stored")
	}
	if job.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
	if job.ProcessingTimeMS == nil || *job.ProcessingTimeMS != 50 {
		t.Fatalf("processing_time_ms = %v, want 50", job.ProcessingTimeMS)
	}
	if len(job.DetectedSections) != 1 {
		t.Fatalf("sections not stored: %+v", job.DetectedSections)
	}
}

// Progress never moves backward while a job is alive.
func TestProgressMonotonic(t *testing.T) {
	m := newMemStore()
	tr := New(m, nil)
	ctx := context.Background()
	id := seedJob(t, m, models.StatusPending)

	last := 0
	steps := []func() error{
		func() error { return tr.BeginValidation(ctx, id) },
		func() error { return tr.MarkValidated(ctx, id, 1) },
		func() error { return tr.BeginExtraction(ctx, id, "h") },
		func() error { return tr.Complete(ctx, id, sampleResult(), Timings{}) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		job, _ := m.GetJob(ctx, id)
		if job.Progress < last {
			t.Fatalf("step %d moved progress backward: %d -> %d", i, last, job.Progress)
		}
		last = job.Progress
	}
}

// Re-applying a transition already in effect is a clean no-op, so retries
// after an ambiguous failure are safe.
func TestTransitionsIdempotent(t *testing.T) {
	m := newMemStore()
	tr := New(m, nil)
	ctx := context.Background()
	id := seedJob(t, m, models.StatusPending)

	if err := tr.BeginValidation(ctx, id); err != nil {
		t.Fatalf("BeginValidation: %v", err)
	}
	if err := tr.BeginValidation(ctx, id); err != nil {
		t.Fatalf("repeated BeginValidation: %v", err)
	}

	if err := tr.BeginExtraction(ctx, id, "h1"); err != nil {
		t.Fatalf("BeginExtraction: %v", err)
	}
	if err := tr.BeginExtraction(ctx, id, "h1"); err != nil {
		t.Fatalf("repeated BeginExtraction with same hash: %v", err)
	}
	// A different hash for the same job is not a retry; it is a bug.
	if err := tr.BeginExtraction(ctx, id, "h2"); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("conflicting hash: got %v, want ErrIllegalTransition", err)
	}

	if err := tr.Complete(ctx, id, sampleResult(), Timings{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	before, _ := m.GetJob(ctx, id)
	if err := tr.Complete(ctx, id, sampleResult(), Timings{}); err != nil {
		t.Fatalf("repeated Complete: %v", err)
	}
	after, _ := m.GetJob(ctx, id)
	if after.Version != before.Version {
		t.Fatal("repeated Complete wrote the row again")
	}
}

func TestTerminalWins(t *testing.T) {
	m := newMemStore()
	tr := New(m, nil)
	ctx := context.Background()

	// A completed job rejects every further transition.
	id := seedJob(t, m, models.StatusPending)
	mustAdvanceToCompleted(t, tr, id)
	if err := tr.Fail(ctx, id, StageExtraction, "late failure"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("Fail on completed: got %v, want ErrTerminal", err)
	}
	if err := tr.BeginValidation(ctx, id); !errors.Is(err, ErrTerminal) {
		t.Fatalf("BeginValidation on completed: got %v, want ErrTerminal", err)
	}
	job, _ := m.GetJob(ctx, id)
	if job.Status != models.StatusCompleted || job.ErrorMessage != nil {
		t.Fatalf("completed job mutated: %+v", job)
	}

	// An errored job swallows repeated Fail but rejects Complete.
	m2 := newMemStore()
	tr2 := New(m2, nil)
	id2 := seedJob(t, m2, models.StatusValidating)
	if err := tr2.Fail(ctx, id2, StageValidation, "bad file"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := tr2.Fail(ctx, id2, StageValidation, "bad file again"); err != nil {
		t.Fatalf("repeated Fail: %v", err)
	}
	if err := tr2.Complete(ctx, id2, sampleResult(), Timings{}); !errors.Is(err, ErrTerminal) {
		t.Fatalf("Complete on errored: got %v, want ErrTerminal", err)
	}
	job2, _ := m2.GetJob(ctx, id2)
	if job2.ErrorMessage == nil || *job2.ErrorMessage != "bad file" {
		t.Fatalf("first failure message overwritten: %v", job2.ErrorMessage)
	}
	if job2.CompletedAt != nil {
		t.Fatal("failed job must not carry completed_at")
	}
}

// Only the stuck-job timeout may fail a job no worker ever picked up.
func TestFailFromPending(t *testing.T) {
	m := newMemStore()
	tr := New(m, nil)
	ctx := context.Background()

	id := seedJob(t, m, models.StatusPending)
	if err := tr.Fail(ctx, id, StageValidation, "nope"); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("Fail(validation) from pending: got %v, want ErrIllegalTransition", err)
	}

	if err := tr.Fail(ctx, id, StageTimeout, "processing timed out"); err != nil {
		t.Fatalf("Fail(timeout) from pending: %v", err)
	}
	job, _ := m.GetJob(ctx, id)
	if job.Status != models.StatusError {
		t.Fatalf("status = %s, want error", job.Status)
	}
}

// Losing the version race once must not fail the transition: the tracker
// re-reads and retries.
func TestRetriesAfterStaleVersion(t *testing.T) {
	m := newMemStore()
	tr := New(m, nil)
	ctx := context.Background()
	id := seedJob(t, m, models.StatusPending)

	m.staleNext = 1
	if err := tr.BeginValidation(ctx, id); err != nil {
		t.Fatalf("BeginValidation with one stale race: %v", err)
	}
	job, _ := m.GetJob(ctx, id)
	if job.Status != models.StatusValidating {
		t.Fatalf("status = %s, want validating", job.Status)
	}
	if m.updates != 2 {
		t.Fatalf("updates = %d, want 2 (one lost race, one success)", m.updates)
	}

	// Losing every retry surfaces the stale error.
	m.staleNext = transitionRetries + 1
	err := tr.MarkValidated(ctx, id, 5)
	if !errors.Is(err, store.ErrStaleVersion) {
		t.Fatalf("exhausted retries: got %v, want ErrStaleVersion", err)
	}
}

func mustAdvanceToCompleted(t *testing.T, tr *Tracker, id string) {
	t.Helper()
	ctx := context.Background()
	if err := tr.BeginValidation(ctx, id); err != nil {
		t.Fatalf("BeginValidation: %v", err)
	}
	if err := tr.BeginExtraction(ctx, id, "hash"); err != nil {
		t.Fatalf("BeginExtraction: %v", err)
	}
	if err := tr.Complete(ctx, id, sampleResult(), Timings{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}
