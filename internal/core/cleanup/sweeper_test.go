package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/resumelens/resumelens/internal/core/ingest"
	"github.com/resumelens/resumelens/internal/core/tracker"
	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string]*models.UploadJob
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

func (m *memStore) ListStale(_ context.Context, cutoff time.Time) ([]models.UploadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UploadJob
	for _, job := range m.jobs {
		if !job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *memStore) PurgeOlderThan(_ context.Context, status models.JobStatus, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, job := range m.jobs {
		if job.Status == status && job.CreatedAt.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Stats(context.Context) (*store.QueueStats, error) { return nil, nil }
func (m *memStore) Close() error                                     { return nil }

func (m *memStore) seed(t *testing.T, id string, status models.JobStatus, age time.Duration) {
	t.Helper()
	ts := time.Now().UTC().Add(-age)
	err := m.CreateJob(context.Background(), &models.UploadJob{
		ID:        id,
		OwnerID:   "alice",
		Status:    status,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestSweepOnceReapsStuckJobs(t *testing.T) {
	m := newMemStore()
	m.seed(t, "stuck-pending", models.StatusPending, 48*time.Hour)
	m.seed(t, "stuck-extracting", models.StatusExtracting, 48*time.Hour)
	m.seed(t, "fresh-pending", models.StatusPending, time.Minute)
	m.seed(t, "old-completed", models.StatusCompleted, 48*time.Hour)

	s := New(m, tracker.New(m, nil), Config{StalenessWindow: 24 * time.Hour}, nil)
	stats, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if stats.Reaped != 2 {
		t.Fatalf("reaped %d, want 2", stats.Reaped)
	}

	for _, id := range []string{"stuck-pending", "stuck-extracting"} {
		job, _ := m.GetJob(context.Background(), id)
		if job.Status != models.StatusError {
			t.Errorf("%s status = %s, want error", id, job.Status)
		}
		if job.ErrorMessage == nil || *job.ErrorMessage != ingest.MsgTimedOut {
			t.Errorf("%s error message = %v, want %q", id, job.ErrorMessage, ingest.MsgTimedOut)
		}
	}

	job, _ := m.GetJob(context.Background(), "fresh-pending")
	if job.Status != models.StatusPending {
		t.Errorf("fresh job reaped: %s", job.Status)
	}
	job, _ = m.GetJob(context.Background(), "old-completed")
	if job.Status != models.StatusCompleted {
		t.Errorf("completed job touched by reaper: %s", job.Status)
	}
}

func TestSweepOncePurgesByRetention(t *testing.T) {
	m := newMemStore()
	m.seed(t, "old-completed", models.StatusCompleted, 40*24*time.Hour)
	m.seed(t, "recent-completed", models.StatusCompleted, 24*time.Hour)
	m.seed(t, "old-errored", models.StatusError, 10*24*time.Hour)
	m.seed(t, "recent-errored", models.StatusError, 24*time.Hour)

	s := New(m, tracker.New(m, nil), Config{
		CompletedRetention: 30 * 24 * time.Hour,
		ErrorRetention:     7 * 24 * time.Hour,
	}, nil)
	stats, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if stats.PurgedComplete != 1 || stats.PurgedErrored != 1 {
		t.Fatalf("purged = (%d, %d), want (1, 1)", stats.PurgedComplete, stats.PurgedErrored)
	}

	for _, id := range []string{"recent-completed", "recent-errored"} {
		if _, err := m.GetJob(context.Background(), id); err != nil {
			t.Errorf("%s purged too early: %v", id, err)
		}
	}
	for _, id := range []string{"old-completed", "old-errored"} {
		if _, err := m.GetJob(context.Background(), id); err == nil {
			t.Errorf("%s survived past retention", id)
		}
	}
}

func TestSweepOnceEmptyStore(t *testing.T) {
	m := newMemStore()
	s := New(m, tracker.New(m, nil), Config{}, nil)
	stats, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if stats.Reaped != 0 || stats.PurgedComplete != 0 || stats.PurgedErrored != 0 {
		t.Fatalf("empty store produced work: %+v", stats)
	}
}
