package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/resumelens/resumelens/internal/models"
)

// ErrShuttingDown is returned by Enqueue once shutdown has begun.
var ErrShuttingDown = errors.New("ingest pool is shutting down")

// Pool is the scheduler: a bounded set of workers pulling job ids off a
// buffered channel. At most one worker processes a given job id at a time;
// jobs across ids run fully in parallel.
type Pool struct {
	pipe       *Pipeline
	log        *slog.Logger
	workers    int
	jobTimeout time.Duration

	ch   chan string
	wg   sync.WaitGroup
	once sync.Once

	// sendMu excludes Enqueue sends while Shutdown closes the channel; a
	// producer parked on a full queue holds the read lock until its send
	// lands, so close(p.ch) can never race a send.
	sendMu sync.RWMutex
	closed bool

	mu       sync.Mutex
	inflight map[string]struct{}
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan string, n)
		}
	}
}

// WithJobTimeout bounds one job's total processing time; past it the job is
// force-failed the same way the cleanup sweeper fails stuck jobs.
func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.jobTimeout = d
		}
	}
}

func NewPool(pipe *Pipeline, log *slog.Logger, opts ...Option) *Pool {
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{
		pipe:       pipe,
		log:        log,
		workers:    4,
		jobTimeout: 3 * time.Minute,
		ch:         make(chan string, 256),
		inflight:   map[string]struct{}{},
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.log.Info("worker started", "worker_id", workerID)
				for jobID := range p.ch {
					p.runOne(workerID, jobID)
				}
				p.log.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (p *Pool) runOne(workerID int, jobID string) {
	if !p.claim(jobID) {
		// Another worker holds this id; the job record is already being
		// advanced, so dropping the duplicate dispatch is safe.
		p.log.Warn("job already in flight, skipping duplicate dispatch", "job_id", jobID)
		return
	}
	defer p.release(jobID)

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker panic recovered", "worker_id", workerID, "job_id", jobID, "panic", fmt.Sprint(r))
			p.pipe.FailTimedOut(context.Background(), jobID)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	err := p.pipe.Process(ctx, jobID)
	switch {
	case err == nil:
		return
	case errors.Is(err, context.DeadlineExceeded):
		p.log.Error("job exceeded processing budget", "worker_id", workerID, "job_id", jobID)
		p.pipe.FailTimedOut(context.Background(), jobID)
	default:
		p.log.Error("processing failed", "worker_id", workerID, "job_id", jobID, "error", err)
	}
}

func (p *Pool) claim(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[jobID]; busy {
		return false
	}
	p.inflight[jobID] = struct{}{}
	return true
}

func (p *Pool) release(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, jobID)
}

// Enqueue schedules a job id for processing. A full queue blocks the caller
// rather than dropping the job.
func (p *Pool) Enqueue(jobID string) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.closed {
		return ErrShuttingDown
	}

	select {
	case p.ch <- jobID:
	default:
		p.log.Warn("queue full, applying backpressure", "job_id", jobID)
		p.ch <- jobID
	}
	return nil
}

// RecoverPending re-enqueues jobs still pending in the store, picking up work
// that was accepted before a restart.
func (p *Pool) RecoverPending(ctx context.Context) (int, error) {
	jobs, err := p.pipe.store.ListByStatus(ctx, models.StatusPending, cap(p.ch))
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	n := 0
	for _, job := range jobs {
		if err := p.Enqueue(job.ID); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		p.log.Info("recovered pending jobs", "count", n)
	}
	return n, nil
}

// Shutdown stops accepting work and waits for in-flight jobs, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) {
	p.sendMu.Lock()
	if p.closed {
		p.sendMu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.sendMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.log.Warn("shutdown interrupted by context")
	case <-done:
		p.log.Info("queue drained, shutdown complete")
	}
}
