// Package cleanup reaps stuck jobs and purges aged-out records on a fixed
// interval, so no job lingers in a non-terminal state indefinitely.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/resumelens/resumelens/internal/core/ingest"
	"github.com/resumelens/resumelens/internal/core/tracker"
	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

// Config carries the sweep interval and age windows. Tests inject short
// windows; nothing here is process-global.
type Config struct {
	Interval           time.Duration
	StalenessWindow    time.Duration // non-terminal jobs older than this are force-failed
	ErrorRetention     time.Duration // errored jobs older than this are purged
	CompletedRetention time.Duration // completed jobs older than this are purged
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = 24 * time.Hour
	}
	if c.ErrorRetention <= 0 {
		c.ErrorRetention = 7 * 24 * time.Hour
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = 30 * 24 * time.Hour
	}
}

// Stats summarizes one sweep.
type Stats struct {
	Reaped         int
	PurgedComplete int64
	PurgedErrored  int64
}

// Sweeper applies the age-based policies. Stuck jobs are failed through the
// tracker like any other failure, so the terminal-wins rule protects a
// worker's completion that lands at the same moment.
type Sweeper struct {
	store   store.JobStore
	tracker *tracker.Tracker
	cfg     Config
	log     *slog.Logger
}

func New(s store.JobStore, tr *tracker.Tracker, cfg Config, log *slog.Logger) *Sweeper {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{store: s, tracker: tr, cfg: cfg, log: log}
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info("cleanup sweeper started",
		"interval", s.cfg.Interval,
		"staleness_window", s.cfg.StalenessWindow,
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("cleanup sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.log.Error("sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce applies every policy a single time.
func (s *Sweeper) SweepOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	now := time.Now().UTC()

	stale, err := s.store.ListStale(ctx, now.Add(-s.cfg.StalenessWindow))
	if err != nil {
		return stats, err
	}
	for _, job := range stale {
		err := s.tracker.Fail(ctx, job.ID, tracker.StageTimeout, ingest.MsgTimedOut)
		if err != nil {
			if errors.Is(err, tracker.ErrTerminal) {
				continue // finished while we were sweeping; its outcome stands
			}
			s.log.Error("reap stuck job", "job_id", job.ID, "error", err)
			continue
		}
		stats.Reaped++
		s.log.Info("reaped stuck job", "job_id", job.ID, "status_was", job.Status, "updated_at", job.UpdatedAt)
	}

	// The two retention purges touch disjoint rows.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.PurgedComplete, err = s.store.PurgeOlderThan(gctx, models.StatusCompleted, now.Add(-s.cfg.CompletedRetention))
		return err
	})
	g.Go(func() error {
		var err error
		stats.PurgedErrored, err = s.store.PurgeOlderThan(gctx, models.StatusError, now.Add(-s.cfg.ErrorRetention))
		return err
	})
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if stats.Reaped > 0 || stats.PurgedComplete > 0 || stats.PurgedErrored > 0 {
		s.log.Info("sweep complete",
			"reaped", stats.Reaped,
			"purged_completed", stats.PurgedComplete,
			"purged_errored", stats.PurgedErrored,
		)
	}
	return stats, nil
}
