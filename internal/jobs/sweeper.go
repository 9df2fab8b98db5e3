package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// SweepStore is the slice of job bookkeeping the sweeper needs.
type SweepStore interface {
	ListExpiredExportJobs(ctx context.Context, now time.Time) ([]db.Job, error)
	MarkJobExpired(ctx context.Context, jobID uuid.UUID) error
}

// Sweeper expires completed export jobs whose retention window has
// passed, deleting their backing files.
type Sweeper struct {
	store SweepStore
	log   *slog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(store SweepStore, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{store: store, log: log}
}

// Sweep performs one pass: every completed export past its expires_at is
// transitioned to expired and its file removed. File deletion is
// best-effort; a file already gone is not an error. Returns how many jobs
// were expired.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ListExpiredExportJobs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired exports: %w", err)
	}

	count := 0
	for _, job := range expired {
		if job.OutputLocation != nil {
			if err := os.Remove(*job.OutputLocation); err != nil && !os.IsNotExist(err) {
				s.log.Warn("could not remove export file", "job_id", job.ID, "path", *job.OutputLocation, "error", err)
			}
		}
		if err := s.store.MarkJobExpired(ctx, job.ID); err != nil {
			s.log.Error("could not expire export job", "job_id", job.ID, "error", err)
			continue
		}
		count++
	}

	if count > 0 {
		s.log.Info("expired export jobs", "count", count)
	}
	return count, nil
}

// Schedule registers the sweep on a cron schedule and starts the cron
// runner. The returned cron should be stopped on shutdown.
func (s *Sweeper) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(context.Background(), time.Now()); err != nil {
			s.log.Error("export sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
