// Package jobs runs bulk pipelines as supervised background tasks and
// sweeps expired export files.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// Store is the slice of job bookkeeping the executor needs.
type Store interface {
	MarkProcessing(ctx context.Context, jobID uuid.UUID) error
	Finalize(ctx context.Context, jobID uuid.UUID, status db.JobStatus, errorMessage *string) error
}

// Runner is one pipeline run. Closures passed here must capture only
// immutable inputs such as parsed rows, an owner id, or a filter, since
// the run outlives the HTTP request that submitted it. Returning an
// error means the run hit a fatal, non-row-level problem.
type Runner func(ctx context.Context) error

// Executor launches one background task per submitted job, bounded by a
// weighted semaphore so a burst of uploads cannot fork unbounded work.
type Executor struct {
	store Store
	sem   *semaphore.Weighted
	log   *slog.Logger
	wg    sync.WaitGroup
}

// NewExecutor creates an executor allowing at most maxConcurrent
// simultaneously running jobs.
func NewExecutor(store Store, maxConcurrent int64, log *slog.Logger) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		store: store,
		sem:   semaphore.NewWeighted(maxConcurrent),
		log:   log,
	}
}

// Launch starts the job's pipeline in the background and returns
// immediately. The task marks the job processing, runs the pipeline, and
// guarantees the job never stays in processing: a returned error or an
// escaped panic finalizes it as failed.
func (e *Executor) Launch(jobID uuid.UUID, run Runner) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx := context.Background()
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.fail(ctx, jobID, fmt.Sprintf("could not schedule job: %v", err))
			return
		}
		defer e.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				e.log.Error("job task panicked", "job_id", jobID, "panic", r)
				e.fail(ctx, jobID, fmt.Sprintf("internal error: %v", r))
			}
		}()

		if err := e.store.MarkProcessing(ctx, jobID); err != nil {
			e.log.Error("job could not start", "job_id", jobID, "error", err)
			return
		}

		if err := run(ctx); err != nil {
			e.log.Error("job task failed", "job_id", jobID, "error", err)
			e.fail(ctx, jobID, err.Error())
			return
		}
	}()
}

func (e *Executor) fail(ctx context.Context, jobID uuid.UUID, message string) {
	if err := e.store.Finalize(ctx, jobID, db.JobFailed, &message); err != nil {
		e.log.Error("failed to finalize job", "job_id", jobID, "error", err)
	}
}

// Wait blocks until all launched tasks have finished. Used on shutdown.
func (e *Executor) Wait() {
	e.wg.Wait()
}
