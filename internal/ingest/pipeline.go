package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// progressBatch is how many rows we process between progress flushes.
const progressBatch = 10

// Tracker persists job progress and per-row audit records. *db.DB
// satisfies it.
type Tracker interface {
	RecordProgress(ctx context.Context, jobID uuid.UUID, processed, success, failed int) error
	Finalize(ctx context.Context, jobID uuid.UUID, status db.JobStatus, errorMessage *string) error
	CreateJobItem(ctx context.Context, item *db.JobItem) error
}

// Outcome is the result of processing one row.
type Outcome struct {
	InputKey string
	Status   db.JobItemStatus
	EntityID *int64
	Message  string
}

// RowProcessor applies one row to the catalog. A returned error means
// the store itself is unusable and the whole job must fail; row-level
// problems are reported through the Outcome instead.
type RowProcessor interface {
	Process(ctx context.Context, row Row, rowNumber int) (Outcome, error)
}

// Pipeline drives a job through its rows. The same loop serves food and
// serving ingestion; only the processor differs.
type Pipeline struct {
	tracker Tracker
	log     *slog.Logger
}

func NewPipeline(tracker Tracker, log *slog.Logger) *Pipeline {
	return &Pipeline{tracker: tracker, log: log}
}

// Run processes every row, recording an audit item per row and flushing
// progress in batches. Row failures never abort the run; the job
// completes even when every row fails. Skipped rows count toward the
// success tally since the desired state already exists.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, rows []Row, proc RowProcessor) error {
	var processed, success, failed int

	flush := func() error {
		return p.tracker.RecordProgress(ctx, jobID, processed, success, failed)
	}

	for i, row := range rows {
		out, err := proc.Process(ctx, row, i+1)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}

		item := &db.JobItem{
			JobID:     jobID,
			RowNumber: i + 1,
			InputKey:  out.InputKey,
			Status:    out.Status,
			EntityID:  out.EntityID,
		}
		if out.Message != "" {
			item.ErrorMessage = &out.Message
		}
		if err := p.tracker.CreateJobItem(ctx, item); err != nil {
			return fmt.Errorf("record item for row %d: %w", i+1, err)
		}

		processed++
		if out.Status == db.ItemFailed {
			failed++
		} else {
			success++
		}

		if processed%progressBatch == 0 {
			if err := flush(); err != nil {
				return fmt.Errorf("flush progress at row %d: %w", i+1, err)
			}
		}
	}

	if err := flush(); err != nil {
		return fmt.Errorf("flush final progress: %w", err)
	}

	p.log.Info("ingestion finished",
		"job_id", jobID,
		"processed", processed,
		"success", success,
		"failed", failed)

	return p.tracker.Finalize(ctx, jobID, db.JobCompleted, nil)
}
