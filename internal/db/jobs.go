package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, kind, status, owner_id, source_name,
	total_rows, processed_rows, successful_rows, failed_rows,
	error_message, created_at, started_at, completed_at,
	output_format, output_location, output_size, total_records, expires_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Kind, &j.Status, &j.OwnerID, &j.SourceName,
		&j.TotalRows, &j.ProcessedRows, &j.SuccessfulRows, &j.FailedRows,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
		&j.OutputFormat, &j.OutputLocation, &j.OutputSize, &j.TotalRecords, &j.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts a new job in pending state with zeroed counters and a
// freshly generated ID.
func (db *DB) CreateJob(ctx context.Context, kind JobKind, owner uuid.UUID, sourceName string, totalRows int) (*Job, error) {
	j := &Job{
		ID:         uuid.New(),
		Kind:       kind,
		Status:     JobPending,
		OwnerID:    owner,
		SourceName: sourceName,
		TotalRows:  totalRows,
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, kind, status, owner_id, source_name, total_rows)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		j.ID, j.Kind, j.Status, j.OwnerID, j.SourceName, j.TotalRows,
	).Scan(&j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return j, nil
}

// MarkProcessing transitions pending -> processing and stamps started_at.
func (db *DB) MarkProcessing(ctx context.Context, jobID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, started_at = NOW()
		 WHERE id = $2 AND status = $3`,
		JobProcessing, jobID, JobPending)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not pending: %w", jobID, ErrInvalidTransition)
	}
	return nil
}

// RecordProgress writes the current counters. Rejected once the job is
// terminal so a straggling writer cannot thaw frozen counters.
func (db *DB) RecordProgress(ctx context.Context, jobID uuid.UUID, processed, success, failed int) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs
		    SET processed_rows = $1, successful_rows = $2, failed_rows = $3
		  WHERE id = $4 AND status = $5`,
		processed, success, failed, jobID, JobProcessing)
	if err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not processing: %w", jobID, ErrInvalidTransition)
	}
	return nil
}

// Finalize transitions processing -> completed or failed and stamps
// completed_at. Calling it again with the same terminal status is a no-op;
// any other repeat call reports ErrInvalidTransition.
func (db *DB) Finalize(ctx context.Context, jobID uuid.UUID, status JobStatus, errorMessage *string) error {
	if status != JobCompleted && status != JobFailed {
		return fmt.Errorf("cannot finalize to %q: %w", status, ErrInvalidTransition)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, completed_at = NOW()
		 WHERE id = $3 AND status = $4`,
		status, errorMessage, jobID, JobProcessing)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Idempotency check: repeat finalize with the same terminal status.
	current, err := db.getJobAnyOwner(ctx, jobID)
	if err != nil {
		return err
	}
	if current != nil && current.Status == status {
		return nil
	}
	return fmt.Errorf("job %s cannot finalize to %q: %w", jobID, status, ErrInvalidTransition)
}

// CompleteExport finalizes a successful export run in one write: output
// metadata, completed status and the retention deadline.
func (db *DB) CompleteExport(ctx context.Context, jobID uuid.UUID, format, location string, size int64, totalRecords int, retention time.Duration) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs
		    SET status = $1, completed_at = NOW(),
		        output_format = $2, output_location = $3, output_size = $4,
		        total_records = $5, expires_at = NOW() + $6 * interval '1 second'
		  WHERE id = $7 AND status = $8`,
		JobCompleted, format, location, size, totalRecords,
		int64(retention.Seconds()), jobID, JobProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete export: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not processing: %w", jobID, ErrInvalidTransition)
	}
	return nil
}

// GetJob retrieves a job scoped to its owner. A missing job and a job
// belonging to someone else are indistinguishable: both return nil, nil.
// Ownership is enforced here, not in the handlers.
func (db *DB) GetJob(ctx context.Context, jobID, owner uuid.UUID) (*Job, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND owner_id = $2`,
		jobID, owner))
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (db *DB) getJobAnyOwner(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListJobsByOwner retrieves an owner's jobs, newest first, with optional
// status filtering and simple pagination (page is 1-based).
func (db *DB) ListJobsByOwner(ctx context.Context, owner uuid.UUID, status JobStatus, page, perPage int) ([]Job, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE owner_id = $1`
	args := []any{owner}
	argNum := 2

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Kind, &j.Status, &j.OwnerID, &j.SourceName,
			&j.TotalRows, &j.ProcessedRows, &j.SuccessfulRows, &j.FailedRows,
			&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
			&j.OutputFormat, &j.OutputLocation, &j.OutputSize, &j.TotalRecords, &j.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListExpiredExportJobs returns completed export jobs whose retention
// window passed before now.
func (db *DB) ListExpiredExportJobs(ctx context.Context, now time.Time) ([]Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE kind = $1 AND status = $2 AND expires_at < $3`,
		JobKindExport, JobCompleted, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired exports: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Kind, &j.Status, &j.OwnerID, &j.SourceName,
			&j.TotalRows, &j.ProcessedRows, &j.SuccessfulRows, &j.FailedRows,
			&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
			&j.OutputFormat, &j.OutputLocation, &j.OutputSize, &j.TotalRecords, &j.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkJobExpired transitions completed -> expired and drops the file
// location.
func (db *DB) MarkJobExpired(ctx context.Context, jobID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, output_location = NULL
		 WHERE id = $2 AND status = $3`,
		JobExpired, jobID, JobCompleted)
	if err != nil {
		return fmt.Errorf("failed to expire job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not completed: %w", jobID, ErrInvalidTransition)
	}
	return nil
}

// CreateJobItem appends one audit row. Items are never updated afterward.
func (db *DB) CreateJobItem(ctx context.Context, item *JobItem) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job_items (job_id, row_number, input_key, status, error_message, entity_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		item.JobID, item.RowNumber, item.InputKey, item.Status, item.ErrorMessage, item.EntityID,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job item: %w", err)
	}
	return nil
}

// ListFailedJobItems returns a job's failed audit rows in input order,
// capped at limit.
func (db *DB) ListFailedJobItems(ctx context.Context, jobID uuid.UUID, limit int) ([]JobItem, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, row_number, input_key, status, error_message, entity_id, created_at
		 FROM job_items
		 WHERE job_id = $1 AND status = $2
		 ORDER BY row_number
		 LIMIT $3`,
		jobID, ItemFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job items: %w", err)
	}
	defer rows.Close()

	var items []JobItem
	for rows.Next() {
		var it JobItem
		if err := rows.Scan(&it.ID, &it.JobID, &it.RowNumber, &it.InputKey, &it.Status,
			&it.ErrorMessage, &it.EntityID, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
