package db

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies what a bulk job does.
type JobKind string

const (
	JobKindIngest JobKind = "ingest"
	JobKindExport JobKind = "export"
)

// JobStatus values. Allowed transitions:
// pending -> processing -> {completed, failed}, and for export jobs
// completed -> expired once the retention window has passed.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobExpired    JobStatus = "expired"
)

// JobItemStatus values for per-row audit records.
type JobItemStatus string

const (
	ItemSuccess JobItemStatus = "success"
	ItemSkipped JobItemStatus = "skipped"
	ItemFailed  JobItemStatus = "failed"
)

// Job represents one tracked ingestion or export run.
type Job struct {
	ID         uuid.UUID `json:"job_id"`
	Kind       JobKind   `json:"kind"`
	Status     JobStatus `json:"status"`
	OwnerID    uuid.UUID `json:"-"`
	SourceName string    `json:"source_name"`

	TotalRows      int `json:"total_rows"`
	ProcessedRows  int `json:"processed_rows"`
	SuccessfulRows int `json:"successful_rows"`
	FailedRows     int `json:"failed_rows"`

	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// Export-only fields
	OutputFormat   *string    `json:"output_format,omitempty"`
	OutputLocation *string    `json:"-"` // server-side path, not serialized
	OutputSize     *int64     `json:"output_size,omitempty"`
	TotalRecords   *int       `json:"total_records,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// IsTerminal reports whether the job has finished running. Expired jobs
// are terminal: expiry only ever follows completion.
func (j *Job) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed || j.Status == JobExpired
}

// IsExpired reports whether an export's retention window has passed.
func (j *Job) IsExpired(now time.Time) bool {
	return j.ExpiresAt != nil && now.After(*j.ExpiresAt)
}

// ProgressPercentage is processed/total as a percentage, rounded to two
// decimal places. Zero total rows reads as 0, not NaN.
func (j *Job) ProgressPercentage() float64 {
	if j.TotalRows == 0 {
		return 0
	}
	pct := float64(j.ProcessedRows) / float64(j.TotalRows) * 100
	return math.Round(pct*100) / 100
}

// JobItem is the immutable per-row audit record for a job.
type JobItem struct {
	ID           int64         `json:"-"`
	JobID        uuid.UUID     `json:"-"`
	RowNumber    int           `json:"row_number"`
	InputKey     string        `json:"input_key"`
	Status       JobItemStatus `json:"status"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	EntityID     *int64        `json:"entity_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
