package export

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// ErrNotAvailable means the export file cannot be served right now. The
// wrapping error says why.
var ErrNotAvailable = errors.New("export not available")

// Open returns the export file for a job, enforcing the download gate:
// the job must be a completed export whose retention window has not
// passed and whose file is still on disk.
func Open(job *db.Job, now time.Time) (*os.File, error) {
	if job.Kind != db.JobKindExport {
		return nil, fmt.Errorf("job is not an export: %w", ErrNotAvailable)
	}
	switch job.Status {
	case db.JobPending, db.JobProcessing:
		return nil, fmt.Errorf("export is still being generated: %w", ErrNotAvailable)
	case db.JobFailed:
		return nil, fmt.Errorf("export failed: %w", ErrNotAvailable)
	case db.JobExpired:
		return nil, fmt.Errorf("export has expired: %w", ErrNotAvailable)
	}
	if job.IsExpired(now) {
		return nil, fmt.Errorf("export has expired: %w", ErrNotAvailable)
	}
	if job.OutputLocation == nil {
		return nil, fmt.Errorf("export has no output file: %w", ErrNotAvailable)
	}

	f, err := os.Open(*job.OutputLocation)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("export file is no longer available: %w", ErrNotAvailable)
		}
		return nil, fmt.Errorf("open export file: %w", err)
	}
	return f, nil
}
