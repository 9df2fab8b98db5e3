package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

func exportJob(t *testing.T, status db.JobStatus, expiresIn time.Duration, withFile bool) *db.Job {
	t.Helper()
	job := &db.Job{Kind: db.JobKindExport, Status: status}
	if expiresIn != 0 {
		exp := time.Now().Add(expiresIn)
		job.ExpiresAt = &exp
	}
	if withFile {
		path := filepath.Join(t.TempDir(), "export.csv")
		require.NoError(t, os.WriteFile(path, []byte("id,name\n"), 0o644))
		job.OutputLocation = &path
	}
	return job
}

func TestOpen_CompletedExport(t *testing.T) {
	job := exportJob(t, db.JobCompleted, time.Hour, true)
	f, err := Open(job, time.Now())
	require.NoError(t, err)
	f.Close()
}

func TestOpen_Gate(t *testing.T) {
	tests := []struct {
		name string
		job  *db.Job
		want string
	}{
		{"pending", exportJob(t, db.JobPending, 0, false), "still being generated"},
		{"processing", exportJob(t, db.JobProcessing, 0, false), "still being generated"},
		{"failed", exportJob(t, db.JobFailed, 0, false), "failed"},
		{"expired status", exportJob(t, db.JobExpired, 0, false), "expired"},
		{"past retention window", exportJob(t, db.JobCompleted, -time.Minute, true), "expired"},
		{"no output location", exportJob(t, db.JobCompleted, time.Hour, false), "no output file"},
		{"not an export", &db.Job{Kind: db.JobKindIngest, Status: db.JobCompleted}, "not an export"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(tc.job, time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotAvailable), "want ErrNotAvailable, got %v", err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestOpen_FileRemovedFromDisk(t *testing.T) {
	job := exportJob(t, db.JobCompleted, time.Hour, true)
	require.NoError(t, os.Remove(*job.OutputLocation))

	_, err := Open(job, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAvailable))
	assert.Contains(t, err.Error(), "no longer available")
}
