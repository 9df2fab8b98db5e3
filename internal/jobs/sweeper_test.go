package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

type fakeSweepStore struct {
	expired []db.Job
	marked  []uuid.UUID
}

func (f *fakeSweepStore) ListExpiredExportJobs(_ context.Context, _ time.Time) ([]db.Job, error) {
	return f.expired, nil
}

func (f *fakeSweepStore) MarkJobExpired(_ context.Context, jobID uuid.UUID) error {
	f.marked = append(f.marked, jobID)
	return nil
}

func TestSweeper_RemovesFilesAndExpires(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "food_export_20250101_000000.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n"), 0o644))

	jobID := uuid.New()
	store := &fakeSweepStore{
		expired: []db.Job{{ID: jobID, OutputLocation: &path}},
	}

	count, err := NewSweeper(store, nil).Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []uuid.UUID{jobID}, store.marked)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "export file should be deleted")
}

func TestSweeper_MissingFileIsNotAnError(t *testing.T) {
	gone := filepath.Join(t.TempDir(), "already_deleted.csv")
	jobID := uuid.New()
	store := &fakeSweepStore{
		expired: []db.Job{{ID: jobID, OutputLocation: &gone}},
	}

	count, err := NewSweeper(store, nil).Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []uuid.UUID{jobID}, store.marked)
}

func TestSweeper_NothingExpired(t *testing.T) {
	count, err := NewSweeper(&fakeSweepStore{}, nil).Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
}
