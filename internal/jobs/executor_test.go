package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// fakeStore records transitions in memory.
type fakeStore struct {
	mu         sync.Mutex
	processing []uuid.UUID
	finalized  map[uuid.UUID]db.JobStatus
	messages   map[uuid.UUID]string
	markErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		finalized: make(map[uuid.UUID]db.JobStatus),
		messages:  make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) MarkProcessing(_ context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.processing = append(f.processing, jobID)
	return nil
}

func (f *fakeStore) Finalize(_ context.Context, jobID uuid.UUID, status db.JobStatus, msg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized[jobID] = status
	if msg != nil {
		f.messages[jobID] = *msg
	}
	return nil
}

func (f *fakeStore) status(jobID uuid.UUID) (db.JobStatus, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized[jobID], f.messages[jobID]
}

func TestExecutor_RunsTask(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(store, 2, nil)
	jobID := uuid.New()

	ran := make(chan struct{})
	exec.Launch(jobID, func(ctx context.Context) error {
		close(ran)
		return nil
	})
	exec.Wait()

	select {
	case <-ran:
	default:
		t.Fatal("task did not run")
	}
	require.Len(t, store.processing, 1)
	assert.Equal(t, jobID, store.processing[0])

	// A successful run does not finalize; the pipeline owns that.
	status, _ := store.status(jobID)
	assert.Empty(t, status)
}

func TestExecutor_FinalizesFailedOnError(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(store, 2, nil)
	jobID := uuid.New()

	exec.Launch(jobID, func(ctx context.Context) error {
		return errors.New("catalog unreachable")
	})
	exec.Wait()

	status, msg := store.status(jobID)
	assert.Equal(t, db.JobFailed, status)
	assert.Contains(t, msg, "catalog unreachable")
}

func TestExecutor_RecoversPanic(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(store, 2, nil)
	jobID := uuid.New()

	exec.Launch(jobID, func(ctx context.Context) error {
		panic("boom")
	})
	exec.Wait()

	status, msg := store.status(jobID)
	assert.Equal(t, db.JobFailed, status, "a panicking task must not leave the job in processing")
	assert.Contains(t, msg, "boom")
}

func TestExecutor_SkipsRunWhenMarkProcessingFails(t *testing.T) {
	store := newFakeStore()
	store.markErr = db.ErrInvalidTransition
	exec := NewExecutor(store, 2, nil)

	ran := false
	exec.Launch(uuid.New(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	exec.Wait()

	assert.False(t, ran, "pipeline must not run when the job cannot start")
}

func TestExecutor_BoundsConcurrency(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(store, 2, nil)

	var mu sync.Mutex
	running, peak := 0, 0

	for i := 0; i < 8; i++ {
		exec.Launch(uuid.New(), func(ctx context.Context) error {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		})
	}
	exec.Wait()

	assert.LessOrEqual(t, peak, 2, "no more than maxConcurrent tasks may run at once")
	assert.Len(t, store.processing, 8)
}
