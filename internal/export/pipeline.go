package export

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// Store is the slice of the database layer the exporter needs.
type Store interface {
	ForEachFood(ctx context.Context, filter db.FoodFilter, fn func(*db.FoodExportRow) error) error
	ForEachServing(ctx context.Context, filter db.ServingFilter, fn func(*db.ServingExportRow) error) error
	CompleteExport(ctx context.Context, jobID uuid.UUID, format, location string, size int64, totalRecords int, retention time.Duration) error
}

// Exporter generates export files on local disk and records the result
// on the owning job.
type Exporter struct {
	store     Store
	dir       string
	retention time.Duration
	log       *slog.Logger
}

func NewExporter(store Store, dir string, retention time.Duration, log *slog.Logger) *Exporter {
	return &Exporter{store: store, dir: dir, retention: retention, log: log}
}

func (e *Exporter) filename(prefix, format string) string {
	return fmt.Sprintf("%s_export_%s.%s", prefix, time.Now().UTC().Format("20060102_150405"), format)
}

// run owns the file lifecycle around a streaming body. A failed export
// leaves no partial file behind.
func (e *Exporter) run(ctx context.Context, jobID uuid.UUID, prefix, format string, body func(streamWriter) (int, error)) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(e.dir, e.filename(prefix, format))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	bw := bufio.NewWriter(f)
	var stream streamWriter
	switch format {
	case FormatJSON:
		stream = newJSONStream(bw, prefix+"s")
	default:
		header := foodCSVHeader
		if prefix == "serving" {
			header = servingCSVHeader
		}
		stream = newCSVStream(bw, header)
	}

	fail := func(err error) error {
		f.Close()
		os.Remove(path)
		return err
	}

	if err := stream.writeHeader(); err != nil {
		return fail(fmt.Errorf("write export header: %w", err))
	}
	total, err := body(stream)
	if err != nil {
		return fail(fmt.Errorf("stream export rows: %w", err))
	}
	if err := stream.finish(total); err != nil {
		return fail(fmt.Errorf("finish export: %w", err))
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("flush export file: %w", err))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("close export file: %w", err))
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat export file: %w", err)
	}

	if err := e.store.CompleteExport(ctx, jobID, format, path, info.Size(), total, e.retention); err != nil {
		os.Remove(path)
		return fmt.Errorf("record export result: %w", err)
	}

	e.log.Info("export finished",
		"job_id", jobID,
		"file", filepath.Base(path),
		"records", total,
		"bytes", info.Size())
	return nil
}

// RunFoods generates a food export for the job.
func (e *Exporter) RunFoods(ctx context.Context, jobID uuid.UUID, format string, filter db.FoodFilter) error {
	return e.run(ctx, jobID, "food", format, func(stream streamWriter) (int, error) {
		var total int
		err := e.store.ForEachFood(ctx, filter, func(r *db.FoodExportRow) error {
			total++
			return stream.writeFood(r)
		})
		return total, err
	})
}

// RunServings generates a serving export for the job.
func (e *Exporter) RunServings(ctx context.Context, jobID uuid.UUID, format string, filter db.ServingFilter) error {
	return e.run(ctx, jobID, "serving", format, func(stream streamWriter) (int, error) {
		var total int
		err := e.store.ForEachServing(ctx, filter, func(r *db.ServingExportRow) error {
			total++
			return stream.writeServing(r)
		})
		return total, err
	})
}
