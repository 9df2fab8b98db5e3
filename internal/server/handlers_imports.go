package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
	"github.com/bh-srinivasan/nutri-tracker/internal/ingest"
	"github.com/bh-srinivasan/nutri-tracker/internal/server/middleware"
)

// readCSVUpload pulls the uploaded file out of a multipart request and
// parses it. Returns ok=false after writing the error response.
func (s *Server) readCSVUpload(w http.ResponseWriter, r *http.Request, parse func(io.Reader) ([]ingest.Row, error)) ([]ingest.Row, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.errorResponse(w, http.StatusRequestEntityTooLarge, "uploaded file is too large")
			return nil, "", false
		}
		s.errorResponse(w, http.StatusBadRequest, "multipart field 'file' is required")
		return nil, "", false
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		s.errorResponse(w, http.StatusBadRequest, "only .csv files are accepted")
		return nil, "", false
	}

	rows, err := parse(file)
	if err != nil {
		if errors.Is(err, ingest.ErrMalformedInput) {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return nil, "", false
		}
		s.log.Error("failed to read upload", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not read uploaded file")
		return nil, "", false
	}
	return rows, header.Filename, true
}

// launchIngest creates the job and hands the parsed rows to the
// background executor. The request returns 202 immediately.
func (s *Server) launchIngest(w http.ResponseWriter, r *http.Request, rows []ingest.Row, sourceName string, newProcessor func(owner uuid.UUID) ingest.RowProcessor) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	job, err := s.db.CreateJob(r.Context(), db.JobKindIngest, owner, sourceName, len(rows))
	if err != nil {
		s.log.Error("failed to create ingest job", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not create job")
		return
	}

	pipeline := ingest.NewPipeline(s.db, s.log)
	processor := newProcessor(owner)
	s.executor.Launch(job.ID, func(ctx context.Context) error {
		return pipeline.Run(ctx, job.ID, rows, processor)
	})

	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"total_rows": job.TotalRows,
	})
}

// handleImportFoods accepts a food CSV and starts a bulk ingestion job.
func (s *Server) handleImportFoods(w http.ResponseWriter, r *http.Request) {
	rows, filename, ok := s.readCSVUpload(w, r, ingest.ParseFoodCSV)
	if !ok {
		return
	}
	s.launchIngest(w, r, rows, filename, func(owner uuid.UUID) ingest.RowProcessor {
		return ingest.NewFoodProcessor(s.db, owner)
	})
}

// handleImportServings accepts a serving CSV and starts a bulk
// ingestion job.
func (s *Server) handleImportServings(w http.ResponseWriter, r *http.Request) {
	rows, filename, ok := s.readCSVUpload(w, r, ingest.ParseServingCSV)
	if !ok {
		return
	}
	s.launchIngest(w, r, rows, filename, func(owner uuid.UUID) ingest.RowProcessor {
		return ingest.NewServingProcessor(s.db, owner)
	})
}

// handleValidateFoods dry-runs row validation without creating a job or
// touching the catalog.
func (s *Server) handleValidateFoods(w http.ResponseWriter, r *http.Request) {
	rows, _, ok := s.readCSVUpload(w, r, ingest.ParseFoodCSV)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, ingest.ValidateFoodRows(rows))
}
