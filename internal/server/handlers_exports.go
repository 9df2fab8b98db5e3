package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
	"github.com/bh-srinivasan/nutri-tracker/internal/export"
	"github.com/bh-srinivasan/nutri-tracker/internal/server/middleware"
)

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// createExportRequest is the body of POST /api/v1/exports.
type createExportRequest struct {
	Type    string            `json:"type" validate:"required,oneof=foods servings"`
	Format  string            `json:"format" validate:"required,oneof=csv json"`
	Filters map[string]string `json:"filters"`
}

// handleCreateExport starts a background export job and returns 202.
func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createExportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := requestValidator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "type must be foods or servings, format must be csv or json")
		return
	}

	sourceName := fmt.Sprintf("%s.%s", req.Type, req.Format)
	job, err := s.db.CreateJob(r.Context(), db.JobKindExport, owner, sourceName, 0)
	if err != nil {
		s.log.Error("failed to create export job", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not create job")
		return
	}

	// Filters are parsed leniently up front so the runner captures only
	// immutable inputs.
	switch req.Type {
	case "servings":
		filter := export.ParseServingFilter(req.Filters)
		s.executor.Launch(job.ID, func(ctx context.Context) error {
			return s.exporter.RunServings(ctx, job.ID, req.Format, filter)
		})
	default:
		filter := export.ParseFoodFilter(req.Filters)
		s.executor.Launch(job.ID, func(ctx context.Context) error {
			return s.exporter.RunFoods(ctx, job.ID, req.Format, filter)
		})
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// handleDownloadExport streams a completed export file. Downloads are
// gated: only completed, unexpired exports whose file still exists.
func (s *Server) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromPath(w, r)
	if !ok {
		return
	}

	file, err := export.Open(job, time.Now())
	if err != nil {
		if errors.Is(err, export.ErrNotAvailable) {
			s.errorResponse(w, http.StatusGone, err.Error())
			return
		}
		s.log.Error("failed to open export file", "job_id", job.ID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not open export file")
		return
	}
	defer file.Close()

	contentType := "text/csv"
	if job.OutputFormat != nil && *job.OutputFormat == export.FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(file.Name())))
	if job.OutputSize != nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", *job.OutputSize))
	}

	if _, err := io.Copy(w, file); err != nil {
		s.log.Warn("export download interrupted", "job_id", job.ID, "error", err)
	}
}
