package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
	"github.com/bh-srinivasan/nutri-tracker/internal/server/middleware"
)

// maxReportedFailures caps the failed-row list in the details view.
const maxReportedFailures = 100

// jobView augments a job with its derived progress for API responses.
type jobView struct {
	*db.Job
	ProgressPercentage float64 `json:"progress_percentage"`
}

func viewJob(j *db.Job) jobView {
	return jobView{Job: j, ProgressPercentage: j.ProgressPercentage()}
}

func (s *Server) jobFromPath(w http.ResponseWriter, r *http.Request) (*db.Job, bool) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid job id")
		return nil, false
	}

	job, err := s.db.GetJob(r.Context(), jobID, owner)
	if err != nil {
		s.log.Error("failed to load job", "job_id", jobID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not load job")
		return nil, false
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

// handleListJobs lists the caller's jobs, newest first, optionally
// filtered by status.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status := db.JobStatus(r.URL.Query().Get("status"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	list, err := s.db.ListJobsByOwner(r.Context(), owner, status, page, perPage)
	if err != nil {
		s.log.Error("failed to list jobs", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not list jobs")
		return
	}

	views := make([]jobView, 0, len(list))
	for i := range list {
		views = append(views, viewJob(&list[i]))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": views})
}

// handleGetJob returns one job with its progress.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromPath(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, viewJob(job))
}

// handleGetJobDetails returns a job together with its failed rows, for
// operators fixing up a rejected upload. The failure list is capped.
func (s *Server) handleGetJobDetails(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromPath(w, r)
	if !ok {
		return
	}

	failures, err := s.db.ListFailedJobItems(r.Context(), job.ID, maxReportedFailures)
	if err != nil {
		s.log.Error("failed to list job items", "job_id", job.ID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not load job details")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"job":             viewJob(job),
		"failed_items":    failures,
		"failures_capped": job.FailedRows > len(failures),
	})
}
