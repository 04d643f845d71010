package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"torno/pkg/models"
)

// QueueJobRequest is the body for POST /jobs. Version is optional; when
// empty the enrichment's latest version is used.
type QueueJobRequest struct {
	DatasetID  string         `json:"dataset_id"`
	Enrichment string         `json:"enrichment"`
	Version    string         `json:"version"`
	Input      map[string]any `json:"input"`
}

// QueueJob validates input against the enrichment's schema and creates a
// pending job. Invalid input yields 422 and no job record.
// (POST /api/v1/jobs)
func (s *Server) QueueJob(c echo.Context) error {
	var req QueueJobRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if req.DatasetID == "" || req.Enrichment == "" {
		return badRequest(c, "dataset_id and enrichment are required")
	}

	job, err := s.Service.QueueJob(c.Request().Context(), req.DatasetID, req.Enrichment, req.Input, req.Version)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

// ListJobs returns all job records.
// (GET /api/v1/jobs)
func (s *Server) ListJobs(c echo.Context) error {
	jobs, err := s.Service.ListJobs(c.Request().Context())
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetJob returns one job by id.
// (GET /api/v1/jobs/:id)
func (s *Server) GetJob(c echo.Context) error {
	job, err := s.Service.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// UpdateJobRequest is the body for PATCH /jobs/:id. All fields are
// optional; absent fields leave the job unchanged.
type UpdateJobRequest struct {
	Status *models.JobStatus `json:"status"`
	Result map[string]any    `json:"result"`
	Error  *string           `json:"error"`
}

// UpdateJob applies a status transition and/or stores a result or error.
// Illegal transitions yield 409, an output failing its schema yields 422.
// (PATCH /api/v1/jobs/:id)
func (s *Server) UpdateJob(c echo.Context) error {
	var req UpdateJobRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if req.Status != nil && !req.Status.Valid() {
		return badRequest(c, "unknown status "+string(*req.Status))
	}

	job, err := s.Service.UpdateJob(c.Request().Context(), c.Param("id"), req.Status, req.Result, req.Error)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// CancelJob cancels a pending or running job.
// (POST /api/v1/jobs/:id/cancel)
func (s *Server) CancelJob(c echo.Context) error {
	job, err := s.Service.CancelJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// ExecuteJob synchronously drives one pending job through the execution
// engine and returns its terminal record.
//
// Response contract: a job that ran and ended up FAILED (engine error,
// output rejected by its schema) is still 200 with the FAILED record,
// since the execution request itself was served. Problem statuses are
// reserved for requests that never ran: unknown job (404), lifecycle
// violations such as executing a terminal job (409).
// (POST /api/v1/jobs/:id/execute)
func (s *Server) ExecuteJob(c echo.Context) error {
	job, err := s.Service.ExecuteJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		// A non-nil job means the run happened and the record carries
		// the failure detail.
		if job != nil {
			return c.JSON(http.StatusOK, job)
		}
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, job)
}
