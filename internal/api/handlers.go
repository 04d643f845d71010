// Package api contains the HTTP handlers for the enrichment registry.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"torno/internal/logging"
	"torno/internal/services"
	"torno/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Service *services.EnrichmentService
	Logger  *logging.Logger
}

// NewServer creates a new Server.
func NewServer(service *services.EnrichmentService, logger *logging.Logger) *Server {
	return &Server{Service: service, Logger: logger}
}

// RegisterHandlers mounts all registry routes on the given group.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/enrichments", s.ListEnrichments)
	g.POST("/enrichments", s.RegisterEnrichment)
	g.GET("/enrichments/:name", s.GetEnrichment)
	g.PUT("/enrichments/:name/status", s.SetEnrichmentStatus)
	g.POST("/enrichments/:name/versions", s.CreateVersion)
	g.GET("/enrichments/:name/versions/:id", s.GetVersion)

	g.GET("/jobs", s.ListJobs)
	g.POST("/jobs", s.QueueJob)
	g.GET("/jobs/:id", s.GetJob)
	g.PATCH("/jobs/:id", s.UpdateJob)
	g.POST("/jobs/:id/cancel", s.CancelJob)
	g.POST("/jobs/:id/execute", s.ExecuteJob)

	g.GET("/features/:dataset", s.GetFeatureSet)
	g.GET("/features/:dataset/:enrichment", s.GetFeatures)
	g.PUT("/features/:dataset/:enrichment", s.PutFeatures)
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK).
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "torno",
		Version:   "1.0.0",
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// problem maps a service error to an RFC 7807 response. The registry's
// sentinel errors carry the status semantics: not-found is 404, conflicts
// and illegal transitions are 409, schema violations are 422.
func (s *Server) problem(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	title := "Internal Server Error"

	switch {
	case errors.Is(err, models.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, models.ErrConflict):
		status, title = http.StatusConflict, "Conflict"
	case errors.Is(err, models.ErrIllegalTransition):
		status, title = http.StatusConflict, "Illegal Transition"
	case errors.Is(err, models.ErrValidation):
		status, title = http.StatusUnprocessableEntity, "Validation Failed"
	default:
		s.Logger.Error("request failed", "path", c.Path(), "error", err)
	}

	return writeProblem(c, status, title, err.Error())
}

func badRequest(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusBadRequest, "Bad Request", detail)
}

func writeProblem(c echo.Context, status int, title, detail string) error {
	// echo only sets Content-Type when none is present, so the problem+json
	// media type survives the c.JSON call.
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}
