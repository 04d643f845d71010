package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"torno/pkg/models"
)

// RegisterEnrichmentRequest is the body for POST /enrichments.
type RegisterEnrichmentRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// RegisterEnrichment registers a new enrichment definition.
// (POST /api/v1/enrichments)
func (s *Server) RegisterEnrichment(c echo.Context) error {
	var req RegisterEnrichmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	def, err := s.Service.Register(c.Request().Context(), req.Name, req.Description, req.Metadata)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusCreated, def)
}

// ListEnrichments returns all registered enrichments.
// (GET /api/v1/enrichments)
func (s *Server) ListEnrichments(c echo.Context) error {
	defs, err := s.Service.ListEnrichments(c.Request().Context())
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, defs)
}

// GetEnrichment returns one enrichment by name.
// (GET /api/v1/enrichments/:name)
func (s *Server) GetEnrichment(c echo.Context) error {
	def, err := s.Service.GetEnrichment(c.Request().Context(), c.Param("name"))
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, def)
}

// SetEnrichmentStatusRequest is the body for PUT /enrichments/:name/status.
type SetEnrichmentStatusRequest struct {
	Status models.EnrichmentStatus `json:"status"`
}

// SetEnrichmentStatus updates an enrichment's advisory lifecycle status.
// (PUT /api/v1/enrichments/:name/status)
func (s *Server) SetEnrichmentStatus(c echo.Context) error {
	var req SetEnrichmentStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	switch req.Status {
	case models.EnrichmentDraft, models.EnrichmentPublished, models.EnrichmentDeprecated:
	default:
		return badRequest(c, "unknown status "+string(req.Status))
	}

	def, err := s.Service.SetStatus(c.Request().Context(), c.Param("name"), req.Status)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, def)
}

// CreateVersionRequest is the body for POST /enrichments/:name/versions.
// Schemas arrive in declarative form only; per-field validator functions
// cannot cross the wire.
type CreateVersionRequest struct {
	Prompt       string         `json:"prompt"`
	Model        string         `json:"model"`
	Params       map[string]any `json:"params"`
	InputSchema  models.Schema  `json:"input_schema"`
	OutputSchema models.Schema  `json:"output_schema"`
	Metadata     map[string]any `json:"metadata"`
}

// CreateVersion appends a content-addressed version to an enrichment.
// (POST /api/v1/enrichments/:name/versions)
func (s *Server) CreateVersion(c echo.Context) error {
	var req CreateVersionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	input, err := models.NewSchema(req.InputSchema.Fields, req.InputSchema.Required, nil)
	if err != nil {
		return badRequest(c, "input_schema: "+err.Error())
	}
	output, err := models.NewSchema(req.OutputSchema.Fields, req.OutputSchema.Required, nil)
	if err != nil {
		return badRequest(c, "output_schema: "+err.Error())
	}

	version, err := s.Service.CreateVersion(c.Request().Context(), c.Param("name"), models.VersionConfig{
		Prompt:       req.Prompt,
		Model:        req.Model,
		Params:       req.Params,
		InputSchema:  input,
		OutputSchema: output,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusCreated, version)
}

// GetVersion returns one version of an enrichment by id.
// (GET /api/v1/enrichments/:name/versions/:id)
func (s *Server) GetVersion(c echo.Context) error {
	name := c.Param("name")
	def, err := s.Service.GetEnrichment(c.Request().Context(), name)
	if err != nil {
		return s.problem(c, err)
	}

	version := def.Version(c.Param("id"))
	if version == nil {
		return s.problem(c, &models.VersionNotFoundError{Enrichment: name, VersionID: c.Param("id")})
	}
	return c.JSON(http.StatusOK, version)
}
