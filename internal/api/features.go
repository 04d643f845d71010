package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetFeatureSet returns a dataset's full feature overlay.
// (GET /api/v1/features/:dataset)
func (s *Server) GetFeatureSet(c echo.Context) error {
	set, err := s.Service.GetFeatureSet(c.Request().Context(), c.Param("dataset"))
	if err != nil {
		return s.problem(c, err)
	}
	if set == nil {
		return writeProblem(c, http.StatusNotFound, "Not Found",
			"no features recorded for dataset "+c.Param("dataset"))
	}
	return c.JSON(http.StatusOK, set)
}

// GetFeatures returns the payload one enrichment last emitted for a
// dataset.
// (GET /api/v1/features/:dataset/:enrichment)
func (s *Server) GetFeatures(c echo.Context) error {
	features, err := s.Service.GetFeatures(c.Request().Context(), c.Param("dataset"), c.Param("enrichment"))
	if err != nil {
		return s.problem(c, err)
	}
	if features == nil {
		return writeProblem(c, http.StatusNotFound, "Not Found",
			"no features from "+c.Param("enrichment")+" for dataset "+c.Param("dataset"))
	}
	return c.JSON(http.StatusOK, features)
}

// PutFeatures records an enrichment's output payload for a dataset,
// overwriting any earlier payload under the same enrichment name.
// (PUT /api/v1/features/:dataset/:enrichment)
func (s *Server) PutFeatures(c echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	set, err := s.Service.AddFeatures(c.Request().Context(), c.Param("dataset"), c.Param("enrichment"), payload)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, set)
}
