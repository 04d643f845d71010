package services

import (
	"context"

	"torno/pkg/models"
)

// ModelClient is the boundary to the external execution engine that runs a
// version's model and prompt against input data. The registry only records
// job status and stores whatever result the engine returns; retries and
// timeouts are the engine's concern.
type ModelClient interface {
	// Run applies the version to the input and returns the produced
	// feature payload.
	Run(ctx context.Context, version *models.EnrichmentVersion, input map[string]any) (map[string]any, error)
}
