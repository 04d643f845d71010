// Package repository defines the storage boundary for the enrichment
// registry. Backends provide per-key serializability: registration and
// version-append are atomic per enrichment name, and job updates are atomic
// per job id. No ordering is guaranteed across different keys.
package repository

import (
	"context"

	"torno/pkg/models"
)

// Repository is the abstract store for enrichment definitions, jobs and
// feature sets. Update methods take a mutator that runs against the current
// record inside the backend's atomicity boundary; a mutator error aborts
// the update and is returned unchanged.
type Repository interface {
	// CreateEnrichment stores a new definition. Returns
	// DuplicateEnrichmentError if the name is taken.
	CreateEnrichment(ctx context.Context, def *models.EnrichmentDefinition) error
	// GetEnrichment returns the definition for name, or
	// EnrichmentNotFoundError.
	GetEnrichment(ctx context.Context, name string) (*models.EnrichmentDefinition, error)
	// ListEnrichments returns all definitions in unspecified order.
	ListEnrichments(ctx context.Context) ([]*models.EnrichmentDefinition, error)
	// UpdateEnrichment applies mutate to the named definition atomically
	// and returns the updated record.
	UpdateEnrichment(ctx context.Context, name string, mutate func(*models.EnrichmentDefinition) error) (*models.EnrichmentDefinition, error)

	// CreateJob stores a new job record.
	CreateJob(ctx context.Context, job *models.EnrichmentJob) error
	// GetJob returns the job for id, or JobNotFoundError.
	GetJob(ctx context.Context, id string) (*models.EnrichmentJob, error)
	// ListJobs returns all job records in unspecified order.
	ListJobs(ctx context.Context) ([]*models.EnrichmentJob, error)
	// UpdateJob applies mutate to the job atomically and returns the
	// updated record.
	UpdateJob(ctx context.Context, id string, mutate func(*models.EnrichmentJob) error) (*models.EnrichmentJob, error)

	// PutFeatures overwrites the payload for one enrichment in the
	// dataset's feature set, creating the set if absent.
	PutFeatures(ctx context.Context, datasetID, enrichmentName string, features map[string]any) (*models.FeatureSet, error)
	// GetFeatureSet returns the dataset's feature set, or nil when the
	// dataset has no features yet.
	GetFeatureSet(ctx context.Context, datasetID string) (*models.FeatureSet, error)

	// Ping reports backend liveness.
	Ping(ctx context.Context) error
}
