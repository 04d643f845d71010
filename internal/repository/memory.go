package repository

import (
	"context"
	"maps"
	"sync"

	"torno/pkg/models"
)

// MemoryRepository is the in-process Repository backend. All state is
// instance-scoped and guarded by a single RWMutex, which trivially gives
// per-key serializability. Jobs are indexed by id; there is no linear scan.
//
// Records are cloned at the lock boundary, on the way in and on the way
// out, so callers never alias a stored record: whatever they do with a
// returned pointer cannot race with a concurrent update. Mutation happens
// only inside the Update* callbacks, under the write lock.
type MemoryRepository struct {
	mu          sync.RWMutex
	enrichments map[string]*models.EnrichmentDefinition
	jobs        map[string]*models.EnrichmentJob
	features    map[string]*models.FeatureSet
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		enrichments: map[string]*models.EnrichmentDefinition{},
		jobs:        map[string]*models.EnrichmentJob{},
		features:    map[string]*models.FeatureSet{},
	}
}

func (r *MemoryRepository) CreateEnrichment(ctx context.Context, def *models.EnrichmentDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.enrichments[def.Name]; exists {
		return &models.DuplicateEnrichmentError{Name: def.Name}
	}
	r.enrichments[def.Name] = def.Clone()
	return nil
}

func (r *MemoryRepository) GetEnrichment(ctx context.Context, name string) (*models.EnrichmentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.enrichments[name]
	if !ok {
		return nil, &models.EnrichmentNotFoundError{Name: name}
	}
	return def.Clone(), nil
}

func (r *MemoryRepository) ListEnrichments(ctx context.Context) ([]*models.EnrichmentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*models.EnrichmentDefinition, 0, len(r.enrichments))
	for _, def := range r.enrichments {
		defs = append(defs, def.Clone())
	}
	return defs, nil
}

func (r *MemoryRepository) UpdateEnrichment(ctx context.Context, name string, mutate func(*models.EnrichmentDefinition) error) (*models.EnrichmentDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.enrichments[name]
	if !ok {
		return nil, &models.EnrichmentNotFoundError{Name: name}
	}
	if err := mutate(def); err != nil {
		return nil, err
	}
	return def.Clone(), nil
}

func (r *MemoryRepository) CreateJob(ctx context.Context, job *models.EnrichmentJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.JobID] = job.Clone()
	return nil
}

func (r *MemoryRepository) GetJob(ctx context.Context, id string) (*models.EnrichmentJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, &models.JobNotFoundError{JobID: id}
	}
	return job.Clone(), nil
}

func (r *MemoryRepository) ListJobs(ctx context.Context) ([]*models.EnrichmentJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*models.EnrichmentJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job.Clone())
	}
	return jobs, nil
}

func (r *MemoryRepository) UpdateJob(ctx context.Context, id string, mutate func(*models.EnrichmentJob) error) (*models.EnrichmentJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, &models.JobNotFoundError{JobID: id}
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

func (r *MemoryRepository) PutFeatures(ctx context.Context, datasetID, enrichmentName string, features map[string]any) (*models.FeatureSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.features[datasetID]
	if !ok {
		set = models.NewFeatureSet(datasetID)
		r.features[datasetID] = set
	}
	set.AddFeatures(enrichmentName, maps.Clone(features))
	return set.Clone(), nil
}

func (r *MemoryRepository) GetFeatureSet(ctx context.Context, datasetID string) (*models.FeatureSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.features[datasetID]
	if !ok {
		return nil, nil
	}
	return set.Clone(), nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

var _ Repository = (*MemoryRepository)(nil)
