// Package services implements the enrichment registry's application
// operations on top of the repository boundary: catalog registration,
// version creation, job lifecycle and feature retrieval.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"torno/internal/logging"
	"torno/internal/repository"
	"torno/pkg/models"
)

// EnrichmentService is the main interface surrounding applications use to
// operate the registry.
type EnrichmentService struct {
	repo     repository.Repository
	executor ModelClient
	logger   *logging.Logger

	jobsQueued    metric.Int64Counter
	jobsCompleted metric.Int64Counter
	jobsFailed    metric.Int64Counter
}

// NewEnrichmentService creates a service over the given repository.
// executor may be nil when jobs are driven externally; ExecuteJob then
// returns an error.
func NewEnrichmentService(repo repository.Repository, executor ModelClient, logger *logging.Logger) *EnrichmentService {
	meter := otel.Meter("torno/services")
	jobsQueued, _ := meter.Int64Counter("torno.jobs.queued")
	jobsCompleted, _ := meter.Int64Counter("torno.jobs.completed")
	jobsFailed, _ := meter.Int64Counter("torno.jobs.failed")

	return &EnrichmentService{
		repo:          repo,
		executor:      executor,
		logger:        logger,
		jobsQueued:    jobsQueued,
		jobsCompleted: jobsCompleted,
		jobsFailed:    jobsFailed,
	}
}

// Register adds a new enrichment definition to the catalog. Registration
// is not an upsert; a taken name yields DuplicateEnrichmentError.
func (s *EnrichmentService) Register(ctx context.Context, name, description string, metadata map[string]any) (*models.EnrichmentDefinition, error) {
	def := models.NewEnrichment(name, description, metadata)
	if err := s.repo.CreateEnrichment(ctx, def); err != nil {
		return nil, err
	}
	s.logger.Info("enrichment registered", "name", name)
	return def, nil
}

// GetEnrichment returns a registered definition by name.
func (s *EnrichmentService) GetEnrichment(ctx context.Context, name string) (*models.EnrichmentDefinition, error) {
	return s.repo.GetEnrichment(ctx, name)
}

// ListEnrichments returns all registered definitions.
func (s *EnrichmentService) ListEnrichments(ctx context.Context) ([]*models.EnrichmentDefinition, error) {
	return s.repo.ListEnrichments(ctx)
}

// SetStatus updates an enrichment's advisory status. Status does not gate
// job queuing.
func (s *EnrichmentService) SetStatus(ctx context.Context, name string, status models.EnrichmentStatus) (*models.EnrichmentDefinition, error) {
	return s.repo.UpdateEnrichment(ctx, name, func(def *models.EnrichmentDefinition) error {
		def.Status = status
		return nil
	})
}

// CreateVersion computes the content-addressed version for cfg and appends
// it to the named enrichment.
func (s *EnrichmentService) CreateVersion(ctx context.Context, enrichmentName string, cfg models.VersionConfig) (*models.EnrichmentVersion, error) {
	version, err := models.NewVersion(cfg)
	if err != nil {
		return nil, err
	}

	_, err = s.repo.UpdateEnrichment(ctx, enrichmentName, func(def *models.EnrichmentDefinition) error {
		def.AddVersion(version)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("version created",
		"enrichment", enrichmentName, "version_id", version.VersionID, "model", version.ModelID)
	return version, nil
}

// QueueJob validates input against the resolved version's input schema and
// creates a PENDING job. versionID may be empty to target the enrichment's
// latest version. Invalid input aborts before any job record exists.
func (s *EnrichmentService) QueueJob(ctx context.Context, datasetID, enrichmentName string, input map[string]any, versionID string) (*models.EnrichmentJob, error) {
	version, err := s.resolveVersion(ctx, enrichmentName, versionID)
	if err != nil {
		return nil, err
	}

	if err := version.InputSchema.Validate(input); err != nil {
		return nil, err
	}

	job := models.NewJob(datasetID, enrichmentName, version.VersionID, input)
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.jobsQueued.Add(ctx, 1, metric.WithAttributes(attribute.String("enrichment", enrichmentName)))
	s.logger.Info("job queued",
		"job_id", job.JobID, "dataset_id", datasetID,
		"enrichment", enrichmentName, "version_id", version.VersionID)
	return job, nil
}

// GetJob returns the job record for id.
func (s *EnrichmentService) GetJob(ctx context.Context, id string) (*models.EnrichmentJob, error) {
	return s.repo.GetJob(ctx, id)
}

// ListJobs returns all job records.
func (s *EnrichmentService) ListJobs(ctx context.Context) ([]*models.EnrichmentJob, error) {
	return s.repo.ListJobs(ctx)
}

// UpdateJob applies a status transition and/or stores a result or error
// annotation. Supplying a result triggers output-schema validation against
// the job's version before anything is stored; a failure surfaces as
// OutputValidationError and leaves the job untouched.
func (s *EnrichmentService) UpdateJob(ctx context.Context, id string, status *models.JobStatus, result map[string]any, errMsg *string) (*models.EnrichmentJob, error) {
	// Resolve the output schema outside the repository's update boundary;
	// the job's enrichment and version references are immutable.
	if result != nil {
		job, err := s.repo.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		version, err := s.resolveVersion(ctx, job.EnrichmentName, job.EnrichmentVersion)
		if err != nil {
			return nil, err
		}
		if err := version.OutputSchema.Validate(result); err != nil {
			return nil, &models.OutputValidationError{JobID: id, Err: err}
		}
	}

	updated, err := s.repo.UpdateJob(ctx, id, func(job *models.EnrichmentJob) error {
		if status != nil {
			if !status.Valid() {
				return fmt.Errorf("unknown job status %q", *status)
			}
			if err := job.Transition(*status); err != nil {
				return err
			}
		}
		if result != nil {
			job.Result = result
		}
		if errMsg != nil {
			job.RecordError(*errMsg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if status != nil {
		switch *status {
		case models.JobCompleted:
			s.jobsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("enrichment", updated.EnrichmentName)))
		case models.JobFailed:
			s.jobsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("enrichment", updated.EnrichmentName)))
		}
		s.logger.Info("job updated", "job_id", id, "status", *status)
	}
	return updated, nil
}

// CancelJob moves a job to CANCELLED. Cancellation is advisory; it does
// not interrupt an execution already in flight.
func (s *EnrichmentService) CancelJob(ctx context.Context, id string) (*models.EnrichmentJob, error) {
	cancelled := models.JobCancelled
	return s.UpdateJob(ctx, id, &cancelled, nil, nil)
}

// ExecuteJob drives one PENDING job through the executor: RUNNING, then
// COMPLETED with the validated result, or FAILED with the error recorded.
// An output that fails its schema also fails the job, and the invalid
// result is not stored.
func (s *EnrichmentService) ExecuteJob(ctx context.Context, id string) (*models.EnrichmentJob, error) {
	if s.executor == nil {
		return nil, errors.New("no executor configured")
	}

	running := models.JobRunning
	job, err := s.UpdateJob(ctx, id, &running, nil, nil)
	if err != nil {
		return nil, err
	}

	version, err := s.resolveVersion(ctx, job.EnrichmentName, job.EnrichmentVersion)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.Run(ctx, version, job.InputData)
	if err != nil {
		return s.failJob(ctx, id, err)
	}

	completed := models.JobCompleted
	updated, err := s.UpdateJob(ctx, id, &completed, result, nil)
	if errors.Is(err, models.ErrValidation) {
		return s.failJob(ctx, id, err)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *EnrichmentService) failJob(ctx context.Context, id string, cause error) (*models.EnrichmentJob, error) {
	failed := models.JobFailed
	msg := cause.Error()
	job, err := s.UpdateJob(ctx, id, &failed, nil, &msg)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("job failed", "job_id", id, "error", msg)
	return job, cause
}

// AddFeatures records an enrichment's output payload for a dataset,
// overwriting any earlier payload under the same enrichment name.
func (s *EnrichmentService) AddFeatures(ctx context.Context, datasetID, enrichmentName string, features map[string]any) (*models.FeatureSet, error) {
	return s.repo.PutFeatures(ctx, datasetID, enrichmentName, features)
}

// GetFeatureSet returns the dataset's full feature overlay, or nil when
// the dataset has none.
func (s *EnrichmentService) GetFeatureSet(ctx context.Context, datasetID string) (*models.FeatureSet, error) {
	return s.repo.GetFeatureSet(ctx, datasetID)
}

// GetFeatures returns the payload one enrichment last emitted for a
// dataset, or nil.
func (s *EnrichmentService) GetFeatures(ctx context.Context, datasetID, enrichmentName string) (map[string]any, error) {
	set, err := s.repo.GetFeatureSet(ctx, datasetID)
	if err != nil || set == nil {
		return nil, err
	}
	return set.FeaturesFor(enrichmentName), nil
}

func (s *EnrichmentService) resolveVersion(ctx context.Context, enrichmentName, versionID string) (*models.EnrichmentVersion, error) {
	def, err := s.repo.GetEnrichment(ctx, enrichmentName)
	if err != nil {
		return nil, err
	}

	if versionID != "" {
		version := def.Version(versionID)
		if version == nil {
			return nil, &models.VersionNotFoundError{Enrichment: enrichmentName, VersionID: versionID}
		}
		return version, nil
	}

	version := def.LatestVersion()
	if version == nil {
		return nil, &models.VersionNotFoundError{Enrichment: enrichmentName}
	}
	return version, nil
}
