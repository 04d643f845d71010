package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"torno/pkg/models"
)

// PostgresRepository is the durable Repository backend. Versions, params,
// payloads and metadata are persisted as JSONB; per-key atomicity comes
// from row-level SELECT ... FOR UPDATE inside a transaction.
//
// Custom validator predicates are process-local functions and are not
// persisted; definitions loaded from Postgres carry only the declarative
// schema parts (fields, required).
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository wraps an existing connection pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the registry tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS enrichments (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			versions JSONB NOT NULL DEFAULT '[]',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS jobs (
			job_id UUID PRIMARY KEY,
			dataset_id TEXT NOT NULL,
			enrichment_name TEXT NOT NULL,
			enrichment_version TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			input_data JSONB NOT NULL DEFAULT '{}',
			result JSONB,
			error TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'
		);
		CREATE TABLE IF NOT EXISTS feature_sets (
			dataset_id TEXT PRIMARY KEY,
			features JSONB NOT NULL DEFAULT '{}',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func (r *PostgresRepository) CreateEnrichment(ctx context.Context, def *models.EnrichmentDefinition) error {
	versions, err := json.Marshal(def.Versions)
	if err != nil {
		return fmt.Errorf("marshal versions: %w", err)
	}
	metadata, err := json.Marshal(def.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO enrichments (name, description, status, versions, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		def.Name, def.Description, def.Status, versions, metadata, def.CreatedAt, def.UpdatedAt)
	if isUniqueViolation(err) {
		return &models.DuplicateEnrichmentError{Name: def.Name}
	}
	return err
}

func (r *PostgresRepository) GetEnrichment(ctx context.Context, name string) (*models.EnrichmentDefinition, error) {
	return scanEnrichment(r.db.QueryRow(ctx,
		`SELECT name, description, status, versions, metadata, created_at, updated_at
		 FROM enrichments WHERE name = $1`, name), name)
}

func (r *PostgresRepository) ListEnrichments(ctx context.Context) ([]*models.EnrichmentDefinition, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name, description, status, versions, metadata, created_at, updated_at
		 FROM enrichments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*models.EnrichmentDefinition
	for rows.Next() {
		def, err := scanEnrichment(rows, "")
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *PostgresRepository) UpdateEnrichment(ctx context.Context, name string, mutate func(*models.EnrichmentDefinition) error) (*models.EnrichmentDefinition, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	def, err := scanEnrichment(tx.QueryRow(ctx,
		`SELECT name, description, status, versions, metadata, created_at, updated_at
		 FROM enrichments WHERE name = $1 FOR UPDATE`, name), name)
	if err != nil {
		return nil, err
	}

	if err := mutate(def); err != nil {
		return nil, err
	}

	versions, err := json.Marshal(def.Versions)
	if err != nil {
		return nil, fmt.Errorf("marshal versions: %w", err)
	}
	metadata, err := json.Marshal(def.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE enrichments SET description = $2, status = $3, versions = $4, metadata = $5, updated_at = $6
		 WHERE name = $1`,
		def.Name, def.Description, def.Status, versions, metadata, def.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return def, tx.Commit(ctx)
}

func (r *PostgresRepository) CreateJob(ctx context.Context, job *models.EnrichmentJob) error {
	input, err := json.Marshal(job.InputData)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO jobs (job_id, dataset_id, enrichment_name, enrichment_version, status,
		                   created_at, started_at, completed_at, input_data, result, error, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, $10, $11)`,
		job.JobID, job.DatasetID, job.EnrichmentName, job.EnrichmentVersion, job.Status,
		job.CreatedAt, job.StartedAt, job.CompletedAt, input, job.Error, metadata)
	return err
}

func (r *PostgresRepository) GetJob(ctx context.Context, id string) (*models.EnrichmentJob, error) {
	return scanJob(r.db.QueryRow(ctx, jobSelect+` WHERE job_id = $1`, id), id)
}

func (r *PostgresRepository) ListJobs(ctx context.Context) ([]*models.EnrichmentJob, error) {
	rows, err := r.db.Query(ctx, jobSelect+` ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.EnrichmentJob
	for rows.Next() {
		job, err := scanJob(rows, "")
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepository) UpdateJob(ctx context.Context, id string, mutate func(*models.EnrichmentJob) error) (*models.EnrichmentJob, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := scanJob(tx.QueryRow(ctx, jobSelect+` WHERE job_id = $1 FOR UPDATE`, id), id)
	if err != nil {
		return nil, err
	}

	if err := mutate(job); err != nil {
		return nil, err
	}

	var result []byte
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE jobs SET status = $2, started_at = $3, completed_at = $4, result = $5, error = $6, metadata = $7
		 WHERE job_id = $1`,
		job.JobID, job.Status, job.StartedAt, job.CompletedAt, result, job.Error, metadata)
	if err != nil {
		return nil, err
	}

	return job, tx.Commit(ctx)
}

func (r *PostgresRepository) PutFeatures(ctx context.Context, datasetID, enrichmentName string, features map[string]any) (*models.FeatureSet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	set, err := scanFeatureSet(tx.QueryRow(ctx,
		`SELECT dataset_id, features, metadata, created_at, updated_at
		 FROM feature_sets WHERE dataset_id = $1 FOR UPDATE`, datasetID))
	if errors.Is(err, pgx.ErrNoRows) {
		set = models.NewFeatureSet(datasetID)
		err = nil
	}
	if err != nil {
		return nil, err
	}

	set.AddFeatures(enrichmentName, features)

	raw, err := json.Marshal(set.Features)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}
	metadata, err := json.Marshal(set.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO feature_sets (dataset_id, features, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (dataset_id) DO UPDATE SET features = $2, metadata = $3, updated_at = $5`,
		set.DatasetID, raw, metadata, set.CreatedAt, set.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return set, tx.Commit(ctx)
}

func (r *PostgresRepository) GetFeatureSet(ctx context.Context, datasetID string) (*models.FeatureSet, error) {
	set, err := scanFeatureSet(r.db.QueryRow(ctx,
		`SELECT dataset_id, features, metadata, created_at, updated_at
		 FROM feature_sets WHERE dataset_id = $1`, datasetID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return set, err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

var _ Repository = (*PostgresRepository)(nil)

const jobSelect = `SELECT job_id, dataset_id, enrichment_name, enrichment_version, status,
                          created_at, started_at, completed_at, input_data, result, error, metadata
                   FROM jobs`

func scanEnrichment(row pgx.Row, name string) (*models.EnrichmentDefinition, error) {
	var def models.EnrichmentDefinition
	var versions, metadata []byte

	err := row.Scan(&def.Name, &def.Description, &def.Status, &versions, &metadata,
		&def.CreatedAt, &def.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.EnrichmentNotFoundError{Name: name}
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(versions, &def.Versions); err != nil {
		return nil, fmt.Errorf("unmarshal versions for %s: %w", def.Name, err)
	}
	if err := json.Unmarshal(metadata, &def.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", def.Name, err)
	}
	return &def, nil
}

func scanJob(row pgx.Row, id string) (*models.EnrichmentJob, error) {
	var job models.EnrichmentJob
	var input, result, metadata []byte

	err := row.Scan(&job.JobID, &job.DatasetID, &job.EnrichmentName, &job.EnrichmentVersion,
		&job.Status, &job.CreatedAt, &job.StartedAt, &job.CompletedAt, &input, &result,
		&job.Error, &metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.JobNotFoundError{JobID: id}
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(input, &job.InputData); err != nil {
		return nil, fmt.Errorf("unmarshal input for %s: %w", job.JobID, err)
	}
	if result != nil {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result for %s: %w", job.JobID, err)
		}
	}
	if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", job.JobID, err)
	}
	return &job, nil
}

func scanFeatureSet(row pgx.Row) (*models.FeatureSet, error) {
	var set models.FeatureSet
	var features, metadata []byte

	err := row.Scan(&set.DatasetID, &features, &metadata, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(features, &set.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features for %s: %w", set.DatasetID, err)
	}
	if err := json.Unmarshal(metadata, &set.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", set.DatasetID, err)
	}
	return &set, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
